package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communet/malmoon-server/internal/chat"
	"github.com/communet/malmoon-server/internal/common"
)

type sessionMessageReq struct {
	RoomName    string `json:"room_name" binding:"required"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// SendSessionMessage buffers one in-session chat message in the fast
// store. Nothing is durable until the session's flush runs.
func (h *Handler) SendSessionMessage(c *gin.Context) {
	m, okk := h.currentMember(c)
	if !okk {
		return
	}

	var req sessionMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msgType := chat.MessageType(req.MessageType)
	if msgType == "" {
		msgType = chat.MessageTalk
	}
	if msgType != chat.MessageTalk && msgType != chat.MessageEnter && msgType != chat.MessageLeave {
		common.Fail(c, http.StatusBadRequest, 10005, "invalid message type")
		return
	}
	if msgType == chat.MessageTalk && req.Content == "" {
		common.Fail(c, http.StatusBadRequest, 10006, "content required")
		return
	}

	chatRoomID, err := h.Buffer.GetLink(c.Request.Context(), req.RoomName)
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40405, "no chat room for this session")
		return
	}

	msg := chat.BufferedMessage{
		RoomID:      chatRoomID,
		SenderID:    m.ID,
		Content:     req.Content,
		MessageType: msgType,
		SentAt:      time.Now(),
	}
	if err := h.Buffer.Save(c.Request.Context(), req.RoomName, msg); err != nil {
		if errors.Is(err, chat.ErrUnknownRoom) {
			common.Fail(c, http.StatusNotFound, 40405, "no chat room for this session")
			return
		}
		log.Printf("[SendSessionMessage] room=%s sender=%d err=%v", req.RoomName, m.ID, err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to buffer message")
		return
	}

	common.OK(c, nil)
}

// ExportSessionChat triggers the flush explicitly, outside teardown.
func (h *Handler) ExportSessionChat(c *gin.Context) {
	if _, okk := h.currentMember(c); !okk {
		return
	}

	roomName := c.Param("room_name")
	if roomName == "" {
		common.Fail(c, http.StatusBadRequest, 10007, "room_name required")
		return
	}

	n, err := h.Buffer.Export(c.Request.Context(), roomName)
	if err != nil {
		if errors.Is(err, chat.ErrUnknownRoom) {
			common.Fail(c, http.StatusNotFound, 40405, "no chat room for this session")
			return
		}
		if errors.Is(err, chat.ErrNothingToFlush) {
			common.Fail(c, http.StatusBadRequest, 10008, "no buffered messages to flush")
			return
		}
		log.Printf("[ExportSessionChat] room=%s err=%v", roomName, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "flush failed")
		return
	}

	common.OK(c, gin.H{"persisted": n})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	m, okk := h.currentMember(c)
	if !okk {
		return
	}

	roomID, err := strconv.ParseUint(c.Param("room_id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid room id")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), m.ID, roomID, limit, beforeID)
	if err != nil {
		if errors.Is(err, chat.ErrNotParticipant) {
			common.Fail(c, http.StatusForbidden, 40303, "not a participant of this room")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}
