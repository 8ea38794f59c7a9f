package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communet/malmoon-server/internal/common"
	"github.com/communet/malmoon-server/internal/livekit"
	"github.com/communet/malmoon-server/internal/models"
	"github.com/communet/malmoon-server/internal/session"
	"github.com/communet/malmoon-server/internal/store/rabbitmq"
)

type createRoomReq struct {
	ClientID uint64 `json:"client_id" binding:"required"`
}

func (h *Handler) CreateSessionRoom(c *gin.Context) {
	m, okk := h.currentMember(c)
	if !okk {
		return
	}
	if m.Role != models.RoleTherapist {
		common.Fail(c, http.StatusForbidden, 40301, "therapist role required")
		return
	}

	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	tok, err := h.SessionSvc.Create(c.Request.Context(), m, req.ClientID)
	if err != nil {
		if errors.Is(err, session.ErrMemberNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "client not found")
			return
		}
		log.Printf("[CreateSessionRoom] therapist=%s client=%d err=%v", m.Email, req.ClientID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session room")
		return
	}

	common.OK(c, tok)
}

func (h *Handler) JoinSessionRoom(c *gin.Context) {
	m, okk := h.currentMember(c)
	if !okk {
		return
	}
	if m.Role != models.RoleClient {
		common.Fail(c, http.StatusForbidden, 40302, "client role required")
		return
	}

	tok, err := h.SessionSvc.Join(c.Request.Context(), m)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			common.Fail(c, http.StatusNotFound, 40404, "no session available")
			return
		}
		log.Printf("[JoinSessionRoom] client=%s err=%v", m.Email, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to join session")
		return
	}

	common.OK(c, tok)
}

func (h *Handler) DeleteSessionRoom(c *gin.Context) {
	m, okk := h.currentMember(c)
	if !okk {
		return
	}
	if m.Role != models.RoleTherapist {
		common.Fail(c, http.StatusForbidden, 40301, "therapist role required")
		return
	}

	if err := h.SessionSvc.Teardown(c.Request.Context(), m.Email); err != nil {
		log.Printf("[DeleteSessionRoom] therapist=%s err=%v", m.Email, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to end session")
		return
	}

	common.OK(c, nil)
}

// ReceiveWebhook validates and logs the media server's event callbacks.
// Verification is informational: the response is 200 either way.
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusOK, "ok")
		return
	}

	ev, err := livekit.VerifyWebhook(h.Cfg.LiveKitAPIKey, h.Cfg.LiveKitAPISecret, c.GetHeader("Authorization"), body)
	if err != nil {
		log.Printf("webhook verification failed: %v", err)
		c.String(http.StatusOK, "ok")
		return
	}

	log.Printf("livekit webhook event=%s room=%s", ev.Event, ev.Room.Name)
	if ev.Event == "room_finished" && h.Events != nil {
		msg := rabbitmq.EventMessage{
			EventType:  "webhook.room_finished",
			RoomName:   ev.Room.Name,
			Actor:      "livekit",
			OccurredAt: time.Now(),
		}
		if err := h.Events.PublishEvent(c.Request.Context(), msg); err != nil {
			log.Printf("webhook event publish failed room=%s: %v", ev.Room.Name, err)
		}
	}
	c.String(http.StatusOK, "ok")
}
