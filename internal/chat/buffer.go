package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/communet/malmoon-server/internal/store/redisstore"
)

var (
	ErrUnknownRoom    = errors.New("chat: no session chat room for this key")
	ErrNothingToFlush = errors.New("chat: no buffered messages to flush")
)

// BufferedMessage is the transient wire form held in the fast store
// while a session is live. Written by the ingestion path, drained by
// Flush, never mutated in place.
type BufferedMessage struct {
	RoomID      uint64      `json:"roomId"`
	SenderID    uint64      `json:"senderId"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	SentAt      time.Time   `json:"sentAt"`
}

func linkKey(sessionRoom string) string    { return "chat:session:" + sessionRoom }
func bufferKey(sessionRoom string) string  { return "chat:session:" + sessionRoom + ":messages" }
func enteredKey(sessionRoom string) string { return "chat:session:" + sessionRoom + ":entered" }

// Buffer accumulates in-session chat in the fast store and flushes it
// into the durable store when the session ends.
type Buffer struct {
	kv   redisstore.KV
	repo *Repo
}

func NewBuffer(kv redisstore.KV, repo *Repo) *Buffer {
	return &Buffer{kv: kv, repo: repo}
}

// SetLink records the session-room -> chat-room mapping.
func (b *Buffer) SetLink(ctx context.Context, sessionRoom string, chatRoomID uint64) error {
	return b.kv.Set(ctx, linkKey(sessionRoom), strconv.FormatUint(chatRoomID, 10))
}

// GetLink resolves the mapping; redisstore.ErrNotFound when absent.
func (b *Buffer) GetLink(ctx context.Context, sessionRoom string) (uint64, error) {
	v, err := b.kv.Get(ctx, linkKey(sessionRoom))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chat: bad chat room id %q for %s: %w", v, sessionRoom, err)
	}
	return id, nil
}

func (b *Buffer) DeleteLink(ctx context.Context, sessionRoom string) error {
	return b.kv.Del(ctx, linkKey(sessionRoom))
}

// Save appends one message to the session buffer. ENTER messages are
// stored once per sender for the lifetime of the session. Writes to a
// room with no live link are rejected so a torn-down session cannot
// grow an unreachable buffer.
func (b *Buffer) Save(ctx context.Context, sessionRoom string, msg BufferedMessage) error {
	if _, err := b.kv.Get(ctx, linkKey(sessionRoom)); err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return ErrUnknownRoom
		}
		return err
	}

	if msg.MessageType == MessageEnter {
		added, err := b.kv.SAdd(ctx, enteredKey(sessionRoom), strconv.FormatUint(msg.SenderID, 10))
		if err != nil {
			return err
		}
		if !added {
			// Duplicate ENTER for this sender; skip the write.
			return nil
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.kv.RPush(ctx, bufferKey(sessionRoom), string(raw))
}

// Flush drains the buffer into the durable store as one batch write.
// The buffer keys are deleted only after the batch write succeeds, so a
// failed flush can be retried without losing messages. An empty buffer
// is a success: the keys are cleaned and zero is returned.
//
// A message saved concurrently, between the read and the final delete,
// is lost with the keys. Delivery is at-least-once up to that window,
// not exactly-once.
func (b *Buffer) Flush(ctx context.Context, sessionRoom string) (int, error) {
	listKey := bufferKey(sessionRoom)
	setKey := enteredKey(sessionRoom)

	raws, err := b.kv.LRange(ctx, listKey)
	if err != nil {
		return 0, err
	}

	if len(raws) == 0 {
		if err := b.kv.Del(ctx, listKey, setKey); err != nil {
			return 0, err
		}
		return 0, nil
	}

	msgs := make([]ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var m BufferedMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			// A single bad entry must not block session teardown.
			log.Printf("flush room=%s skipping undecodable message: %v", sessionRoom, err)
			continue
		}
		msgs = append(msgs, ChatMessage{
			RoomID:      m.RoomID,
			SenderID:    m.SenderID,
			MessageType: m.MessageType,
			Content:     m.Content,
			SentAt:      m.SentAt,
		})
	}

	if err := b.repo.InsertMessages(ctx, msgs); err != nil {
		return 0, fmt.Errorf("chat: flush batch write room=%s: %w", sessionRoom, err)
	}

	if err := b.kv.Del(ctx, listKey, setKey); err != nil {
		return 0, err
	}
	log.Printf("flush room=%s persisted=%d buffered=%d", sessionRoom, len(msgs), len(raws))
	return len(msgs), nil
}

// Export is the standalone end-of-session flush. Unlike teardown it
// fails loudly: an unknown room and an empty buffer are both errors the
// caller can tell apart.
func (b *Buffer) Export(ctx context.Context, sessionRoom string) (int, error) {
	if _, err := b.kv.Get(ctx, linkKey(sessionRoom)); err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return 0, ErrUnknownRoom
		}
		return 0, err
	}

	raws, err := b.kv.LRange(ctx, bufferKey(sessionRoom))
	if err != nil {
		return 0, err
	}
	if len(raws) == 0 {
		return 0, ErrNothingToFlush
	}
	return b.Flush(ctx, sessionRoom)
}
