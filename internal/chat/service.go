package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotParticipant = errors.New("chat: member is not a participant of this room")

// Service owns the durable side of chat: rooms, participants and
// persisted messages.
type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// CreateOrGetSessionRoom returns the chat room correlated with the given
// media session, creating it (with its participants) on first call.
// Calling it again with the same sessionID returns the existing room.
func (s *Service) CreateOrGetSessionRoom(ctx context.Context, sessionID string, participantIDs []uint64) (*ChatRoom, error) {
	existing, err := s.repo.GetRoomBySessionID(ctx, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sid := sessionID
	room := &ChatRoom{
		RoomType:  RoomSession,
		RoomName:  "session chat",
		SessionID: &sid,
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		// Lost a race with a concurrent create for the same session:
		// the unique index on session_id makes the other row the winner.
		if again, getErr := s.repo.GetRoomBySessionID(ctx, sessionID); getErr == nil {
			return again, nil
		}
		return nil, err
	}

	for _, id := range participantIDs {
		if err := s.repo.AddParticipant(ctx, room.RoomID, id); err != nil {
			return nil, err
		}
	}
	return room, nil
}

// CloseSessionRoom marks the room ended. Closing an already-closed room
// is a no-op.
func (s *Service) CloseSessionRoom(ctx context.Context, roomID uint64) error {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.EndedAt != nil {
		return nil
	}
	now := time.Now()
	room.EndedAt = &now
	return s.repo.SaveRoom(ctx, room)
}

// AppendMessage writes a single message straight to the durable store.
// Session traffic goes through the buffer instead; this is the direct
// path (system markers, non-session rooms).
func (s *Service) AppendMessage(ctx context.Context, roomID, senderID uint64, msgType MessageType, content string, sentAt time.Time) error {
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	return s.repo.InsertMessage(ctx, &ChatMessage{
		RoomID:      roomID,
		SenderID:    senderID,
		MessageType: msgType,
		Content:     content,
		SentAt:      sentAt,
	})
}

func (s *Service) ListMessages(ctx context.Context, memberID, roomID uint64, limit int, beforeID uint64) ([]ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	okk, err := s.repo.IsParticipant(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}
	if !okk {
		return nil, ErrNotParticipant
	}
	return s.repo.ListMessages(ctx, roomID, limit, beforeID)
}
