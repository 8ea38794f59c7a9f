package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communet/malmoon-server/internal/chat"
	"github.com/communet/malmoon-server/internal/livekit"
	"github.com/communet/malmoon-server/internal/models"
	"github.com/communet/malmoon-server/internal/store/rabbitmq"
	"github.com/communet/malmoon-server/internal/store/redisstore"
)

const (
	roomKeyPrefix      = "session:room:"
	therapistKeyPrefix = "user:therapist:"
	clientKeyPrefix    = "user:client:"
)

func roomKey(room string) string       { return roomKeyPrefix + room }
func therapistKey(email string) string { return therapistKeyPrefix + email }
func clientKey(email string) string    { return clientKeyPrefix + email }

// IdentityResolver resolves members from the durable store.
type IdentityResolver interface {
	FindByID(ctx context.Context, id uint64) (*models.Member, error)
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
}

// ChatRooms is the durable chat collaborator.
type ChatRooms interface {
	CreateOrGetSessionRoom(ctx context.Context, sessionID string, participantIDs []uint64) (*chat.ChatRoom, error)
	CloseSessionRoom(ctx context.Context, roomID uint64) error
	AppendMessage(ctx context.Context, roomID, senderID uint64, msgType chat.MessageType, content string, sentAt time.Time) error
}

// RoomDeleter is the external media provider's deletion call.
type RoomDeleter interface {
	DeleteRoom(ctx context.Context, room string) error
}

// EventPublisher fans lifecycle events out to the broker. Publishing is
// informational; failures are logged, never propagated.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev rabbitmq.EventMessage) error
}

// Token is what callers get back from Create/Join.
type Token struct {
	Token      string `json:"token"`
	RoomName   string `json:"room_name"`
	ChatRoomID uint64 `json:"chat_room_id"`
}

// Service is the room lifecycle manager. It coordinates the media
// provider, the fast store and the durable chat store; consistency
// comes from operation ordering, not locks, so every step is idempotent.
type Service struct {
	kv       redisstore.KV
	members  IdentityResolver
	chatSvc  ChatRooms
	buffer   *chat.Buffer
	rooms    RoomDeleter
	queue    *RetryQueue
	events   EventPublisher
	apiKey   string
	secret   string
	tokenTTL time.Duration
}

func NewService(
	kv redisstore.KV,
	members IdentityResolver,
	chatSvc ChatRooms,
	buffer *chat.Buffer,
	rooms RoomDeleter,
	queue *RetryQueue,
	events EventPublisher,
	apiKey, apiSecret string,
	tokenTTL time.Duration,
) *Service {
	return &Service{
		kv:       kv,
		members:  members,
		chatSvc:  chatSvc,
		buffer:   buffer,
		rooms:    rooms,
		queue:    queue,
		events:   events,
		apiKey:   apiKey,
		secret:   apiSecret,
		tokenTTL: tokenTTL,
	}
}

// Create opens a fresh session room for the therapist and the given
// client. A still-active previous session for the same therapist is
// torn down first, so repeated calls converge on exactly one live room
// per therapist. Index entries are written last: a room is never
// discoverable before its record and chat room exist.
func (s *Service) Create(ctx context.Context, therapist *models.Member, clientID uint64) (*Token, error) {
	active, err := s.kv.Exists(ctx, therapistKey(therapist.Email))
	if err != nil {
		return nil, err
	}
	if active {
		prev, err := s.kv.Get(ctx, therapistKey(therapist.Email))
		if err != nil && !errors.Is(err, redisstore.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			if err := s.teardownRoom(ctx, therapist.Email, prev); err != nil {
				return nil, fmt.Errorf("tearing down stale room %s: %w", prev, err)
			}
		}
	}

	client, err := s.members.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	roomName := uuid.NewString()

	if err := s.kv.HSetAll(ctx, roomKey(roomName), map[string]string{
		"therapist": therapist.Email,
		"client":    client.Email,
		"createdAt": time.Now().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}

	chatRoom, err := s.chatSvc.CreateOrGetSessionRoom(ctx, roomName, []uint64{therapist.ID, client.ID})
	if err != nil {
		return nil, err
	}
	if err := s.buffer.SetLink(ctx, roomName, chatRoom.RoomID); err != nil {
		return nil, err
	}

	// Index writes come last; last writer wins on a racing Create.
	if err := s.kv.Set(ctx, therapistKey(therapist.Email), roomName); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, clientKey(client.Email), roomName); err != nil {
		return nil, err
	}

	s.publish(ctx, "session.started", roomName, therapist.Email)

	tok, err := livekit.BuildAccessToken(s.apiKey, s.secret, therapist.Email, therapist.Nickname, roomName, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Token{Token: tok, RoomName: roomName, ChatRoomID: chatRoom.RoomID}, nil
}

// Join resolves the room the client was invited to and issues a token
// for it. No state is mutated.
func (s *Service) Join(ctx context.Context, client *models.Member) (*Token, error) {
	roomName, err := s.kv.Get(ctx, clientKey(client.Email))
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	chatRoomID, err := s.buffer.GetLink(ctx, roomName)
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			// Index without a chat link: teardown in flight. Report no
			// session rather than a half-dismantled room.
			return nil, ErrNoSession
		}
		return nil, err
	}

	tok, err := livekit.BuildAccessToken(s.apiKey, s.secret, client.Email, client.Nickname, roomName, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Token{Token: tok, RoomName: roomName, ChatRoomID: chatRoomID}, nil
}

// Teardown dismantles the therapist's active session. Calling it with
// no active session is a no-op.
func (s *Service) Teardown(ctx context.Context, therapistEmail string) error {
	roomName, err := s.kv.Get(ctx, therapistKey(therapistEmail))
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.teardownRoom(ctx, therapistEmail, roomName)
}

// teardownRoom runs the cascade in a fixed order: index entries first,
// then the session record, then chat close + flush, then the external
// deletion. Chat and DB state must be terminal before the fast-store
// keys disappear, so a crash mid-cascade never strands buffered
// messages. Only the external step is allowed to fail silently: its
// compensating action goes on the retry queue.
func (s *Service) teardownRoom(ctx context.Context, therapistEmail, roomName string) error {
	clientEmail, err := s.kv.HGet(ctx, roomKey(roomName), "client")
	if err != nil && !errors.Is(err, redisstore.ErrNotFound) {
		return err
	}

	keys := []string{therapistKey(therapistEmail)}
	if clientEmail != "" {
		keys = append(keys, clientKey(clientEmail))
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		return err
	}
	if err := s.kv.Del(ctx, roomKey(roomName)); err != nil {
		return err
	}

	if err := s.closeChat(ctx, therapistEmail, roomName); err != nil {
		return err
	}

	if err := s.rooms.DeleteRoom(ctx, roomName); err != nil {
		log.Printf("teardown room=%s provider deletion failed, queued for retry: %v", roomName, err)
		if qerr := s.queue.Enqueue(ctx, RetryItem{RoomName: roomName}); qerr != nil {
			return fmt.Errorf("enqueue deletion retry for %s: %w", roomName, qerr)
		}
	}

	s.publish(ctx, "session.ended", roomName, therapistEmail)
	return nil
}

func (s *Service) closeChat(ctx context.Context, therapistEmail, roomName string) error {
	chatRoomID, err := s.buffer.GetLink(ctx, roomName)
	if err != nil {
		if errors.Is(err, redisstore.ErrNotFound) {
			return nil
		}
		return err
	}

	therapist, err := s.members.FindByEmail(ctx, therapistEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return err
	}

	if err := s.chatSvc.AppendMessage(ctx, chatRoomID, therapist.ID, chat.MessageLeave, "therapy session ended", time.Now()); err != nil {
		return err
	}
	if err := s.chatSvc.CloseSessionRoom(ctx, chatRoomID); err != nil {
		return err
	}
	if _, err := s.buffer.Flush(ctx, roomName); err != nil {
		return err
	}
	return s.buffer.DeleteLink(ctx, roomName)
}

func (s *Service) publish(ctx context.Context, eventType, roomName, actor string) {
	if s.events == nil {
		return
	}
	ev := rabbitmq.EventMessage{
		EventType:  eventType,
		RoomName:   roomName,
		Actor:      actor,
		OccurredAt: time.Now(),
	}
	if err := s.events.PublishEvent(ctx, ev); err != nil {
		log.Printf("publish %s room=%s failed: %v", eventType, roomName, err)
	}
}
