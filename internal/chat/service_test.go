package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateOrGetSessionRoom_Idempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db))
	ctx := context.Background()

	first, err := svc.CreateOrGetSessionRoom(ctx, "svc-idem", []uint64{1, 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := svc.CreateOrGetSessionRoom(ctx, "svc-idem", []uint64{1, 2})
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}
	if again.RoomID != first.RoomID {
		t.Fatalf("second call made a new room %d, want %d", again.RoomID, first.RoomID)
	}

	var cnt int64
	if err := db.Model(&ChatRoomParticipant{}).Where("room_id = ?", first.RoomID).Count(&cnt).Error; err != nil {
		t.Fatalf("count participants: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("participants = %d, want 2", cnt)
	}
}

func TestCloseSessionRoom_DoubleCloseIsNoop(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db))
	ctx := context.Background()

	room, err := svc.CreateOrGetSessionRoom(ctx, "svc-close", []uint64{1, 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.CloseSessionRoom(ctx, room.RoomID); err != nil {
		t.Fatalf("close: %v", err)
	}
	var loaded ChatRoom
	if err := db.First(&loaded, room.RoomID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.EndedAt == nil {
		t.Fatalf("room not closed")
	}
	firstEnd := *loaded.EndedAt

	if err := svc.CloseSessionRoom(ctx, room.RoomID); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := db.First(&loaded, room.RoomID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.EndedAt.Equal(firstEnd) {
		t.Fatalf("second close moved ended_at from %v to %v", firstEnd, loaded.EndedAt)
	}
}

func TestListMessages_RequiresParticipant(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(NewRepo(db))
	ctx := context.Background()

	room, err := svc.CreateOrGetSessionRoom(ctx, "svc-list", []uint64{10, 11})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.AppendMessage(ctx, room.RoomID, 10, MessageTalk, "hello", time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, err := svc.ListMessages(ctx, 10, room.RoomID, 0, 0)
	if err != nil {
		t.Fatalf("list as participant: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	if _, err := svc.ListMessages(ctx, 99, room.RoomID, 0, 0); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("list as outsider: err = %v, want ErrNotParticipant", err)
	}
}
