package chat

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateRoom(ctx context.Context, room *ChatRoom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *Repo) GetRoomByID(ctx context.Context, roomID uint64) (*ChatRoom, error) {
	var room ChatRoom
	if err := r.db.WithContext(ctx).First(&room, roomID).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *Repo) GetRoomBySessionID(ctx context.Context, sessionID string) (*ChatRoom, error) {
	var room ChatRoom
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *Repo) SaveRoom(ctx context.Context, room *ChatRoom) error {
	return r.db.WithContext(ctx).Save(room).Error
}

func (r *Repo) AddParticipant(ctx context.Context, roomID, memberID uint64) error {
	return r.db.WithContext(ctx).Create(&ChatRoomParticipant{
		RoomID:   roomID,
		MemberID: memberID,
	}).Error
}

func (r *Repo) IsParticipant(ctx context.Context, roomID, memberID uint64) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&ChatRoomParticipant{}).
		Where("room_id = ? AND member_id = ?", roomID, memberID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *Repo) InsertMessage(ctx context.Context, m *ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// InsertMessages persists the batch in one statement so a mid-batch
// failure never leaves a partial flush behind.
func (r *Repo) InsertMessages(ctx context.Context, msgs []ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&msgs).Error
}

// ListMessages returns messages in DESC id order (newest -> oldest).
func (r *Repo) ListMessages(ctx context.Context, roomID uint64, limit int, beforeID uint64) ([]ChatMessage, error) {
	q := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []ChatMessage
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
