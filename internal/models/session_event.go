package models

import "time"

// SessionEvent is the audit row the worker writes for every lifecycle
// event it consumes off the broker.
type SessionEvent struct {
	ID         string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	EventType  string    `gorm:"type:varchar(32);index;not null" json:"event_type"`
	RoomName   string    `gorm:"type:varchar(64);index;not null" json:"room_name"`
	Actor      string    `gorm:"type:varchar(255)" json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (SessionEvent) TableName() string { return "session_events" }
