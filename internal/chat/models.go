package chat

import "time"

type RoomType string

const (
	RoomSession  RoomType = "SESSION"
	RoomOneToOne RoomType = "ONE_TO_ONE"
	RoomGroup    RoomType = "GROUP"
)

type MessageType string

const (
	MessageTalk  MessageType = "TALK"
	MessageEnter MessageType = "ENTER"
	MessageLeave MessageType = "LEAVE"
)

type ChatRoom struct {
	RoomID   uint64   `gorm:"primaryKey;autoIncrement" json:"room_id"`
	RoomType RoomType `gorm:"type:varchar(16);not null" json:"room_type"`
	RoomName string   `gorm:"type:varchar(128)" json:"room_name"`

	// Correlation key back to the media session that spawned this room.
	// Empty for plain (non-session) rooms.
	SessionID *string `gorm:"type:varchar(64);uniqueIndex" json:"session_id,omitempty"`

	// Set when the session ends; a closed room accepts no new buffered writes.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }

type ChatRoomParticipant struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	RoomID    uint64    `gorm:"not null;index:uniq_room_member,unique,priority:1" json:"room_id"`
	MemberID  uint64    `gorm:"not null;index:uniq_room_member,unique,priority:2" json:"member_id"`
	CreatedAt time.Time `json:"-"`
}

func (ChatRoomParticipant) TableName() string { return "chat_room_participants" }

// ChatMessage is immutable once written; rows are created by the buffer
// flush or by direct non-session writes, never updated.
type ChatMessage struct {
	ID          uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID      uint64      `gorm:"index;not null" json:"room_id"`
	SenderID    uint64      `gorm:"index;not null" json:"sender_id"`
	MessageType MessageType `gorm:"type:varchar(16);not null" json:"message_type"`
	Content     string      `gorm:"type:text" json:"content"`
	SentAt      time.Time   `json:"sent_at"`
	CreatedAt   time.Time   `json:"-"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
