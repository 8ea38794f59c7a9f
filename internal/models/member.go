package models

import "time"

type Role string

const (
	RoleTherapist Role = "therapist"
	RoleClient    Role = "client"
)

type Member struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Nickname     string    `gorm:"type:varchar(64);not null" json:"nickname"`
	Role         Role      `gorm:"type:varchar(16);index;not null" json:"role"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (Member) TableName() string { return "members" }
