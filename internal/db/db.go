package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/communet/malmoon-server/internal/chat"
	"github.com/communet/malmoon-server/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

func AutoMigrate(gdb *gorm.DB) {
	if err := gdb.AutoMigrate(
		&models.Member{},
		&models.SessionEvent{},
		&chat.ChatRoom{},
		&chat.ChatRoomParticipant{},
		&chat.ChatMessage{},
	); err != nil {
		log.Fatalf("automigrate: %v", err)
	}
}
