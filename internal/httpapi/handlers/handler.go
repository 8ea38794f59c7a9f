package handlers

import (
	"gorm.io/gorm"

	"github.com/communet/malmoon-server/internal/chat"
	"github.com/communet/malmoon-server/internal/config"
	"github.com/communet/malmoon-server/internal/models"
	"github.com/communet/malmoon-server/internal/session"
)

type Handler struct {
	DB         *gorm.DB
	Cfg        config.Config
	Members    *models.MemberRepo
	SessionSvc *session.Service
	ChatSvc    *chat.Service
	Buffer     *chat.Buffer
	Events     session.EventPublisher
}

func NewHandler(db *gorm.DB, cfg config.Config, members *models.MemberRepo, sessionSvc *session.Service, chatSvc *chat.Service, buffer *chat.Buffer, events session.EventPublisher) *Handler {
	return &Handler{
		DB:         db,
		Cfg:        cfg,
		Members:    members,
		SessionSvc: sessionSvc,
		ChatSvc:    chatSvc,
		Buffer:     buffer,
		Events:     events,
	}
}
