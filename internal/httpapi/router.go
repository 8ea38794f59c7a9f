package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/communet/malmoon-server/internal/common"
	"github.com/communet/malmoon-server/internal/config"
	"github.com/communet/malmoon-server/internal/httpapi/handlers"
	"github.com/communet/malmoon-server/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// CRUD users register
	r.POST("/users", h.CreateUser)

	// auth
	r.POST("/login", h.Login)

	// media server callbacks (verified in-handler, always 200)
	r.POST("/livekit/webhook", h.ReceiveWebhook)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Session lifecycle (JWT required, role checked in handler)
	authGroup.POST("/sessions/room", h.CreateSessionRoom)
	authGroup.DELETE("/sessions/room", h.DeleteSessionRoom)
	authGroup.POST("/sessions/join", h.JoinSessionRoom)
	authGroup.POST("/sessions/messages", h.SendSessionMessage)
	authGroup.POST("/sessions/:room_name/chat/export", h.ExportSessionChat)

	// Persisted chat history
	authGroup.GET("/chat/rooms/:room_id/messages", h.ListChatMessages)

	return r
}
