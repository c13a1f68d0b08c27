package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/config"
	"github.com/chatorder/platform/internal/httpapi/handlers"
	"github.com/chatorder/platform/internal/httpapi/middleware"
)

// NewRouter wires the ingress webhook and the JWT-protected operator API.
func NewRouter(cfg *config.Config, h *handlers.Handler, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "route not found", "data": nil})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": 40500, "message": "method not allowed", "data": nil})
	})

	r.GET("/ping", h.Ping)

	// Channel ingress; authenticated upstream by the channel gateway.
	r.POST("/webhook/:tenant_id", h.ReceiveEvent)

	// Operator API (JWT required).
	op := r.Group("/")
	op.Use(middleware.AuthRequired(cfg.App.JWTSecret))
	op.GET("/conversations", h.ListConversations)
	op.GET("/conversations/:conversation_id/messages", h.ListMessages)
	op.POST("/orders/:order_id/complete", h.CompleteOrder)

	return r
}
