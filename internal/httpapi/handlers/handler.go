package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/review"
	"github.com/chatorder/platform/internal/store"
)

// InboundPublisher is the slice of the broker the webhook needs.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, env broker.Envelope) error
}

type Handler struct {
	Pub       InboundPublisher
	Convos    *convo.Repo
	Store     *store.Repo
	Scheduler *review.Scheduler
	Log       *zap.Logger
}

func NewHandler(pub InboundPublisher, convos *convo.Repo, repo *store.Repo, scheduler *review.Scheduler, log *zap.Logger) *Handler {
	return &Handler{Pub: pub, Convos: convos, Store: repo, Scheduler: scheduler, Log: log}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func fail(c *gin.Context, httpStatus, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

func (h *Handler) Ping(c *gin.Context) {
	ok(c, gin.H{"pong": true})
}
