package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/pipeline"
)

type inboundEventReq struct {
	SenderID string `json:"sender_id" binding:"required"`
	EventID  string `json:"event_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

// ReceiveEvent accepts one channel event and enqueues it for the worker.
// The channel expects a fast 2xx; all real work happens off the request
// path.
func (h *Handler) ReceiveEvent(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		fail(c, http.StatusBadRequest, 10001, "tenant id is required")
		return
	}

	var req inboundEventReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	env, err := broker.NewEnvelope(pipeline.TypeInbound, pipeline.InboundEvent{
		TenantID: tenantID,
		SenderID: req.SenderID,
		EventID:  req.EventID,
		Text:     req.Text,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to accept event")
		return
	}

	if err := h.Pub.PublishInbound(c.Request.Context(), env); err != nil {
		h.Log.Error("webhook: publish failed",
			zap.String("tenant_id", tenantID),
			zap.String("event_id", req.EventID),
			zap.Error(err))
		fail(c, http.StatusServiceUnavailable, 50301, "failed to accept event")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"code":    0,
		"message": "accepted",
		"data":    gin.H{"event_id": req.EventID},
	})
}
