package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatorder/platform/internal/store"
)

type completeOrderReq struct {
	TenantID string `json:"tenant_id" binding:"required"`
}

// CompleteOrder marks an order delivered and schedules the delayed review
// follow-up. Called by the fulfillment side of the platform.
func (h *Handler) CompleteOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	var req completeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctx := c.Request.Context()
	order, err := h.Store.OrderByID(ctx, req.TenantID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, 40004, "order not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50001, "failed to load order")
		return
	}
	if order.Status == store.OrderCanceled {
		fail(c, http.StatusConflict, 40901, "order is canceled")
		return
	}

	if err := h.Store.MarkOrderStatus(ctx, req.TenantID, orderID, store.OrderDelivered); err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to update order")
		return
	}

	if err := h.Scheduler.Schedule(ctx, req.TenantID, orderID); err != nil {
		// The order state change already happened; a lost follow-up is
		// not worth failing the request over.
		h.Log.Error("orders: review scheduling failed",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	ok(c, gin.H{"order_id": orderID, "status": store.OrderDelivered})
}
