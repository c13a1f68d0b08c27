package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *Handler) ListConversations(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		fail(c, http.StatusBadRequest, 10001, "tenant_id is required")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	convs, err := h.Convos.ListByTenant(c.Request.Context(), tenantID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to list conversations")
		return
	}
	ok(c, gin.H{"conversations": convs})
}

// ListMessages pages backwards through one conversation, newest first.
func (h *Handler) ListMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	if _, err := h.Convos.ByConversationID(c.Request.Context(), conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, 40004, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50001, "failed to load conversation")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	beforeSeq, _ := strconv.Atoi(c.Query("before_seq"))

	msgs, err := h.Convos.MessagesBefore(c.Request.Context(), conversationID, limit, beforeSeq)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to list messages")
		return
	}
	ok(c, gin.H{"messages": msgs})
}
