package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListNotifications - GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	notifications, err := h.notifications.List(c.Request.Context(), caller)
	if err != nil {
		respondError(c, "list notifications", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}
