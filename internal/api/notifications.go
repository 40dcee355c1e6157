package api

import (
	"net/http"
	"strconv"

	"leadgen-dashboard/internal/notify"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	Service *notify.Service
}

func NewNotificationHandler(service *notify.Service) *NotificationHandler {
	return &NotificationHandler{Service: service}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.Service.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	unread, err := h.Service.UnreadCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": rows, "unread": unread})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.Service.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.Service.MarkAllRead(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "All notifications marked as read"})
}

func (h *NotificationHandler) Clear(c *gin.Context) {
	if err := h.Service.Clear(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Notification cleared"})
}

func (h *NotificationHandler) ClearAll(c *gin.Context) {
	if err := h.Service.ClearAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "All notifications cleared"})
}
