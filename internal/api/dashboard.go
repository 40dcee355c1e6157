package api

import (
	"net/http"

	"leadgen-dashboard/internal/models"
	"leadgen-dashboard/internal/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	DB    *gorm.DB
	Queue *queue.Manager
}

func NewDashboardHandler(db *gorm.DB, q *queue.Manager) *DashboardHandler {
	return &DashboardHandler{DB: db, Queue: q}
}

// GetStats aggregates the headline numbers for the dashboard cards.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	var totalLeads int64
	if err := h.DB.WithContext(ctx).Model(&models.Lead{}).Count(&totalLeads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	byStatus := map[string]int64{}
	rows, err := h.DB.WithContext(ctx).Model(&models.Lead{}).
		Select("status, count(*) as count").
		Group("status").Rows()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		byStatus[status] = count
	}

	var sentTotal int64
	if err := h.DB.WithContext(ctx).Model(&models.SentLog{}).Count(&sentTotal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_leads":     totalLeads,
		"leads_by_status": byStatus,
		"messages_sent":   sentTotal,
		"queue_pending":   h.Queue.PendingCount(),
	})
}
