package api

import (
	"net/http"
	"time"

	"leadgen-dashboard/internal/n8n"
	"leadgen-dashboard/internal/scheduler"

	"github.com/gin-gonic/gin"
)

type SchedulerHandler struct {
	Scheduler *scheduler.Scheduler
}

func NewSchedulerHandler(s *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{Scheduler: s}
}

func (h *SchedulerHandler) GetPendingSearches(c *gin.Context) {
	c.JSON(http.StatusOK, h.Scheduler.List())
}

type ScheduleRequest struct {
	City          string    `json:"city" binding:"required"`
	District      string    `json:"district"`
	Sector        string    `json:"sector" binding:"required"`
	Limit         int       `json:"limit"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
}

// ScheduleSearch stores a future search. Validation failures abort
// before anything is persisted.
func (h *SchedulerHandler) ScheduleSearch(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pending, err := h.Scheduler.Schedule(n8n.SearchConfig{
		City:     req.City,
		District: req.District,
		Sector:   req.Sector,
		Limit:    req.Limit,
	}, req.ScheduledTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, pending)
}

func (h *SchedulerHandler) RemoveScheduledSearch(c *gin.Context) {
	if !h.Scheduler.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scheduled search not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Scheduled search removed"})
}
