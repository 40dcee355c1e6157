package api

import (
	"errors"
	"net/http"

	"leadgen-dashboard/internal/leads"
	"leadgen-dashboard/internal/models"
	"leadgen-dashboard/internal/n8n"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LeadHandler struct {
	Service *leads.Service
}

func NewLeadHandler(service *leads.Service) *LeadHandler {
	return &LeadHandler{Service: service}
}

func (h *LeadHandler) GetLeads(c *gin.Context) {
	rows, err := h.Service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

type CreateLeadRequest struct {
	Name    string `json:"name" binding:"required"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone" binding:"required"`
	Website string `json:"website"`
}

func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lead := models.Lead{
		Name:    req.Name,
		Company: req.Company,
		Email:   req.Email,
		Phone:   req.Phone,
		Website: req.Website,
		Status:  "new",
	}
	if err := h.Service.Create(c.Request.Context(), &lead); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create lead"})
		return
	}
	c.JSON(http.StatusCreated, lead)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *LeadHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Lead updated"})
}

type UpdatePriorityRequest struct {
	Priority *string `json:"priority"`
}

func (h *LeadHandler) UpdatePriority(c *gin.Context) {
	var req UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Service.UpdatePriority(c.Request.Context(), c.Param("id"), req.Priority)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Priority updated"})
}

func (h *LeadHandler) DeleteLead(c *gin.Context) {
	err := h.Service.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete lead"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Lead deleted"})
}

type SearchRequest struct {
	City     string `json:"city" binding:"required"`
	District string `json:"district"`
	Sector   string `json:"sector" binding:"required"`
	Limit    int    `json:"limit"`
}

// Search triggers a scraping run and returns the stored leads. The same
// pipeline serves scheduled searches.
func (h *LeadHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	found, err := h.Service.Search(c.Request.Context(), n8n.SearchConfig{
		City:     req.City,
		District: req.District,
		Sector:   req.Sector,
		Limit:    req.Limit,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Lead search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(found), "leads": found})
}
