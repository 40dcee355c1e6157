package api

import (
	"net/http"

	"leadgen-dashboard/internal/cache"
	"leadgen-dashboard/internal/config"
	"leadgen-dashboard/internal/history"
	"leadgen-dashboard/internal/leads"
	"leadgen-dashboard/internal/n8n"
	"leadgen-dashboard/internal/qr"
	"leadgen-dashboard/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type WhatsAppHandler struct {
	Config  *config.Config
	Queue   *queue.Manager
	Tracker *history.Tracker
	Leads   *leads.Service
	Client  *n8n.Client
	Watcher *qr.Watcher
	Cache   *cache.Cache
	log     zerolog.Logger
}

func NewWhatsAppHandler(cfg *config.Config, q *queue.Manager, tracker *history.Tracker, leadSvc *leads.Service, client *n8n.Client, watcher *qr.Watcher, c *cache.Cache, logger zerolog.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		Config:  cfg,
		Queue:   q,
		Tracker: tracker,
		Leads:   leadSvc,
		Client:  client,
		Watcher: watcher,
		Cache:   c,
		log:     logger.With().Str("component", "api").Logger(),
	}
}

func (h *WhatsAppHandler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items":   h.Queue.Items(),
		"pending": h.Queue.PendingCount(),
	})
}

type EnqueueRequest struct {
	LeadIDs []string `json:"lead_ids" binding:"required"`
}

// Enqueue resolves the requested leads and adds them to the queue.
// Duplicates (already queued or already messaged) are reported back as a
// warning while the rest proceed.
func (h *WhatsAppHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.Leads.GetMany(c.Request.Context(), req.LeadIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No matching leads found"})
		return
	}

	candidates := make([]queue.Lead, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, queue.Lead{
			ID:      row.ID,
			Name:    row.Name,
			Company: row.Company,
			Phone:   row.Phone,
		})
	}

	result := h.Queue.Enqueue(candidates)
	c.JSON(http.StatusOK, gin.H{
		"added":      len(result.Added),
		"duplicates": result.Duplicates,
		"items":      result.Added,
	})
}

// SendQueue fires the bulk send for every pending item. On success the
// affected leads are also moved to contacted.
func (h *WhatsAppHandler) SendQueue(c *gin.Context) {
	items := h.Queue.Items()
	var leadIDs []string
	for _, it := range items {
		if it.Status == queue.StatusPending {
			leadIDs = append(leadIDs, it.Lead.ID)
		}
	}

	result, err := h.Queue.SendAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Bulk send failed: " + err.Error()})
		return
	}

	if err := h.Leads.MarkContacted(c.Request.Context(), leadIDs); err != nil {
		h.log.Warn().Err(err).Msg("marking leads contacted failed")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "Bulk send started",
		"total_sent": result.TotalSent,
		"message":    result.Message,
	})
}

func (h *WhatsAppHandler) RetryItem(c *gin.Context) {
	if err := h.Queue.Retry(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Item queued for retry"})
}

func (h *WhatsAppHandler) RemoveItem(c *gin.Context) {
	if err := h.Queue.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Item removed"})
}

func (h *WhatsAppHandler) ClearQueue(c *gin.Context) {
	h.Queue.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "Queue cleared"})
}

// GetSentHistory returns the reconciled sent log, newest first.
func (h *WhatsAppHandler) GetSentHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.Tracker.Records())
}

type SessionRequest struct {
	InstanceName string `json:"instance_name"`
}

// StartSession asks the session workflow to begin pairing. The QR image
// arrives asynchronously through the store and webhook, not here.
func (h *WhatsAppHandler) StartSession(c *gin.Context) {
	var req SessionRequest
	_ = c.ShouldBindJSON(&req)
	if req.InstanceName == "" {
		req.InstanceName = h.Config.InstanceName
	}

	if err := h.Client.StartSession(c.Request.Context(), req.InstanceName); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Session start failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Session start triggered", "instance_name": req.InstanceName})
}

// GetQRCode returns the current fresh pairing image, falling back to a
// direct store read when the watcher holds nothing.
func (h *WhatsAppHandler) GetQRCode(c *gin.Context) {
	code, updatedAt, ok := h.Watcher.Current()
	if !ok {
		fetched, err := h.Watcher.Fetch(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if fetched == "" {
			c.JSON(http.StatusOK, gin.H{"qr_base64": nil})
			return
		}
		code, updatedAt, _ = h.Watcher.Current()
	}
	c.JSON(http.StatusOK, gin.H{"qr_base64": code, "updated_at": updatedAt})
}

func (h *WhatsAppHandler) ClearQRCode(c *gin.Context) {
	h.Watcher.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "QR code cleared"})
}

// GetSelection returns the mirrored selected-leads snapshot.
func (h *WhatsAppHandler) GetSelection(c *gin.Context) {
	var selection []queue.Lead
	if _, err := h.Cache.Get(cache.KeySelectedLeads, &selection); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if selection == nil {
		selection = []queue.Lead{}
	}
	c.JSON(http.StatusOK, selection)
}

// PutSelection overwrites the mirrored selected-leads snapshot.
func (h *WhatsAppHandler) PutSelection(c *gin.Context) {
	var selection []queue.Lead
	if err := c.ShouldBindJSON(&selection); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Cache.Put(cache.KeySelectedLeads, selection); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Selection saved", "count": len(selection)})
}
