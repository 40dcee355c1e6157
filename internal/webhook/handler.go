package webhook

import (
	"net/http"
	"strings"
	"time"

	"leadgen-dashboard/internal/config"
	"leadgen-dashboard/internal/metrics"
	"leadgen-dashboard/internal/models"
	"leadgen-dashboard/internal/notify"
	"leadgen-dashboard/internal/qr"
	"leadgen-dashboard/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler receives callbacks from the n8n workflows: freshly generated
// pairing images and completion notifications from the delivery run.
type Handler struct {
	Config  *config.Config
	DB      *gorm.DB
	Watcher *qr.Watcher
	Notify  *notify.Service
	Hub     *ws.Hub
	log     zerolog.Logger
}

func NewHandler(cfg *config.Config, db *gorm.DB, watcher *qr.Watcher, notifier *notify.Service, hub *ws.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		Config:  cfg,
		DB:      db,
		Watcher: watcher,
		Notify:  notifier,
		Hub:     hub,
		log:     logger.With().Str("component", "webhook").Logger(),
	}
}

// verifyToken rejects callbacks that do not carry the shared token. An
// empty configured token disables the check for local setups.
func (h *Handler) verifyToken(c *gin.Context) bool {
	if h.Config.VerifyToken == "" {
		return true
	}
	if c.GetHeader("X-Webhook-Token") == h.Config.VerifyToken {
		return true
	}
	c.Status(http.StatusForbidden)
	return false
}

type qrPayload struct {
	InstanceName string `json:"instance_name" binding:"required"`
	QRBase64     string `json:"qr_base64" binding:"required"`
}

// HandleQRCode stores the pairing image delivered by the session
// workflow and pushes it straight to the watcher and connected clients.
// The 3-second poll covers deployments where this push never arrives.
func (h *Handler) HandleQRCode(c *gin.Context) {
	if !h.verifyToken(c) {
		return
	}

	var payload qrPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row := models.QRCode{
		InstanceName: payload.InstanceName,
		QRBase64:     payload.QRBase64,
		UpdatedAt:    time.Now(),
	}
	err := h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"qr_base64", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		h.log.Error().Err(err).Str("instance", payload.InstanceName).Msg("qr row upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store QR code"})
		return
	}

	metrics.RecordWebhookEvent("qr")
	if payload.InstanceName == h.Config.InstanceName {
		h.Watcher.Notify(payload.QRBase64)
	}

	c.JSON(http.StatusOK, gin.H{"status": "QR code stored"})
}

type notificationPayload struct {
	Type    string  `json:"type"`
	Title   string  `json:"title" binding:"required"`
	Message string  `json:"message"`
	LeadID  *string `json:"lead_id"`
}

// HandleNotification stores a workflow-emitted notification. Completion
// events from the bulk delivery run get an extra broadcast so the
// dashboard can flip its sending banner.
func (h *Handler) HandleNotification(c *gin.Context) {
	if !h.verifyToken(c) {
		return
	}

	var payload notificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.Type == "" {
		payload.Type = "message"
	}

	metrics.RecordWebhookEvent("notification")
	h.Notify.Add(c.Request.Context(), payload.Type, payload.Title, payload.Message, payload.LeadID)

	if strings.Contains(payload.Title, "Tamamlandı") {
		h.Hub.NotifyBulkSendCompleted(payload.Title, payload.Message)
	}

	c.JSON(http.StatusOK, gin.H{"status": "Notification stored"})
}
