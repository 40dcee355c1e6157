package notify

import (
	"context"

	"leadgen-dashboard/internal/models"
	"leadgen-dashboard/internal/ws"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Service stores dashboard notifications and pushes them to connected
// clients. Constructed once at startup and injected wherever events are
// raised.
type Service struct {
	db  *gorm.DB
	hub *ws.Hub
	log zerolog.Logger
}

func NewService(db *gorm.DB, hub *ws.Hub, logger zerolog.Logger) *Service {
	return &Service{
		db:  db,
		hub: hub,
		log: logger.With().Str("component", "notify").Logger(),
	}
}

// Add inserts a notification row and broadcasts it. A failed insert is
// logged and the broadcast skipped; callers treat notifications as
// best-effort.
func (s *Service) Add(ctx context.Context, typ, title, message string, leadID *string) {
	n := models.Notification{
		Type:    typ,
		Title:   title,
		Message: message,
		LeadID:  leadID,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.log.Warn().Err(err).Str("title", title).Msg("notification insert failed")
		return
	}
	s.hub.NotifyNotification(n)
}

// List returns the newest notifications, most recent first.
func (s *Service) List(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Notification
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error
	if rows == nil {
		rows = []models.Notification{}
	}
	return rows, err
}

// UnreadCount reports how many notifications are unread.
func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).Where("read = ?", false).Count(&count).Error
	return count, err
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("read", true).Error
}

// MarkAllRead flags every notification as read.
func (s *Service) MarkAllRead(ctx context.Context) error {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("read = ?", false).Update("read", true).Error
}

// Clear deletes one notification.
func (s *Service) Clear(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Notification{}, "id = ?", id).Error
}

// ClearAll deletes every notification.
func (s *Service) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&models.Notification{}).Error
}
