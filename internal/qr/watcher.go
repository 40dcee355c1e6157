package qr

import (
	"context"
	"errors"
	"sync"
	"time"

	"leadgen-dashboard/internal/models"
	"leadgen-dashboard/internal/ws"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Pairing images older than this are treated as absent even when the row
// exists; the session workflow rotates codes well inside this window.
const freshnessWindow = 3 * time.Minute

const pollInterval = 3 * time.Second

// Watcher keeps the latest fresh pairing image for one messaging
// instance. Delivery is dual-channel on purpose: the inbound webhook
// pushes new images the moment they land, and an independent poll reads
// the store every few seconds for environments where the push path is
// unreachable. Both paths write the same state, last writer wins.
type Watcher struct {
	mu        sync.RWMutex
	current   string
	updatedAt time.Time

	db       *gorm.DB
	hub      *ws.Hub
	instance string
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

func NewWatcher(db *gorm.DB, hub *ws.Hub, instanceName string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		db:       db,
		hub:      hub,
		instance: instanceName,
		now:      time.Now,
		stop:     make(chan struct{}),
		log:      logger.With().Str("component", "qr").Str("instance", instanceName).Logger(),
	}
}

// Start runs the polling fallback until Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.Fetch(ctx); err != nil {
					w.log.Warn().Err(err).Msg("qr poll failed")
				}
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Fetch reads the newest pairing row for the instance and applies the
// freshness rule: a row whose updated_at is outside the 3-minute window
// is reported as absent, never as an expired image.
func (w *Watcher) Fetch(ctx context.Context) (string, error) {
	var row models.QRCode
	err := w.db.WithContext(ctx).
		Where("instance_name = ?", w.instance).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if w.now().Sub(row.UpdatedAt) >= freshnessWindow {
		w.log.Debug().Time("updated_at", row.UpdatedAt).Msg("qr row is stale, ignoring")
		return "", nil
	}

	w.set(row.QRBase64, row.UpdatedAt)
	return row.QRBase64, nil
}

// Notify is the push path, called by the inbound webhook when the
// session workflow writes a new image.
func (w *Watcher) Notify(qrBase64 string) {
	w.set(qrBase64, w.now())
	w.hub.NotifyQRUpdate(w.instance, qrBase64)
}

// Current returns the last accepted image and its timestamp. Images that
// have aged past the freshness window since being stored are reported as
// absent here too.
func (w *Watcher) Current() (string, time.Time, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == "" || w.now().Sub(w.updatedAt) >= freshnessWindow {
		return "", time.Time{}, false
	}
	return w.current, w.updatedAt, true
}

// Clear drops the held image, e.g. after a successful pairing.
func (w *Watcher) Clear() {
	w.mu.Lock()
	w.current = ""
	w.updatedAt = time.Time{}
	w.mu.Unlock()
}

func (w *Watcher) set(qrBase64 string, at time.Time) {
	w.mu.Lock()
	w.current = qrBase64
	w.updatedAt = at
	w.mu.Unlock()
}
