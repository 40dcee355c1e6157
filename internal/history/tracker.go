package history

import (
	"context"
	"sync"
	"time"

	"leadgen-dashboard/internal/cache"
	"leadgen-dashboard/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadRef is the minimal lead identity the tracker works with.
type LeadRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SentRecord is the cached shape of one sent-log row.
type SentRecord struct {
	LeadID   string    `json:"leadId"`
	LeadName string    `json:"leadName"`
	SentAt   time.Time `json:"sentAt"`
}

// Tracker answers "was this lead already messaged" from two layers: a
// local cache that is always available and the remote sent log that is
// authoritative once a sync lands. All remote failures degrade to the
// local view and are only logged; no method returns an error upward.
type Tracker struct {
	mu      sync.RWMutex
	records []SentRecord
	ids     map[string]time.Time

	db    *gorm.DB
	cache *cache.Cache
	log   zerolog.Logger
}

func NewTracker(db *gorm.DB, c *cache.Cache, logger zerolog.Logger) *Tracker {
	return &Tracker{
		ids:   make(map[string]time.Time),
		db:    db,
		cache: c,
		log:   logger.With().Str("component", "history").Logger(),
	}
}

// Load hydrates from the local cache synchronously so callers are usable
// immediately, then reconciles against the remote log in the background.
func (t *Tracker) Load(ctx context.Context) {
	var records []SentRecord
	found, err := t.cache.Get(cache.KeySentHistory, &records)
	if err != nil {
		t.log.Warn().Err(err).Msg("sent-history cache read failed")
	}
	if found {
		t.replace(records)
	}

	go t.Sync(ctx)
}

// Sync fetches the full remote log, newest first, and overwrites both the
// in-memory state and the local cache. On failure the local view stays.
func (t *Tracker) Sync(ctx context.Context) {
	var rows []models.SentLog
	err := t.db.WithContext(ctx).Order("sent_at DESC").Find(&rows).Error
	if err != nil {
		t.log.Warn().Err(err).Msg("sent-history remote sync failed, keeping local view")
		return
	}

	records := make([]SentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, SentRecord{
			LeadID:   row.LeadID,
			LeadName: row.LeadName,
			SentAt:   row.SentAt,
		})
	}

	t.replace(records)
	if err := t.cache.Put(cache.KeySentHistory, records); err != nil {
		t.log.Warn().Err(err).Msg("sent-history cache write failed")
	}
	t.log.Info().Int("records", len(records)).Msg("sent history synced from remote log")
}

// MarkAsSent records one timestamp for the whole batch. Local state and
// cache are updated before the remote upsert resolves; a failed remote
// write is logged and accepted since the cache remains the fallback
// source for duplicate suppression.
func (t *Tracker) MarkAsSent(ctx context.Context, leads []LeadRef) {
	if len(leads) == 0 {
		return
	}
	now := time.Now().UTC()

	t.mu.Lock()
	fresh := make([]SentRecord, 0, len(leads))
	for _, l := range leads {
		fresh = append(fresh, SentRecord{LeadID: l.ID, LeadName: l.Name, SentAt: now})
		t.ids[l.ID] = now
	}
	t.records = append(fresh, t.records...)
	snapshot := make([]SentRecord, len(t.records))
	copy(snapshot, t.records)
	t.mu.Unlock()

	if err := t.cache.Put(cache.KeySentHistory, snapshot); err != nil {
		t.log.Warn().Err(err).Msg("sent-history cache write failed")
	}

	rows := make([]models.SentLog, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, models.SentLog{LeadID: l.ID, LeadName: l.Name, SentAt: now})
	}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lead_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lead_name", "sent_at"}),
	}).Create(&rows).Error
	if err != nil {
		t.log.Warn().Err(err).Int("leads", len(leads)).Msg("sent-log remote upsert failed")
	}
}

// WasSent reports whether the lead already has a sent record.
func (t *Tracker) WasSent(leadID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[leadID]
	return ok
}

// SentDate returns when the lead was last messaged, if ever.
func (t *Tracker) SentDate(leadID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.ids[leadID]
	return ts, ok
}

// FilterNew returns the subset of leads without a sent record.
func (t *Tracker) FilterNew(leads []LeadRef) []LeadRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]LeadRef, 0, len(leads))
	for _, l := range leads {
		if _, ok := t.ids[l.ID]; !ok {
			out = append(out, l)
		}
	}
	return out
}

// SentFrom returns the subset of leads that already have a sent record,
// used to list names in duplicate warnings.
func (t *Tracker) SentFrom(leads []LeadRef) []LeadRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]LeadRef, 0)
	for _, l := range leads {
		if _, ok := t.ids[l.ID]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Records returns a snapshot of the tracked history, newest first.
func (t *Tracker) Records() []SentRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]SentRecord, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Tracker) replace(records []SentRecord) {
	ids := make(map[string]time.Time, len(records))
	for _, r := range records {
		if _, ok := ids[r.LeadID]; !ok {
			ids[r.LeadID] = r.SentAt
		}
	}
	t.mu.Lock()
	t.records = records
	t.ids = ids
	t.mu.Unlock()
}
