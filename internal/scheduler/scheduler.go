package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadgen-dashboard/internal/cache"
	"leadgen-dashboard/internal/metrics"
	"leadgen-dashboard/internal/n8n"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PendingSearch is one scheduled lead search waiting to come due. The
// list lives only in the local cache, so it survives a restart but not a
// cache wipe.
type PendingSearch struct {
	ID            string           `json:"id"`
	Config        n8n.SearchConfig `json:"config"`
	ScheduledTime time.Time        `json:"scheduledTime"`
}

// SearchFunc is the shared lead-search entry point, the same one the
// manual search endpoint calls.
type SearchFunc func(ctx context.Context, cfg n8n.SearchConfig)

// NotifyFunc emits a dashboard notification.
type NotifyFunc func(ctx context.Context, typ, title, message string)

// Scheduler fires stored searches when their time comes. The check is
// "now >= target", so a search whose moment passed while the process was
// down fires on the first tick after restart.
type Scheduler struct {
	mu       sync.Mutex
	searches []PendingSearch

	search SearchFunc
	notify NotifyFunc
	cache  *cache.Cache
	cron   *cron.Cron
	now    func() time.Time
	log    zerolog.Logger
}

func New(search SearchFunc, notify NotifyFunc, c *cache.Cache, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		search: search,
		notify: notify,
		cache:  c,
		cron:   cron.New(),
		now:    time.Now,
		log:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Load restores pending searches from the local cache.
func (s *Scheduler) Load() {
	var searches []PendingSearch
	found, err := s.cache.Get(cache.KeyPendingSearches, &searches)
	if err != nil {
		s.log.Warn().Err(err).Msg("pending-searches cache read failed")
		return
	}
	if found {
		s.mu.Lock()
		s.searches = searches
		s.mu.Unlock()
		s.log.Info().Int("pending", len(searches)).Msg("pending searches restored from cache")
	}
}

// Start runs one immediate check, then checks every 30 seconds.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("@every 30s", func() {
		s.checkDue(context.Background())
	})
	if err != nil {
		return err
	}
	s.checkDue(context.Background())
	s.cron.Start()
	return nil
}

// Stop halts the tick. In-flight searches are not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Schedule validates and stores a new pending search. Validation happens
// before any state mutation.
func (s *Scheduler) Schedule(cfg n8n.SearchConfig, at time.Time) (PendingSearch, error) {
	if cfg.City == "" || cfg.Sector == "" {
		return PendingSearch{}, fmt.Errorf("city and sector are required")
	}
	if at.IsZero() {
		return PendingSearch{}, fmt.Errorf("scheduled time is required")
	}
	if at.Before(s.now()) {
		return PendingSearch{}, fmt.Errorf("scheduled time is in the past")
	}

	pending := PendingSearch{
		ID:            uuid.NewString(),
		Config:        cfg,
		ScheduledTime: at,
	}

	s.mu.Lock()
	s.searches = append(s.searches, pending)
	s.mu.Unlock()
	s.persist()

	s.log.Info().Str("id", pending.ID).Time("at", at).Str("sector", cfg.Sector).Str("city", cfg.City).Msg("search scheduled")
	return pending, nil
}

// Remove deletes one pending search by id.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	idx := -1
	for i := range s.searches {
		if s.searches[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return false
	}
	s.searches = append(s.searches[:idx], s.searches[idx+1:]...)
	s.mu.Unlock()
	s.persist()
	return true
}

// List returns a snapshot of pending searches in insertion order.
func (s *Scheduler) List() []PendingSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingSearch, len(s.searches))
	copy(out, s.searches)
	return out
}

// checkDue fires every entry whose scheduled time has passed, in list
// order, and removes each one before the search runs so a slow search
// cannot double-fire on the next tick.
func (s *Scheduler) checkDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []PendingSearch
	remaining := s.searches[:0]
	for _, p := range s.searches {
		if !now.Before(p.ScheduledTime) {
			due = append(due, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	s.searches = remaining
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}
	s.persist()

	for _, p := range due {
		s.log.Info().Str("id", p.ID).Str("sector", p.Config.Sector).Str("city", p.Config.City).Msg("scheduled search due, firing")
		metrics.RecordScheduledFire()
		s.notify(ctx, "automation", "Planlı Arama Başladı",
			fmt.Sprintf("%s/%s bölgesinde %s araması başlatıldı.", p.Config.City, p.Config.District, p.Config.Sector))
		go s.search(ctx, p.Config)
	}
}

func (s *Scheduler) persist() {
	s.mu.Lock()
	snapshot := make([]PendingSearch, len(s.searches))
	copy(snapshot, s.searches)
	s.mu.Unlock()

	if err := s.cache.Put(cache.KeyPendingSearches, snapshot); err != nil {
		s.log.Warn().Err(err).Msg("pending-searches cache write failed")
	}
}
