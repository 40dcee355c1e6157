package leads

import (
	"context"
	"fmt"

	"leadgen-dashboard/internal/metrics"
	"leadgen-dashboard/internal/models"
	"leadgen-dashboard/internal/n8n"
	"leadgen-dashboard/internal/notify"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Searcher triggers the external scraping workflow.
type Searcher interface {
	SearchLeads(ctx context.Context, cfg n8n.SearchConfig) ([]models.Lead, error)
}

// Service owns the lead-search entry point shared by the manual API path
// and the scheduler, plus lead persistence.
type Service struct {
	db       *gorm.DB
	searcher Searcher
	notifier *notify.Service
	log      zerolog.Logger
}

func NewService(db *gorm.DB, searcher Searcher, notifier *notify.Service, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		searcher: searcher,
		notifier: notifier,
		log:      logger.With().Str("component", "leads").Logger(),
	}
}

// Search runs the scraping workflow, stores whatever came back and emits
// a success or error notification. Zero results is a normal outcome.
func (s *Service) Search(ctx context.Context, cfg n8n.SearchConfig) ([]models.Lead, error) {
	return s.run(ctx, cfg, "manual")
}

// SearchScheduled is the scheduler's entry point: same pipeline, counted
// under the scheduled trigger, errors absorbed since no caller waits.
func (s *Service) SearchScheduled(ctx context.Context, cfg n8n.SearchConfig) {
	if _, err := s.run(ctx, cfg, "scheduled"); err != nil {
		s.log.Warn().Err(err).Msg("scheduled search failed")
	}
}

func (s *Service) run(ctx context.Context, cfg n8n.SearchConfig, trigger string) ([]models.Lead, error) {
	found, err := s.searcher.SearchLeads(ctx, cfg)
	if err != nil {
		metrics.RecordSearch(trigger, "error")
		s.log.Error().Err(err).Str("sector", cfg.Sector).Str("city", cfg.City).Msg("lead search failed")
		s.notifier.Add(ctx, "error", "Arama Hatası",
			fmt.Sprintf("%s araması sırasında hata oluştu: %v", cfg.Sector, err), nil)
		return nil, err
	}

	if len(found) > 0 {
		if err := s.db.WithContext(ctx).Create(&found).Error; err != nil {
			metrics.RecordSearch(trigger, "error")
			s.log.Error().Err(err).Int("leads", len(found)).Msg("saving leads failed")
			s.notifier.Add(ctx, "error", "Arama Hatası",
				fmt.Sprintf("%d lead bulundu ancak kaydedilemedi", len(found)), nil)
			return nil, err
		}
	}

	metrics.RecordSearch(trigger, "ok")
	metrics.RecordLeadsCollected(len(found))
	s.log.Info().Int("leads", len(found)).Str("sector", cfg.Sector).Str("city", cfg.City).Msg("lead search completed")
	s.notifier.Add(ctx, "success", "Arama Tamamlandı",
		fmt.Sprintf("%s sektöründe %s bölgesinde %d yeni lead bulundu.", cfg.Sector, cfg.City, len(found)), nil)
	return found, nil
}

// List returns stored leads, newest first.
func (s *Service) List(ctx context.Context) ([]models.Lead, error) {
	var rows []models.Lead
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
	if rows == nil {
		rows = []models.Lead{}
	}
	return rows, err
}

// Get fetches one lead by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetMany fetches the given leads, skipping unknown ids.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]models.Lead, error) {
	var rows []models.Lead
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// Create stores a manually entered lead.
func (s *Service) Create(ctx context.Context, lead *models.Lead) error {
	if lead.Status == "" {
		lead.Status = "new"
	}
	return s.db.WithContext(ctx).Create(lead).Error
}

// UpdateStatus moves a lead through its pipeline states.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case "new", "contacted", "interested", "closed":
	default:
		return fmt.Errorf("invalid status %q", status)
	}
	res := s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePriority sets or clears a lead's priority flag.
func (s *Service) UpdatePriority(ctx context.Context, id string, priority *string) error {
	if priority != nil {
		switch *priority {
		case "hot", "warm", "cold":
		default:
			return fmt.Errorf("invalid priority %q", *priority)
		}
	}
	res := s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Update("priority", priority)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a lead permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Lead{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkContacted bulk-updates lead statuses after a send.
func (s *Service) MarkContacted(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Lead{}).Where("id IN ?", ids).Update("status", "contacted").Error
}
