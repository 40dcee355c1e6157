package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadgen-dashboard/internal/cache"
	"leadgen-dashboard/internal/history"
	"leadgen-dashboard/internal/metrics"
	"leadgen-dashboard/internal/n8n"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is the lifecycle state of a queue item. Transitions are
// one-directional: generating→pending, pending→sending,
// sending→sent|failed; the only way back is the explicit retry edge
// failed→pending.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusPending    Status = "pending"
	StatusSending    Status = "sending"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Lead is the snapshot embedded in a queue item. It is a copy, not a
// live reference; later edits to the stored lead do not affect the queue.
type Lead struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
}

// Item is one outbound message owned exclusively by the Manager.
type Item struct {
	ID      string `json:"id"`
	Lead    Lead   `json:"lead"`
	Message string `json:"message"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Generator produces the outreach text for one lead. Implementations
// must not fail; they fall back to a deterministic template instead.
type Generator interface {
	GenerateMessage(ctx context.Context, companyName, offerType string) string
}

// Sender delivers a whole batch in one call.
type Sender interface {
	SendBulk(ctx context.Context, messages []n8n.BulkMessage) (*n8n.BulkResult, error)
}

// EnqueueResult reports what Enqueue did with each candidate.
type EnqueueResult struct {
	Added      []Item   `json:"added"`
	Duplicates []string `json:"duplicates"`
}

// Manager holds the outbound message queue. Every mutation is mirrored to
// the local cache so the queue survives a restart.
type Manager struct {
	mu    sync.Mutex
	items []Item

	gen       Generator
	sender    Sender
	tracker   *history.Tracker
	cache     *cache.Cache
	offerType string
	log       zerolog.Logger
}

func NewManager(gen Generator, sender Sender, tracker *history.Tracker, c *cache.Cache, offerType string, logger zerolog.Logger) *Manager {
	return &Manager{
		gen:       gen,
		sender:    sender,
		tracker:   tracker,
		cache:     c,
		offerType: offerType,
		log:       logger.With().Str("component", "queue").Logger(),
	}
}

// Load restores the queue from the local cache. Items whose async work
// died with the previous process are demoted to a retryable state:
// sending becomes failed, generating becomes pending with the fallback
// template.
func (m *Manager) Load() {
	var items []Item
	found, err := m.cache.Get(cache.KeyMessageQueue, &items)
	if err != nil {
		m.log.Warn().Err(err).Msg("queue cache read failed")
		return
	}
	if !found {
		return
	}

	for i := range items {
		switch items[i].Status {
		case StatusSending:
			items[i].Status = StatusFailed
			items[i].Error = "interrupted by restart"
		case StatusGenerating:
			items[i].Status = StatusPending
			items[i].Message = fallbackTemplate(items[i].Lead.Name, m.offerType)
		}
	}

	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
	m.persist()
	m.log.Info().Int("items", len(items)).Msg("message queue restored from cache")
}

// Enqueue adds one queue item per accepted lead. A lead is rejected when
// it already has a live (non-terminal) item or a sent record. Accepted
// leads appear immediately in generating state; each one's message is
// resolved concurrently and independently, so a slow or failing
// generation for one lead never blocks the others.
func (m *Manager) Enqueue(leads []Lead) EnqueueResult {
	var result EnqueueResult

	m.mu.Lock()
	live := make(map[string]bool)
	for _, it := range m.items {
		if it.Status == StatusGenerating || it.Status == StatusPending || it.Status == StatusSending {
			live[it.Lead.ID] = true
		}
	}
	for _, lead := range leads {
		if live[lead.ID] || m.tracker.WasSent(lead.ID) {
			result.Duplicates = append(result.Duplicates, lead.Name)
			continue
		}
		live[lead.ID] = true
		item := Item{
			ID:      uuid.NewString(),
			Lead:    lead,
			Message: "Mesaj hazırlanıyor...",
			Status:  StatusGenerating,
		}
		m.items = append(m.items, item)
		result.Added = append(result.Added, item)
	}
	m.mu.Unlock()

	if len(result.Added) > 0 {
		m.persist()
	}
	for _, item := range result.Added {
		go m.generate(item.ID, item.Lead)
	}

	if len(result.Duplicates) > 0 {
		m.log.Info().Strs("duplicates", result.Duplicates).Msg("leads skipped at enqueue")
	}
	return result
}

// generate resolves one generating item to pending. Runs detached from
// the enqueue request so the HTTP caller never waits on the AI workflow.
func (m *Manager) generate(itemID string, lead Lead) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	message := m.gen.GenerateMessage(ctx, lead.Name, m.offerType)

	m.mu.Lock()
	for i := range m.items {
		if m.items[i].ID == itemID && m.items[i].Status == StatusGenerating {
			m.items[i].Message = message
			m.items[i].Status = StatusPending
			break
		}
	}
	m.mu.Unlock()
	m.persist()
}

// SendAll hands every pending item to the delivery workflow in a single
// bulk call. The batch is coarse-grained: it succeeds or fails as a
// whole, because the workflow does its own per-message pacing.
func (m *Manager) SendAll(ctx context.Context) (*n8n.BulkResult, error) {
	m.mu.Lock()
	var batch []Item
	for i := range m.items {
		if m.items[i].Status == StatusPending {
			m.items[i].Status = StatusSending
			batch = append(batch, m.items[i])
		}
	}
	m.mu.Unlock()

	if len(batch) == 0 {
		return &n8n.BulkResult{Success: true, Message: "queue empty"}, nil
	}
	m.persist()

	messages := make([]n8n.BulkMessage, 0, len(batch))
	refs := make([]history.LeadRef, 0, len(batch))
	for _, it := range batch {
		messages = append(messages, n8n.BulkMessage{
			Phone:           it.Lead.Phone,
			Message:         it.Message,
			CompanyName:     it.Lead.Name,
			CompanyCategory: it.Lead.Company,
		})
		refs = append(refs, history.LeadRef{ID: it.Lead.ID, Name: it.Lead.Name})
	}

	result, err := m.sender.SendBulk(ctx, messages)
	if err != nil {
		m.resolveSending(StatusFailed, err.Error())
		metrics.RecordSendFailure()
		m.log.Error().Err(err).Int("batch", len(batch)).Msg("bulk send failed")
		return result, err
	}

	m.resolveSending(StatusSent, "")
	m.tracker.MarkAsSent(ctx, refs)
	metrics.RecordMessagesSent(len(batch))
	m.log.Info().Int("batch", len(batch)).Msg("bulk send accepted by delivery workflow")
	return result, nil
}

func (m *Manager) resolveSending(to Status, errMsg string) {
	m.mu.Lock()
	for i := range m.items {
		if m.items[i].Status == StatusSending {
			m.items[i].Status = to
			m.items[i].Error = errMsg
		}
	}
	m.mu.Unlock()
	m.persist()
}

// Retry moves a single failed item back to pending.
func (m *Manager) Retry(id string) error {
	m.mu.Lock()
	var found bool
	for i := range m.items {
		if m.items[i].ID == id {
			if m.items[i].Status != StatusFailed {
				m.mu.Unlock()
				return fmt.Errorf("item %s is %s, only failed items can be retried", id, m.items[i].Status)
			}
			m.items[i].Status = StatusPending
			m.items[i].Error = ""
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("queue item %s not found", id)
	}
	m.persist()
	return nil
}

// Remove drops one item. Items mid-send stay until the bulk call
// resolves.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	idx := -1
	for i := range m.items {
		if m.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return fmt.Errorf("queue item %s not found", id)
	}
	if m.items[idx].Status == StatusSending {
		m.mu.Unlock()
		return fmt.Errorf("item %s is being sent and cannot be removed", id)
	}
	m.items = append(m.items[:idx], m.items[idx+1:]...)
	m.mu.Unlock()
	m.persist()
	return nil
}

// Clear empties the queue.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	m.persist()
}

// Items returns a snapshot of the queue in insertion order.
func (m *Manager) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// PendingCount reports how many items the next SendAll would pick up.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.Status == StatusPending {
			n++
		}
	}
	return n
}

func (m *Manager) persist() {
	m.mu.Lock()
	snapshot := make([]Item, len(m.items))
	copy(snapshot, m.items)
	m.mu.Unlock()

	if err := m.cache.Put(cache.KeyMessageQueue, snapshot); err != nil {
		m.log.Warn().Err(err).Msg("queue cache write failed")
	}
}

func fallbackTemplate(name, offerType string) string {
	return fmt.Sprintf("Merhaba %s! 🚀 %s hakkında görüşmek isteriz.", name, offerType)
}
