package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"leadgen-dashboard/internal/cache"
	"leadgen-dashboard/internal/database"
	"leadgen-dashboard/internal/history"
	"leadgen-dashboard/internal/n8n"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeGenerator struct{}

func (fakeGenerator) GenerateMessage(_ context.Context, companyName, offerType string) string {
	return fmt.Sprintf("generated for %s (%s)", companyName, offerType)
}

type fakeSender struct {
	mu      sync.Mutex
	batches [][]n8n.BulkMessage
	err     error
	block   chan struct{}
}

func (s *fakeSender) SendBulk(_ context.Context, messages []n8n.BulkMessage) (*n8n.BulkResult, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.batches = append(s.batches, messages)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &n8n.BulkResult{Success: true, Message: "ok", TotalSent: len(messages)}, nil
}

func (s *fakeSender) lastBatch() []n8n.BulkMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batches) == 0 {
		return nil
	}
	return s.batches[len(s.batches)-1]
}

func newTestManager(t *testing.T, sender *fakeSender) (*Manager, *history.Tracker, *cache.Cache) {
	t.Helper()
	dir := t.TempDir()

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "remote.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)

	tracker := history.NewTracker(db, c, zerolog.Nop())
	m := NewManager(fakeGenerator{}, sender, tracker, c, "test teklifi", zerolog.Nop())
	return m, tracker, c
}

func waitAllPending(t *testing.T, m *Manager) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, it := range m.Items() {
			if it.Status == StatusGenerating {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond, "generation never resolved")
}

func TestEnqueueGeneratesMessages(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeSender{})

	result := m.Enqueue([]Lead{{ID: "l1", Name: "Kardeşler Lokantası", Company: "Restoran", Phone: "+905321112233"}})
	require.Len(t, result.Added, 1)
	assert.Empty(t, result.Duplicates)
	assert.Equal(t, StatusGenerating, result.Added[0].Status)
	assert.Equal(t, "Mesaj hazırlanıyor...", result.Added[0].Message)

	waitAllPending(t, m)

	items := m.Items()
	require.Len(t, items, 1)
	assert.Equal(t, StatusPending, items[0].Status)
	assert.Equal(t, "generated for Kardeşler Lokantası (test teklifi)", items[0].Message)
	assert.Equal(t, 1, m.PendingCount())
}

func TestEnqueueSkipsDuplicates(t *testing.T) {
	m, tracker, _ := newTestManager(t, &fakeSender{})

	tracker.MarkAsSent(context.Background(), []history.LeadRef{{ID: "sent-1", Name: "Yıldız Emlak"}})

	m.Enqueue([]Lead{{ID: "live-1", Name: "Moda Kuaför", Phone: "+905357778899"}})
	waitAllPending(t, m)

	result := m.Enqueue([]Lead{
		{ID: "live-1", Name: "Moda Kuaför", Phone: "+905357778899"},
		{ID: "sent-1", Name: "Yıldız Emlak", Phone: "+905334445566"},
		{ID: "new-1", Name: "Tekno Bilgisayar", Phone: "+905360001122"},
	})

	require.Len(t, result.Added, 1)
	assert.Equal(t, "new-1", result.Added[0].Lead.ID)
	assert.ElementsMatch(t, []string{"Moda Kuaför", "Yıldız Emlak"}, result.Duplicates)
}

func TestSendAllDeliversPendingBatch(t *testing.T) {
	sender := &fakeSender{}
	m, tracker, _ := newTestManager(t, sender)

	m.Enqueue([]Lead{
		{ID: "l1", Name: "Kardeşler Lokantası", Company: "Restoran", Phone: "+905321112233"},
		{ID: "l2", Name: "Moda Kuaför", Company: "Kuaför", Phone: "+905357778899"},
	})
	waitAllPending(t, m)

	result, err := m.SendAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.TotalSent)

	batch := sender.lastBatch()
	require.Len(t, batch, 2)
	assert.Equal(t, "+905321112233", batch[0].Phone)
	assert.Equal(t, "Kardeşler Lokantası", batch[0].CompanyName)
	assert.Equal(t, "Restoran", batch[0].CompanyCategory)
	assert.Contains(t, batch[0].Message, "Kardeşler Lokantası")

	for _, it := range m.Items() {
		assert.Equal(t, StatusSent, it.Status)
	}
	assert.True(t, tracker.WasSent("l1"))
	assert.True(t, tracker.WasSent("l2"))
	assert.Equal(t, 0, m.PendingCount())
}

func TestSendAllEmptyQueue(t *testing.T) {
	sender := &fakeSender{}
	m, _, _ := newTestManager(t, sender)

	result, err := m.SendAll(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, sender.lastBatch(), "no delivery call for an empty queue")
}

func TestSendAllFailureMarksItemsFailed(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("workflow down")}
	m, tracker, _ := newTestManager(t, sender)

	m.Enqueue([]Lead{{ID: "l1", Name: "Kardeşler Lokantası", Phone: "+905321112233"}})
	waitAllPending(t, m)

	_, err := m.SendAll(context.Background())
	require.Error(t, err)

	items := m.Items()
	require.Len(t, items, 1)
	assert.Equal(t, StatusFailed, items[0].Status)
	assert.Equal(t, "workflow down", items[0].Error)
	assert.False(t, tracker.WasSent("l1"), "failed sends never reach the sent log")

	// Retry moves the item back to pending for the next batch.
	require.NoError(t, m.Retry(items[0].ID))
	items = m.Items()
	assert.Equal(t, StatusPending, items[0].Status)
	assert.Empty(t, items[0].Error)
}

func TestRetryRejectsNonFailedItems(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeSender{})

	m.Enqueue([]Lead{{ID: "l1", Name: "Kardeşler Lokantası", Phone: "+905321112233"}})
	waitAllPending(t, m)

	items := m.Items()
	require.Len(t, items, 1)
	assert.Error(t, m.Retry(items[0].ID))
	assert.Error(t, m.Retry("no-such-item"))
}

func TestRemoveRejectsItemsMidSend(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	m, _, _ := newTestManager(t, sender)

	m.Enqueue([]Lead{{ID: "l1", Name: "Kardeşler Lokantası", Phone: "+905321112233"}})
	waitAllPending(t, m)

	itemID := m.Items()[0].ID
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.SendAll(context.Background())
	}()

	require.Eventually(t, func() bool {
		items := m.Items()
		return len(items) == 1 && items[0].Status == StatusSending
	}, 2*time.Second, 10*time.Millisecond)

	assert.Error(t, m.Remove(itemID), "items mid-send stay until the bulk call resolves")

	close(sender.block)
	<-done

	require.NoError(t, m.Remove(itemID))
	assert.Empty(t, m.Items())
}

func TestClear(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeSender{})

	m.Enqueue([]Lead{{ID: "l1", Name: "Kardeşler Lokantası", Phone: "+905321112233"}})
	waitAllPending(t, m)

	m.Clear()
	assert.Empty(t, m.Items())
	assert.Equal(t, 0, m.PendingCount())
}

func TestLoadDemotesInterruptedItems(t *testing.T) {
	m, _, c := newTestManager(t, &fakeSender{})

	stored := []Item{
		{ID: "i1", Lead: Lead{ID: "l1", Name: "Kardeşler Lokantası"}, Message: "hazır mesaj", Status: StatusSending},
		{ID: "i2", Lead: Lead{ID: "l2", Name: "Moda Kuaför"}, Message: "Mesaj hazırlanıyor...", Status: StatusGenerating},
		{ID: "i3", Lead: Lead{ID: "l3", Name: "Yıldız Emlak"}, Message: "bekleyen mesaj", Status: StatusPending},
	}
	require.NoError(t, c.Put(cache.KeyMessageQueue, stored))

	m.Load()

	items := m.Items()
	require.Len(t, items, 3)

	assert.Equal(t, StatusFailed, items[0].Status)
	assert.Equal(t, "interrupted by restart", items[0].Error)

	assert.Equal(t, StatusPending, items[1].Status)
	assert.Equal(t, "Merhaba Moda Kuaför! 🚀 test teklifi hakkında görüşmek isteriz.", items[1].Message)

	assert.Equal(t, StatusPending, items[2].Status)
	assert.Equal(t, "bekleyen mesaj", items[2].Message)
}

func TestQueueSurvivesRestart(t *testing.T) {
	sender := &fakeSender{}
	m, tracker, c := newTestManager(t, sender)

	m.Enqueue([]Lead{{ID: "l1", Name: "Kardeşler Lokantası", Phone: "+905321112233"}})
	waitAllPending(t, m)

	// A second manager over the same cache sees the same queue.
	restarted := NewManager(fakeGenerator{}, sender, tracker, c, "test teklifi", zerolog.Nop())
	restarted.Load()

	items := restarted.Items()
	require.Len(t, items, 1)
	assert.Equal(t, StatusPending, items[0].Status)
	assert.Equal(t, "l1", items[0].Lead.ID)
}
