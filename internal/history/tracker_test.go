package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"leadgen-dashboard/internal/cache"
	"leadgen-dashboard/internal/database"
	"leadgen-dashboard/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestTracker(t *testing.T) (*Tracker, *gorm.DB, *cache.Cache) {
	t.Helper()
	dir := t.TempDir()

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "remote.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)

	return NewTracker(db, c, zerolog.Nop()), db, c
}

func TestMarkAsSentRecordsLocally(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	tracker.MarkAsSent(context.Background(), []LeadRef{
		{ID: "lead-1", Name: "Kardeşler Lokantası"},
		{ID: "lead-2", Name: "Yıldız Emlak"},
	})

	assert.True(t, tracker.WasSent("lead-1"))
	assert.True(t, tracker.WasSent("lead-2"))
	assert.False(t, tracker.WasSent("lead-3"))

	// The whole batch shares one timestamp.
	d1, ok := tracker.SentDate("lead-1")
	require.True(t, ok)
	d2, ok := tracker.SentDate("lead-2")
	require.True(t, ok)
	assert.Equal(t, d1, d2)
}

func TestMarkAsSentUpsertsRemoteRow(t *testing.T) {
	tracker, db, _ := newTestTracker(t)

	tracker.MarkAsSent(context.Background(), []LeadRef{{ID: "lead-1", Name: "Moda Kuaför"}})
	first, ok := tracker.SentDate("lead-1")
	require.True(t, ok)

	time.Sleep(10 * time.Millisecond)
	tracker.MarkAsSent(context.Background(), []LeadRef{{ID: "lead-1", Name: "Moda Kuaför"}})
	second, ok := tracker.SentDate("lead-1")
	require.True(t, ok)
	assert.True(t, second.After(first), "re-send should refresh the timestamp")

	// A re-send overwrites the previous row instead of appending one.
	var count int64
	require.NoError(t, db.Model(&models.SentLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var row models.SentLog
	require.NoError(t, db.First(&row, "lead_id = ?", "lead-1").Error)
	assert.Equal(t, second.Unix(), row.SentAt.Unix())
}

func TestFilterNewAndSentFrom(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	tracker.MarkAsSent(context.Background(), []LeadRef{{ID: "sent-1", Name: "A"}})

	candidates := []LeadRef{
		{ID: "sent-1", Name: "A"},
		{ID: "new-1", Name: "B"},
		{ID: "new-2", Name: "C"},
	}

	fresh := tracker.FilterNew(candidates)
	require.Len(t, fresh, 2)
	assert.Equal(t, "new-1", fresh[0].ID)
	assert.Equal(t, "new-2", fresh[1].ID)

	dupes := tracker.SentFrom(candidates)
	require.Len(t, dupes, 1)
	assert.Equal(t, "sent-1", dupes[0].ID)
}

func TestSyncOverwritesLocalView(t *testing.T) {
	tracker, db, c := newTestTracker(t)

	// Local cache claims one lead was messaged; the remote log disagrees.
	stale := []SentRecord{{LeadID: "ghost", LeadName: "Ghost", SentAt: time.Now().UTC()}}
	require.NoError(t, c.Put(cache.KeySentHistory, stale))

	older := time.Now().UTC().Add(-2 * time.Hour)
	newer := time.Now().UTC().Add(-1 * time.Hour)
	require.NoError(t, db.Create(&models.SentLog{LeadID: "lead-1", LeadName: "A", SentAt: older}).Error)
	require.NoError(t, db.Create(&models.SentLog{LeadID: "lead-2", LeadName: "B", SentAt: newer}).Error)

	tracker.Sync(context.Background())

	assert.False(t, tracker.WasSent("ghost"), "remote log is authoritative after sync")
	assert.True(t, tracker.WasSent("lead-1"))
	assert.True(t, tracker.WasSent("lead-2"))

	records := tracker.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "lead-2", records[0].LeadID, "newest record comes first")

	// The cache was rewritten with the reconciled view.
	var cached []SentRecord
	found, err := c.Get(cache.KeySentHistory, &cached)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, cached, 2)
}

func TestLoadHydratesFromCache(t *testing.T) {
	tracker, db, c := newTestTracker(t)

	sentAt := time.Now().UTC().Add(-time.Hour)
	records := []SentRecord{{LeadID: "lead-1", LeadName: "A", SentAt: sentAt}}
	require.NoError(t, c.Put(cache.KeySentHistory, records))
	require.NoError(t, db.Create(&models.SentLog{LeadID: "lead-1", LeadName: "A", SentAt: sentAt}).Error)

	tracker.Load(context.Background())

	// Usable immediately, before the background sync lands.
	assert.True(t, tracker.WasSent("lead-1"))
}
