package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Keys mirrored by the dashboard. Values are JSON-serialized snapshots.
const (
	KeySelectedLeads   = "whatsapp_selected_leads"
	KeyMessageQueue    = "whatsapp_message_queue"
	KeySentHistory     = "whatsapp_sent_history"
	KeyPendingSearches = "pending_searches"
)

type entry struct {
	Key       string    `gorm:"primaryKey;type:varchar(100)"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (entry) TableName() string {
	return "cache_entries"
}

// Cache is a durable local key-value mirror backed by an embedded SQLite
// file. It is the fast, always-available side of every state pair; the
// Postgres store stays authoritative on reconciliation.
type Cache struct {
	db *gorm.DB
}

// Open creates or opens the cache file. Use ":memory:" in tests.
func Open(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get unmarshals the value stored under key into out. The boolean reports
// whether the key existed.
func (c *Cache) Get(key string, out any) (bool, error) {
	var e entry
	err := c.db.First(&e, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(e.Value), out); err != nil {
		return false, fmt.Errorf("decode cache key %s: %w", key, err)
	}
	return true, nil
}

// Put overwrites the value stored under key.
func (c *Cache) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache key %s: %w", key, err)
	}
	e := entry{Key: key, Value: string(data), UpdatedAt: time.Now()}
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

// Delete removes a key. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	return c.db.Delete(&entry{}, "key = ?", key).Error
}
