package database

import (
	"fmt"

	"leadgen-dashboard/internal/config"
	"leadgen-dashboard/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New connects to PostgreSQL and runs the schema migration. The handle is
// returned rather than held in a package global so every consumer gets it
// injected explicitly.
func New(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the remote tables. Split out so tests can run
// it against an in-memory database.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Lead{},
		&models.Notification{},
		&models.SentLog{},
		&models.QRCode{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration: %w", err)
	}
	return nil
}
