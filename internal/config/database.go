package config

import (
	"fmt"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"igx_tracker/internal/logger"
	"igx_tracker/internal/models"
)

// InitDB opens the PostgreSQL connection described by cfg and migrates the schema.
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	pgCfg := postgres.Config{DSN: cfg.DSN()}
	// An empty DriverName makes the dialector use its bundled pgx pool.
	if cfg.Driver == "postgres" {
		pgCfg.DriverName = "postgres"
	}
	dialector := postgres.New(pgCfg)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.GormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tables for every model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Device{},
		&models.RawFrame{},
		&models.Position{},
		&models.ProcessingLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}
