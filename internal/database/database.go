package database

import (
	"example.com/resto/services/kitchen/config"
	"example.com/resto/services/kitchen/internal/models"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the write and read-only database connections, applies
// the configured pool limits and runs migrations on the write side.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	readOnlyDB, err := gorm.Open(postgres.Open(cfg.ReadOnlyDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	// Auto-migrate only the write database
	if err := models.SetupModels(db); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to configure write pool")
	}
	if err := configurePool(readOnlyDB, cfg); err != nil {
		return nil, nil, errors.Wrap(err, "failed to configure read-only pool")
	}

	return db, readOnlyDB, nil
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return nil
}
