package db

import (
	"fmt"

	"todo-sync-go/internal/config"
	"todo-sync-go/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLite opens the database file at path. ":memory:" gives a private
// in-memory database. sqlite allows one writer, so the pool holds a single
// connection.
func NewSQLite(path string, log logger.Logger) (*gorm.DB, error) {
	log.Info("db: opening sqlite", "path", path)

	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gormDB.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}

	log.Info("db: connected", "driver", config.DriverSQLite)
	return gormDB, nil
}
