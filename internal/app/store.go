package app

import (
	"fmt"

	"todo-sync-go/internal/config"
	"todo-sync-go/internal/db"
	collectiondomain "todo-sync-go/internal/domain/collection"
	"todo-sync-go/internal/repository/inmemory"
	sqlcollection "todo-sync-go/internal/repository/sql/collection"
	"todo-sync-go/pkg/logger"

	"gorm.io/gorm"
)

// Store is the collection service together with the database behind it.
type Store struct {
	Service *collectiondomain.Service
	db      *gorm.DB
}

// OpenStore opens the backend selected by DB_DRIVER, migrates it and builds
// the collection service on top.
func OpenStore(cfg config.DBConfig, log logger.Logger) (*Store, error) {
	var (
		repo   collectiondomain.Repository
		gormDB *gorm.DB
		err    error
	)

	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("app: using in-memory store, data is lost on exit")
		repo = inmemory.NewCollectionRepository()
	case config.DriverSQLite:
		gormDB, err = db.NewSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(gormDB); err != nil {
			_ = db.Close(gormDB)
			return nil, err
		}
		repo = sqlcollection.New(gormDB)
	case config.DriverPostgres:
		gormDB, err = db.NewPostgres(cfg, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(gormDB, log); err != nil {
			_ = db.Close(gormDB)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		repo = sqlcollection.New(gormDB)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	service := collectiondomain.NewService(repo, collectiondomain.NewHub(), log)
	return &Store{Service: service, db: gormDB}, nil
}

// Close stops every subscription, then releases the database.
func (s *Store) Close() error {
	s.Service.Close()
	if s.db == nil {
		return nil
	}
	return db.Close(s.db)
}
