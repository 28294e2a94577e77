package collection

import (
	"context"
	"errors"

	collectiondomain "todo-sync-go/internal/domain/collection"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository stores collection records through gorm. It runs on postgres and
// on sqlite.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Transaction(ctx context.Context, fn func(collectiondomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) ListRecords(ctx context.Context, path string) ([]collectiondomain.Record, error) {
	var records []collectiondomain.Record
	if err := r.db.WithContext(ctx).
		Where("path = ?", path).
		Order("key asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) GetRecord(ctx context.Context, path, key string) (*collectiondomain.Record, error) {
	var record collectiondomain.Record
	if err := r.db.WithContext(ctx).
		Where("path = ? AND key = ?", path, key).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, collectiondomain.ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *Repository) CreateRecord(ctx context.Context, record *collectiondomain.Record) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if isUniqueViolation(err) {
		return collectiondomain.ErrKeyExists
	}
	return err
}

func (r *Repository) UpdateRecordValue(ctx context.Context, path, key string, value []byte) error {
	result := r.db.WithContext(ctx).
		Model(&collectiondomain.Record{}).
		Where("path = ? AND key = ?", path, key).
		Update("value", value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return collectiondomain.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) DeleteRecord(ctx context.Context, path, key string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&collectiondomain.Record{}, "path = ? AND key = ?", path, key)
	return result.RowsAffected > 0, result.Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
