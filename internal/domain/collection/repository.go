package collection

import "context"

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error
	ListRecords(ctx context.Context, path string) ([]Record, error)
	GetRecord(ctx context.Context, path, key string) (*Record, error)
	CreateRecord(ctx context.Context, record *Record) error
	UpdateRecordValue(ctx context.Context, path, key string, value []byte) error
	DeleteRecord(ctx context.Context, path, key string) (bool, error)
}
