package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	collectiondomain "todo-sync-go/internal/domain/collection"
)

// CollectionRepository keeps records in process memory. Used for DB_DRIVER=memory
// and in tests.
type CollectionRepository struct {
	txMu    *sync.Mutex
	mu      *sync.RWMutex
	records map[string]map[string]collectiondomain.Record
}

func NewCollectionRepository() *CollectionRepository {
	return &CollectionRepository{
		txMu:    &sync.Mutex{},
		mu:      &sync.RWMutex{},
		records: make(map[string]map[string]collectiondomain.Record),
	}
}

// Transaction serializes fn against other transactions. It does not roll back.
func (r *CollectionRepository) Transaction(_ context.Context, fn func(collectiondomain.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

func (r *CollectionRepository) ListRecords(_ context.Context, path string) ([]collectiondomain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byKey := r.records[path]
	result := make([]collectiondomain.Record, 0, len(byKey))
	for _, record := range byKey {
		result = append(result, cloneRecord(record))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (r *CollectionRepository) GetRecord(_ context.Context, path, key string) (*collectiondomain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[path][key]
	if !ok {
		return nil, collectiondomain.ErrRecordNotFound
	}
	copied := cloneRecord(record)
	return &copied, nil
}

func (r *CollectionRepository) CreateRecord(_ context.Context, record *collectiondomain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey := r.records[record.Path]
	if byKey == nil {
		byKey = make(map[string]collectiondomain.Record)
		r.records[record.Path] = byKey
	}
	if _, exists := byKey[record.Key]; exists {
		return collectiondomain.ErrKeyExists
	}

	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	byKey[record.Key] = cloneRecord(*record)
	return nil
}

func (r *CollectionRepository) UpdateRecordValue(_ context.Context, path, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[path][key]
	if !ok {
		return collectiondomain.ErrRecordNotFound
	}
	record.Value = append([]byte(nil), value...)
	record.UpdatedAt = time.Now().UTC()
	r.records[path][key] = record
	return nil
}

func (r *CollectionRepository) DeleteRecord(_ context.Context, path, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey, ok := r.records[path]
	if !ok {
		return false, nil
	}
	if _, ok := byKey[key]; !ok {
		return false, nil
	}
	delete(byKey, key)
	if len(byKey) == 0 {
		delete(r.records, path)
	}
	return true, nil
}

func cloneRecord(record collectiondomain.Record) collectiondomain.Record {
	record.Value = append([]byte(nil), record.Value...)
	return record
}
