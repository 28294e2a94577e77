package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todo-sync-go/pkg/logger"

	"github.com/google/uuid"
)

const (
	maxKeyAttempts         = 3
	defaultSnapshotTimeout = 10 * time.Second
)

type Service struct {
	repo            Repository
	hub             *Hub
	log             logger.Logger
	newKey          func() (string, error)
	snapshotTimeout time.Duration
}

func NewService(repo Repository, hub *Hub, log logger.Logger) *Service {
	return &Service{
		repo:            repo,
		hub:             hub,
		log:             log,
		newKey:          newRecordKey,
		snapshotTimeout: defaultSnapshotTimeout,
	}
}

func (s *Service) Snapshot(ctx context.Context, path string) (Snapshot, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return Snapshot{}, err
	}

	records, err := s.repo.ListRecords(ctx, path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list records: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, Entry{Key: record.Key, Value: json.RawMessage(record.Value)})
	}
	return Snapshot{Path: path, Entries: entries}, nil
}

// Create appends a record under a generated key and returns the key.
func (s *Service) Create(ctx context.Context, path string, fields Fields) (string, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", ErrNoFields
	}

	value, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := s.newKey()
		if err != nil {
			return "", fmt.Errorf("generate key: %w", err)
		}

		record := Record{Path: path, Key: key, Value: value}
		err = s.repo.CreateRecord(ctx, &record)
		if errors.Is(err, ErrKeyExists) {
			s.log.Warn("collection.create: key collision, retrying", "path", path, "key", key)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create record: %w", err)
		}

		s.hub.Publish(path)
		return key, nil
	}

	return "", ErrKeyExists
}

// Update merges fields into the record at recordPath. It never creates the record.
func (s *Service) Update(ctx context.Context, recordPath string, fields Fields) error {
	path, key, err := SplitRecordPath(recordPath)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return ErrNoFields
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		record, err := tx.GetRecord(ctx, path, key)
		if err != nil {
			return err
		}
		merged, err := mergeFields(record.Value, fields)
		if err != nil {
			return err
		}
		return tx.UpdateRecordValue(ctx, path, key, merged)
	})
	if err != nil {
		return err
	}

	s.hub.Publish(path)
	return nil
}

// Delete removes the record at recordPath. Deleting an absent record is not an error.
func (s *Service) Delete(ctx context.Context, recordPath string) error {
	path, key, err := SplitRecordPath(recordPath)
	if err != nil {
		return err
	}

	deleted, err := s.repo.DeleteRecord(ctx, path, key)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if deleted {
		s.hub.Publish(path)
	}
	return nil
}

// Subscribe calls onSnapshot with the current snapshot of path and again after
// every change under it, on a dedicated goroutine. The initial snapshot is
// loaded before Subscribe returns so load failures surface to the caller.
// onError, when not nil, is called on the same goroutine when a reload fails
// and with ErrClosed when the service shuts down under the subscriber.
func (s *Service) Subscribe(ctx context.Context, path string, onSnapshot func(Snapshot), onError func(error)) (func(), error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	// Register first: a write racing the initial load marks the subscriber dirty.
	sub, err := s.hub.add(path)
	if err != nil {
		return nil, err
	}

	initial, err := s.Snapshot(ctx, path)
	if err != nil {
		sub.unsubscribe()
		return nil, err
	}

	if onError == nil {
		onError = func(error) {}
	}
	go s.deliver(sub, initial, onSnapshot, onError)
	return sub.unsubscribe, nil
}

func (s *Service) Close() {
	s.hub.Close()
}

func (s *Service) Done() <-chan struct{} {
	return s.hub.Done()
}

func (s *Service) deliver(sub *subscriber, initial Snapshot, onSnapshot func(Snapshot), onError func(error)) {
	if sub.stopped() {
		if sub.evicted {
			onError(ErrClosed)
		}
		return
	}
	onSnapshot(initial)

	for {
		select {
		case <-sub.done:
			if sub.evicted {
				onError(ErrClosed)
			}
			return
		case <-sub.dirty:
			ctx, cancel := context.WithTimeout(context.Background(), s.snapshotTimeout)
			snapshot, err := s.Snapshot(ctx, sub.path)
			cancel()
			if err != nil {
				s.log.InternalError("collection.subscribe: reload snapshot failed", err, "path", sub.path)
				onError(fmt.Errorf("reload %s: %w", sub.path, err))
				continue
			}
			if sub.stopped() {
				return
			}
			onSnapshot(snapshot)
		}
	}
}

func mergeFields(current []byte, fields Fields) ([]byte, error) {
	values := map[string]json.RawMessage{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &values); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
	}

	for name, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", name, err)
		}
		values[name] = encoded
	}

	return json.Marshal(values)
}

func newRecordKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
