package todos

import (
	"encoding/json"
	"strings"
	"time"

	"todo-sync-go/internal/domain/collection"
)

// TodoItem mirrors one record of the remote collection. ID is the record key.
type TodoItem struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type Counts struct {
	Total      int `json:"total"`
	Incomplete int `json:"incomplete"`
	Complete   int `json:"complete"`
}

type Order string

const (
	// OrderNewestFirst sorts by createdAt descending, stable on ties.
	OrderNewestFirst Order = "newest"
	// OrderStore keeps snapshot iteration order.
	OrderStore Order = "store"
)

func ParseOrder(value string) (Order, bool) {
	switch Order(strings.ToLower(strings.TrimSpace(value))) {
	case OrderNewestFirst, "":
		return OrderNewestFirst, true
	case OrderStore:
		return OrderStore, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusIdle         Status = "idle"
	StatusLoading      Status = "loading"
	StatusLive         Status = "live"
	StatusUnavailable  Status = "unavailable"
	StatusDisconnected Status = "disconnected"
	StatusStopped      Status = "stopped"
)

type NoticeKind string

const (
	NoticeValidation   NoticeKind = "validation"
	NoticeRemote       NoticeKind = "remote"
	NoticeSubscription NoticeKind = "subscription"
)

// Notice is a user-facing message about a rejected intent or a failed remote call.
type Notice struct {
	Kind    NoticeKind
	Op      string
	Message string
	Err     error
	At      time.Time
}

// View is the derived state handed to the presentation layer.
type View struct {
	Path          string
	Items         []TodoItem
	Counts        Counts
	Editing       map[string]bool
	PendingDelete string
	Status        Status
	Notice        *Notice
}

func (v View) IsEditing(id string) bool {
	return v.Editing[id]
}

// Item returns the item with the given id from the view.
func (v View) Item(id string) (TodoItem, bool) {
	return findItem(v.Items, id)
}

type todoRecord struct {
	Text        string  `json:"text"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt"`
	UpdatedAt   *string `json:"updatedAt"`
}

func decodeItem(entry collection.Entry) (TodoItem, error) {
	var record todoRecord
	if err := json.Unmarshal(entry.Value, &record); err != nil {
		return TodoItem{}, err
	}

	return TodoItem{
		ID:          entry.Key,
		Text:        record.Text,
		Completed:   record.Completed,
		CreatedAt:   parseTimestamp(record.CreatedAt),
		CompletedAt: parseNullableTimestamp(record.CompletedAt),
		UpdatedAt:   parseNullableTimestamp(record.UpdatedAt),
	}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func parseNullableTimestamp(value *string) *time.Time {
	if value == nil {
		return nil
	}
	parsed := parseTimestamp(*value)
	if parsed.IsZero() {
		return nil
	}
	return &parsed
}
