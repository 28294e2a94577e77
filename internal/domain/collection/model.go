package collection

import (
	"encoding/json"
	"time"
)

// Fields is a partial record. A nil value is stored as JSON null.
type Fields map[string]any

type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Snapshot is the full content of a collection path at one point in time,
// entries in key order.
type Snapshot struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

func (s Snapshot) Empty() bool {
	return len(s.Entries) == 0
}

type Record struct {
	Path      string    `gorm:"primaryKey;size:512"`
	Key       string    `gorm:"primaryKey;size:64"`
	Value     []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Record) TableName() string {
	return "collection_records"
}
