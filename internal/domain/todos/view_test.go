package todos

import (
	"encoding/json"
	"testing"
	"time"

	"todo-sync-go/internal/domain/collection"
)

func TestCountItems(t *testing.T) {
	items := []TodoItem{
		{ID: "a", Completed: true},
		{ID: "b"},
		{ID: "c"},
	}

	got := CountItems(items)
	want := Counts{Total: 3, Incomplete: 2, Complete: 1}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if empty := CountItems(nil); empty != (Counts{}) {
		t.Fatalf("expected zero counts, got %+v", empty)
	}
}

func TestSortItemsNewestFirstPutsMissingDatesLast(t *testing.T) {
	items := []TodoItem{
		{ID: "undated"},
		{ID: "old", CreatedAt: t1},
		{ID: "new", CreatedAt: t3},
	}

	sortItems(items, OrderNewestFirst)

	got := []string{items[0].ID, items[1].ID, items[2].ID}
	if got[0] != "new" || got[1] != "old" || got[2] != "undated" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestSortItemsStoreOrderKeepsInput(t *testing.T) {
	items := []TodoItem{
		{ID: "old", CreatedAt: t1},
		{ID: "new", CreatedAt: t3},
	}

	sortItems(items, OrderStore)

	if items[0].ID != "old" || items[1].ID != "new" {
		t.Fatalf("store order must be preserved, got %v", itemIDs(items))
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Time{}, time.UTC); got != "" {
		t.Fatalf("expected empty string for zero time, got %q", got)
	}
	if got := FormatDate(t2, time.UTC); got != "01/03/2024 10:30" {
		t.Fatalf("unexpected format %q", got)
	}

	offset := time.FixedZone("UTC+2", 2*60*60)
	if got := FormatDate(t2, offset); got != "01/03/2024 12:30" {
		t.Fatalf("unexpected zoned format %q", got)
	}
}

func TestParseOrder(t *testing.T) {
	cases := map[string]Order{
		"":       OrderNewestFirst,
		"newest": OrderNewestFirst,
		"store":  OrderStore,
	}
	for input, want := range cases {
		got, ok := ParseOrder(input)
		if !ok || got != want {
			t.Fatalf("ParseOrder(%q) = %q, %v", input, got, ok)
		}
	}
	if _, ok := ParseOrder("oldest"); ok {
		t.Fatalf("expected unknown order to be rejected")
	}
}

func TestDecodeItemIsLenient(t *testing.T) {
	raw := json.RawMessage(`{"text":"Buy milk","completed":true,"createdAt":"2024-03-01T09:00:00Z","completedAt":"garbage"}`)

	item, err := decodeItem(collection.Entry{Key: "k1", Value: raw})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if item.ID != "k1" || item.Text != "Buy milk" || !item.Completed {
		t.Fatalf("unexpected item %+v", item)
	}
	if !item.CreatedAt.Equal(t1) {
		t.Fatalf("expected createdAt %s, got %s", t1, item.CreatedAt)
	}
	if item.CompletedAt != nil {
		t.Fatalf("unparseable completedAt must decode as nil")
	}
}
