package todos

import (
	"sort"
	"time"
)

const displayDateLayout = "02/01/2006 15:04"

func CountItems(items []TodoItem) Counts {
	counts := Counts{Total: len(items)}
	for _, item := range items {
		if item.Completed {
			counts.Complete++
		} else {
			counts.Incomplete++
		}
	}
	return counts
}

func sortItems(items []TodoItem, order Order) {
	if order == OrderStore {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// FormatDate renders a timestamp for display in loc. Zero times render empty.
func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(displayDateLayout)
}
