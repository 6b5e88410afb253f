package snapshot

import (
	"sort"
	"time"
)

const (
	week  = 7 * 24 * time.Hour
	month = 30 * 24 * time.Hour
)

// Item is one snapshot as seen by the retention policy.
type Item struct {
	ID      string
	Created time.Time
}

// Policy keeps the newest Daily snapshots plus the newest snapshot in each of
// the last Weekly 7-day windows and the last Monthly 30-day windows.
type Policy struct {
	Daily   int
	Weekly  int
	Monthly int
}

// Apply splits items into the ones to keep and the ones to delete. Both
// results are ordered newest first. Apply does not modify items.
func (p Policy) Apply(items []Item, now time.Time) (keep, drop []Item) {
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Created.After(sorted[j].Created)
	})

	kept := make(map[string]bool, len(sorted))
	for i := 0; i < p.Daily && i < len(sorted); i++ {
		kept[sorted[i].ID] = true
	}
	keepNewestPerWindow(sorted, now, week, p.Weekly, kept)
	keepNewestPerWindow(sorted, now, month, p.Monthly, kept)

	for _, it := range sorted {
		if kept[it.ID] {
			keep = append(keep, it)
		} else {
			drop = append(drop, it)
		}
	}
	return keep, drop
}

// keepNewestPerWindow marks the newest item in each window [now-(n+1)*size, now-n*size).
func keepNewestPerWindow(sorted []Item, now time.Time, size time.Duration, windows int, kept map[string]bool) {
	for n := 0; n < windows; n++ {
		end := now.Add(-time.Duration(n) * size)
		start := end.Add(-size)
		for _, it := range sorted {
			if !it.Created.Before(start) && it.Created.Before(end) {
				kept[it.ID] = true
				break
			}
		}
	}
}
