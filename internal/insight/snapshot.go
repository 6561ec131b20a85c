package insight

import (
	"context"
	"time"

	"wine-cellar/internal/cellar"
)

// DayLayout is the calendar-day key used for snapshots.
const DayLayout = "2006-01-02"

// DefaultDeltaLookback is how far back "this month" reaches.
const DefaultDeltaLookback = 30 * 24 * time.Hour

// Snapshot is the persisted bucket counts for one calendar day.
type Snapshot struct {
	Day    string `json:"date"`
	Counts Counts `json:"counts"`
}

// SnapshotStore persists daily snapshots. Upsert must overwrite an existing
// entry for the same user and day.
type SnapshotStore interface {
	ListSnapshots(ctx context.Context, userID string) ([]Snapshot, error)
	UpsertSnapshot(ctx context.Context, userID string, s Snapshot) error
}

// DayKey returns the calendar day of t in t's location.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ShouldSaveSnapshot is true when history has no entry for today.
func ShouldSaveSnapshot(history []Snapshot, today time.Time) bool {
	key := DayKey(today)
	for _, s := range history {
		if s.Day == key {
			return false
		}
	}
	return true
}

// SaveSnapshot writes today's counts through the store's upsert-by-day.
func SaveSnapshot(ctx context.Context, store SnapshotStore, userID string, today time.Time, counts Counts) error {
	return store.UpsertSnapshot(ctx, userID, Snapshot{Day: DayKey(today), Counts: counts})
}

// BaselineSnapshot picks the most recent snapshot dated on or before today-lookback.
func BaselineSnapshot(history []Snapshot, today time.Time, lookback time.Duration) (Snapshot, bool) {
	cutoff := DayKey(today.Add(-lookback))

	var (
		best  Snapshot
		found bool
	)
	for _, s := range history {
		if _, err := time.Parse(DayLayout, s.Day); err != nil {
			continue
		}
		// YYYY-MM-DD keys order lexically.
		if s.Day > cutoff {
			continue
		}
		if !found || s.Day > best.Day {
			best, found = s, true
		}
	}
	return best, found
}

// ComputeDelta returns current minus the baseline count for a bucket. ok is
// false when no baseline exists; callers must not render that as zero.
func ComputeDelta(key cellar.ReadinessLabel, current Counts, history []Snapshot, today time.Time, lookback time.Duration) (delta int, ok bool) {
	base, found := BaselineSnapshot(history, today, lookback)
	if !found {
		return 0, false
	}
	return current.Get(key) - base.Counts.Get(key), true
}
