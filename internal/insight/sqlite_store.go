package insight

import (
	"context"
	"fmt"
	"time"

	"wine-cellar/internal/database"
)

// SQLiteSnapshotStore keeps snapshots in the readiness_snapshots table.
type SQLiteSnapshotStore struct {
	db  database.DBTX
	now func() time.Time
}

// NewSQLiteSnapshotStore creates a new SQLiteSnapshotStore.
func NewSQLiteSnapshotStore(d database.DBTX) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{db: d, now: time.Now}
}

// ListSnapshots returns a user's snapshots, oldest first.
func (s *SQLiteSnapshotStore) ListSnapshots(ctx context.Context, userID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, hold, peak_soon, ready FROM readiness_snapshots
		WHERE user_id = ? ORDER BY day`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for user %s: %w", userID, err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Day, &snap.Counts.Hold, &snap.Counts.PeakSoon, &snap.Counts.Ready); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// UpsertSnapshot writes a snapshot; a second write for the same day wins.
func (s *SQLiteSnapshotStore) UpsertSnapshot(ctx context.Context, userID string, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readiness_snapshots (user_id, day, hold, peak_soon, ready, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			hold = excluded.hold,
			peak_soon = excluded.peak_soon,
			ready = excluded.ready,
			updated_at = excluded.updated_at`,
		userID, snap.Day, snap.Counts.Hold, snap.Counts.PeakSoon, snap.Counts.Ready, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot %s for user %s: %w", snap.Day, userID, err)
	}
	return nil
}

// Cleanup removes snapshots older than the given number of days and reports how many went.
func (s *SQLiteSnapshotStore) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := DayKey(s.now().AddDate(0, 0, -olderThanDays))
	res, err := s.db.ExecContext(ctx, `DELETE FROM readiness_snapshots WHERE day < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up snapshots: %w", err)
	}
	return res.RowsAffected()
}
