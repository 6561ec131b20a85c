package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"wine-cellar/internal/database"
)

// NewTestDB opens a migrated SQLite database in a per-test temp dir.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "cellar.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FixedClock returns a clock func pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Day parses a YYYY-MM-DD date at noon UTC.
func Day(t *testing.T, s string) time.Time {
	t.Helper()

	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("Invalid day %q: %v", s, err)
	}
	return d.Add(12 * time.Hour)
}
