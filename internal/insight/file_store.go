package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const snapshotFileSuffix = "_snapshots.json"

// FileSnapshotStore keeps each user's snapshot history in a JSON file.
// It is the local fallback when no database is configured.
type FileSnapshotStore struct {
	basePath string
	mu       sync.Mutex
	now      func() time.Time
}

// NewFileSnapshotStore creates a FileSnapshotStore and ensures the base directory exists.
func NewFileSnapshotStore(basePath string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", basePath, err)
	}
	return &FileSnapshotStore{basePath: basePath, now: time.Now}, nil
}

// sanitizeUserID makes the user id safe for filenames.
func sanitizeUserID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func (s *FileSnapshotStore) path(userID string) string {
	return filepath.Join(s.basePath, sanitizeUserID(userID)+snapshotFileSuffix)
}

// ListSnapshots returns a user's snapshots, oldest first. A missing file is an empty history.
func (s *FileSnapshotStore) ListSnapshots(_ context.Context, userID string) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(userID)
}

// UpsertSnapshot replaces the entry for snap.Day or appends a new one.
func (s *FileSnapshotStore) UpsertSnapshot(_ context.Context, userID string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.load(userID)
	if err != nil {
		return err
	}

	replaced := false
	for i := range history {
		if history[i].Day == snap.Day {
			history[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, snap)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Day < history[j].Day })

	return writeHistory(s.path(userID), history)
}

// Cleanup drops snapshots older than the given number of days from every
// user's file and reports how many went.
func (s *FileSnapshotStore) Cleanup(_ context.Context, olderThanDays int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(s.basePath, "*"+snapshotFileSuffix))
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshot files: %w", err)
	}

	cutoff := DayKey(s.now().AddDate(0, 0, -olderThanDays))
	var removed int64
	for _, path := range files {
		history, err := readHistory(path)
		if err != nil {
			return removed, err
		}
		kept := history[:0]
		for _, snap := range history {
			if snap.Day >= cutoff {
				kept = append(kept, snap)
			}
		}
		if len(kept) == len(history) {
			continue
		}
		if err := writeHistory(path, kept); err != nil {
			return removed, err
		}
		removed += int64(len(history) - len(kept))
	}
	return removed, nil
}

// writeHistory replaces the history file whole.
func writeHistory(path string, history []Snapshot) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) load(userID string) ([]Snapshot, error) {
	return readHistory(s.path(userID))
}

func readHistory(path string) ([]Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var history []Snapshot
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshots: %w", err)
	}
	return history, nil
}
