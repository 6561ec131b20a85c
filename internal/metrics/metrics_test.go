package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wine-cellar/internal/shared"
	"wine-cellar/internal/testutil"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testutil.NewTestDB(t).SQL)
	now := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)
	store.now = testutil.FixedClock(now)

	record := func(at time.Time, prompt, completion int) {
		t.Helper()
		require.NoError(t, store.Record(ctx, ExecutionMetric{
			AgentName: "ReadinessAnalyst", Model: "mock",
			PromptTokens: prompt, CompletionTokens: completion, Timestamp: at,
		}))
	}
	record(now.Add(-time.Hour), 100, 10)
	record(now.Add(-2*time.Hour), 50, 5)
	record(now.AddDate(0, 0, -1), 30, 3)
	record(now.AddDate(0, 0, -60), 999, 99)

	usage, err := store.GetDailyUsage(ctx, 7)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, DailyUsage{Date: "2026-10-16", TotalPrompt: 150, TotalCompletion: 15, TotalExecution: 2}, usage[0])
	assert.Equal(t, "2026-10-15", usage[1].Date)

	removed, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestRecordMetaSkipsEmptyUsage(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testutil.NewTestDB(t).SQL)

	require.NoError(t, store.RecordMeta(shared.AgentMeta{AgentName: "Importer"}))
	require.NoError(t, store.RecordMeta(shared.AgentMeta{
		AgentName: "Importer",
		Usage:     shared.TokenUsage{PromptTokens: 10, Model: "mock"},
		Latency:   250 * time.Millisecond,
	}))

	usage, err := store.GetDailyUsage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 1, usage[0].TotalExecution)
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), make([]byte, 2048), 0644))

	h := GetSysHealth(dir)
	assert.Equal(t, "2.0 KiB", h.DataDiskSize)
	assert.Positive(t, h.Goroutines)
	assert.NotEmpty(t, h.Alloc)
}
