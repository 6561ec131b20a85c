package insight

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wine-cellar/internal/cellar"
)

// Report is everything the drink-window timeline needs.
type Report struct {
	Day     string                         `json:"day"`
	Buckets Buckets                        `json:"-"`
	Counts  Counts                         `json:"counts"`
	Total   int                            `json:"total_analyzed"`
	Deltas  map[cellar.ReadinessLabel]*int `json:"deltas"`
	Tonight *TonightSignal                 `json:"tonight,omitempty"`
}

// Delta returns the month-over-month change for a bucket, if known.
func (r Report) Delta(l cellar.ReadinessLabel) (int, bool) {
	d := r.Deltas[l]
	if d == nil {
		return 0, false
	}
	return *d, true
}

// Engine computes reports and keeps the daily snapshot history current.
type Engine struct {
	store     SnapshotStore
	logger    *zap.Logger
	now       func() time.Time
	threshold float64
	lookback  time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithThreshold sets the tonight-signal rating cutoff.
func WithThreshold(threshold float64) Option {
	return func(e *Engine) { e.threshold = threshold }
}

// WithLookback sets how far back deltas compare. Non-positive values keep the default.
func WithLookback(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewEngine creates an Engine. A nil store disables snapshots and deltas.
func NewEngine(store SnapshotStore, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		logger:    logger,
		now:       time.Now,
		threshold: cellar.DefaultStandoutRating,
		lookback:  DefaultDeltaLookback,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh builds the report for a user's bottles. Snapshot storage failures
// are logged and only cost the deltas; Refresh itself never fails.
func (e *Engine) Refresh(ctx context.Context, userID string, bottles []cellar.Bottle) Report {
	today := e.now()
	buckets := ComputeBuckets(bottles)
	counts := buckets.Counts()
	tonight := ComputeTonightSignal(buckets.Ready, e.threshold)

	report := Report{
		Day:     DayKey(today),
		Buckets: buckets,
		Counts:  counts,
		Total:   buckets.TotalAnalyzed,
		Deltas:  map[cellar.ReadinessLabel]*int{},
		Tonight: &tonight,
	}

	if e.store == nil {
		return report
	}

	history, err := e.store.ListSnapshots(ctx, userID)
	if err != nil {
		e.logger.Warn("snapshot history unavailable, skipping deltas", zap.String("user_id", userID), zap.Error(err))
		return report
	}

	if buckets.TotalAnalyzed > 0 && ShouldSaveSnapshot(history, today) {
		if err := SaveSnapshot(ctx, e.store, userID, today, counts); err != nil {
			e.logger.Warn("failed to save readiness snapshot", zap.String("user_id", userID), zap.Error(err))
		} else {
			e.logger.Debug("readiness snapshot saved", zap.String("user_id", userID), zap.String("day", report.Day))
		}
	}

	for _, l := range cellar.Labels {
		if d, ok := ComputeDelta(l, counts, history, today, e.lookback); ok {
			report.Deltas[l] = &d
		}
	}
	return report
}
