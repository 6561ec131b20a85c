package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/shared"
)

// BottleStore is the part of the cellar repository the analyzer writes to.
type BottleStore interface {
	ListBottles(ctx context.Context, userID string) ([]cellar.Bottle, error)
	UpdateReadiness(ctx context.Context, id string, label cellar.ReadinessLabel, drinkFrom, drinkUntil *int, analyzedAt time.Time) error
}

// MetaRecorder stores agent usage.
type MetaRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// Summary reports what one AnalyzePending run did.
type Summary struct {
	Analyzed int
	Failed   int
	Skipped  int
	Usage    shared.TokenUsage
}

// Analyzer labels every in-stock bottle that has no readiness yet.
type Analyzer struct {
	agent   *Agent
	store   BottleStore
	metrics MetaRecorder
	logger  *zap.Logger
	now     func() time.Time
	pause   time.Duration
}

// NewAnalyzer creates an Analyzer. metrics may be nil.
func NewAnalyzer(agent *Agent, store BottleStore, metrics MetaRecorder, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		agent:   agent,
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithPause waits between model calls to stay under provider rate limits.
func (a *Analyzer) WithPause(d time.Duration) *Analyzer {
	a.pause = d
	return a
}

// AnalyzePending runs the agent over the user's unanalyzed bottles. A failing
// bottle is logged and counted; only listing the cellar fails the run.
func (a *Analyzer) AnalyzePending(ctx context.Context, userID string) (Summary, error) {
	bottles, err := a.store.ListBottles(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list bottles: %w", err)
	}

	var sum Summary
	first := true
	for _, b := range bottles {
		if !b.InStock() || b.Readiness != nil {
			sum.Skipped++
			continue
		}

		if !first && a.pause > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(a.pause):
			}
		}
		first = false

		now := a.now()
		result, meta, err := a.agent.Analyze(ctx, b, now.Year())
		a.record(meta)
		sum.Usage = sum.Usage.Add(meta.Usage)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			a.logger.Warn("readiness analysis failed", zap.String("bottle_id", b.ID), zap.Error(err))
			sum.Failed++
			continue
		}

		if err := a.store.UpdateReadiness(ctx, b.ID, result.Label, result.DrinkFrom, result.DrinkUntil, now.UTC()); err != nil {
			a.logger.Warn("failed to store readiness", zap.String("bottle_id", b.ID), zap.Error(err))
			sum.Failed++
			continue
		}

		a.logger.Info("bottle analyzed",
			zap.String("bottle_id", b.ID),
			zap.String("bottle", b.DisplayName()),
			zap.String("label", string(result.Label)),
		)
		sum.Analyzed++
	}
	return sum, nil
}

func (a *Analyzer) record(meta shared.AgentMeta) {
	if a.metrics == nil {
		return
	}
	if err := a.metrics.RecordMeta(meta); err != nil {
		a.logger.Warn("failed to record metrics", zap.String("agent", meta.AgentName), zap.Error(err))
	}
}
