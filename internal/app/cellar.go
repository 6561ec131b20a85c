package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wine-cellar/internal/analysis"
	"wine-cellar/internal/cellar"
	"wine-cellar/internal/importer"
	"wine-cellar/internal/insight"
	"wine-cellar/internal/metrics"
)

// Bottles lists the user's bottles from the configured source.
func (a *App) Bottles(ctx context.Context, userID string) ([]cellar.Bottle, error) {
	bottles, err := a.source.ListBottles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cellar: %w", err)
	}
	return bottles, nil
}

// AddBottle stores a bottle in the local catalogue.
func (a *App) AddBottle(ctx context.Context, b cellar.Bottle) (cellar.Bottle, error) {
	return a.bottles.Save(ctx, b)
}

// SetQuantity updates the remaining count of a local bottle.
func (a *App) SetQuantity(ctx context.Context, id string, quantity int) error {
	return a.bottles.UpdateQuantity(ctx, id, quantity)
}

// Insights refreshes the readiness report for a user.
func (a *App) Insights(ctx context.Context, userID string) (insight.Report, error) {
	bottles, err := a.Bottles(ctx, userID)
	if err != nil {
		return insight.Report{}, err
	}
	return a.engine.Refresh(ctx, userID, bottles), nil
}

// AnalyzePending labels the user's unanalyzed local bottles.
func (a *App) AnalyzePending(ctx context.Context, userID string) (analysis.Summary, error) {
	if a.textGen == nil {
		return analysis.Summary{}, ErrLLMUnavailable
	}
	analyzer := analysis.NewAnalyzer(analysis.NewAgent(a.textGen), a.bottles, a.metrics, a.logger)
	return analyzer.AnalyzePending(ctx, userID)
}

// Import extracts a wine from a shop page and adds it to the local catalogue.
func (a *App) Import(ctx context.Context, userID, url string, quantity int) (cellar.Bottle, error) {
	if a.textGen == nil {
		return cellar.Bottle{}, ErrLLMUnavailable
	}
	if quantity < 1 {
		return cellar.Bottle{}, errors.New("quantity must be at least 1")
	}

	draft, meta, err := importer.NewImporter(a.textGen).ImportURL(ctx, url)
	if err := a.metrics.RecordMeta(meta); err != nil {
		a.logger.Warn("failed to record metrics", zap.String("agent", meta.AgentName), zap.Error(err))
	}
	if err != nil {
		return cellar.Bottle{}, err
	}

	b, err := a.bottles.Save(ctx, draft.Bottle(userID, quantity))
	if err != nil {
		return cellar.Bottle{}, err
	}
	a.logger.Info("bottle imported", zap.String("bottle_id", b.ID), zap.String("source", url))
	return b, nil
}

// Usage returns LLM token usage for the last days.
func (a *App) Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	return a.metrics.GetDailyUsage(ctx, days)
}

// Health reports process and data directory health.
func (a *App) Health() metrics.SysHealth {
	return metrics.GetSysHealth(a.DataDir())
}

// CleanupMetrics removes execution metrics older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metrics.Cleanup(ctx, days)
}

// snapshotCleaner is implemented by both the SQLite and the file snapshot store.
type snapshotCleaner interface {
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

// CleanupSnapshots removes readiness snapshots older than days.
func (a *App) CleanupSnapshots(ctx context.Context, days int) (int64, error) {
	store, ok := a.snapshots.(snapshotCleaner)
	if !ok {
		return 0, errors.New("snapshot store does not support cleanup")
	}
	return store.Cleanup(ctx, days)
}

// CleanupSessions removes expired drafts.
func (a *App) CleanupSessions(ctx context.Context) (int64, error) {
	return a.drafts.CleanupExpired(ctx)
}
