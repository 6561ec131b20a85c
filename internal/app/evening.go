package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/evening"
)

// GeneratePlan builds a fresh lineup and keeps it as the user's draft.
// A live plan must be finished first.
func (a *App) GeneratePlan(ctx context.Context, userID string, prefs evening.Preferences) (evening.Plan, error) {
	live, err := a.machine.Resume(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	if live != nil {
		return evening.Plan{}, fmt.Errorf("%w: finish the live plan first", evening.ErrInvalidPrecondition)
	}

	bottles, err := a.Bottles(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	plan, err := evening.NewPlan(userID, prefs).WithLineup(bottles, a.cfg.StandoutRating)
	if err != nil {
		return evening.Plan{}, err
	}
	if err := a.saveDraft(ctx, plan); err != nil {
		return evening.Plan{}, err
	}
	return plan, nil
}

// CurrentPlan returns the live plan, else the draft, else ErrNoPlan.
func (a *App) CurrentPlan(ctx context.Context, userID string) (evening.Plan, error) {
	live, err := a.machine.Resume(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	if live != nil {
		return *live, nil
	}
	return a.loadDraft(ctx, userID)
}

// PlanAlternatives lists swap candidates for the current plan.
func (a *App) PlanAlternatives(ctx context.Context, userID string) (evening.Plan, []cellar.Bottle, error) {
	plan, err := a.CurrentPlan(ctx, userID)
	if err != nil {
		return evening.Plan{}, nil, err
	}
	bottles, err := a.Bottles(ctx, userID)
	if err != nil {
		return evening.Plan{}, nil, err
	}
	alts, err := plan.Alternatives(bottles, a.cfg.StandoutRating, a.cfg.AlternativesLimit)
	if err != nil {
		return evening.Plan{}, nil, err
	}
	return plan, alts, nil
}

// SwapPlan replaces the wine at position with the choice-th alternative (1-based).
func (a *App) SwapPlan(ctx context.Context, userID string, position, choice int) (evening.Plan, error) {
	plan, alts, err := a.PlanAlternatives(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	if choice < 1 || choice > len(alts) {
		return plan, fmt.Errorf("%w: pick an alternative between 1 and %d", evening.ErrInvalidPrecondition, len(alts))
	}

	swapped, err := a.machine.Swap(ctx, plan, position, alts[choice-1])
	if err != nil {
		return plan, err
	}
	if swapped.Status == evening.StateLineup {
		if err := a.saveDraft(ctx, swapped); err != nil {
			return plan, err
		}
	}
	return swapped, nil
}

// ToggleLock locks or unlocks a slot of the draft lineup.
func (a *App) ToggleLock(ctx context.Context, userID string, position int) (evening.Plan, error) {
	plan, err := a.loadDraft(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	locked, err := plan.ToggleLock(position)
	if err != nil {
		return plan, err
	}
	if err := a.saveDraft(ctx, locked); err != nil {
		return plan, err
	}
	return locked, nil
}

// StartPlan turns the draft into the user's live plan. Drafts can be hours
// old, so stock is checked again before the evening starts.
func (a *App) StartPlan(ctx context.Context, userID string) (evening.Plan, error) {
	draft, err := a.loadDraft(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	bottles, err := a.Bottles(ctx, userID)
	if err != nil {
		return draft, err
	}
	if err := draft.CheckStock(bottles); err != nil {
		return draft, fmt.Errorf("%w; swap it or generate a new lineup", err)
	}
	live, err := a.machine.Start(ctx, draft)
	if err != nil {
		return live, err
	}
	if err := a.drafts.Delete(ctx, userID, draftSession); err != nil {
		a.logger.Warn("failed to drop started draft", zap.String("user_id", userID), zap.Error(err))
	}
	return live, nil
}

// NextWine serves the current wine of the live plan.
func (a *App) NextWine(ctx context.Context, userID string) (evening.Plan, error) {
	live, err := a.livePlan(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	return a.machine.Advance(ctx, live)
}

// EndPlan completes the live plan.
func (a *App) EndPlan(ctx context.Context, userID string) (evening.Plan, error) {
	live, err := a.livePlan(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	return a.machine.Complete(ctx, live)
}

func (a *App) livePlan(ctx context.Context, userID string) (evening.Plan, error) {
	live, err := a.machine.Resume(ctx, userID)
	if err != nil {
		return evening.Plan{}, err
	}
	if live == nil {
		return evening.Plan{}, ErrNoPlan
	}
	return *live, nil
}

func (a *App) saveDraft(ctx context.Context, plan evening.Plan) error {
	if _, err := a.drafts.Put(ctx, plan.UserID, draftSession, plan, draftTTL); err != nil {
		return fmt.Errorf("failed to keep draft plan: %w", err)
	}
	return nil
}

func (a *App) loadDraft(ctx context.Context, userID string) (evening.Plan, error) {
	s, err := a.drafts.GetActive(ctx, userID, draftSession)
	if err != nil {
		return evening.Plan{}, err
	}
	if s == nil {
		return evening.Plan{}, ErrNoPlan
	}
	var plan evening.Plan
	if err := s.Decode(&plan); err != nil {
		return evening.Plan{}, fmt.Errorf("failed to decode draft plan: %w", err)
	}
	return plan, nil
}
