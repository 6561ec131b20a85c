package evening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wine-cellar/internal/cellar"
)

// PlanStore persists LIVE and COMPLETE plans.
type PlanStore interface {
	// GetActive returns the user's LIVE plan, or nil when there is none.
	GetActive(ctx context.Context, userID string) (*Plan, error)
	// Save inserts or replaces a plan by id.
	Save(ctx context.Context, plan Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
}

// Machine drives the persisted part of the plan lifecycle.
type Machine struct {
	store  PlanStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMachineClock overrides time.Now.
func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a Machine over store.
func NewMachine(store PlanStore, logger *zap.Logger, opts ...MachineOption) *Machine {
	m := &Machine{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start moves a LINEUP plan to LIVE and persists it. On a store failure the
// original plan comes back unchanged with an ErrPersistenceUnavailable error.
// A concurrent start that loses the race gets ErrInvalidPrecondition.
func (m *Machine) Start(ctx context.Context, plan Plan) (Plan, error) {
	if plan.Status != StateLineup {
		return plan, transitionError(plan.Status, StateLive)
	}
	if len(plan.Lineup) == 0 {
		return plan, fmt.Errorf("%w: cannot start an empty lineup", ErrInvalidPrecondition)
	}

	active, err := m.store.GetActive(ctx, plan.UserID)
	if err != nil {
		return plan, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if active != nil {
		return plan, fmt.Errorf("%w: user %s already has live plan %s", ErrInvalidPrecondition, plan.UserID, active.ID)
	}

	now := m.now().UTC()
	live := plan
	live.ID = m.newID()
	live.Status = StateLive
	live.Queue = buildQueue(plan.Lineup)
	live.CurrentIndex = 0
	live.CreatedAt = now
	live.UpdatedAt = now

	if err := m.store.Save(ctx, live); err != nil {
		// Another start for the same user won between GetActive and Save.
		if errors.Is(err, ErrActivePlanExists) {
			return plan, fmt.Errorf("%w: user %s already has a live plan", ErrInvalidPrecondition, plan.UserID)
		}
		m.logger.Warn("failed to persist live plan", zap.String("user_id", plan.UserID), zap.Error(err))
		return plan, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	m.logger.Info("evening plan started",
		zap.String("plan_id", live.ID),
		zap.String("user_id", live.UserID),
		zap.Int("wines", len(live.Queue)),
	)
	return live, nil
}

// Resume returns the user's LIVE plan, or nil.
func (m *Machine) Resume(ctx context.Context, userID string) (*Plan, error) {
	plan, err := m.store.GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return plan, nil
}

// Advance serves the current wine. Serving the last one completes the plan.
func (m *Machine) Advance(ctx context.Context, plan Plan) (Plan, error) {
	if plan.Status != StateLive {
		return plan, fmt.Errorf("%w: cannot advance a %s plan", ErrInvalidPrecondition, plan.Status)
	}

	now := m.now().UTC()
	next := plan
	next.Queue = cloneQueue(plan.Queue)
	if next.CurrentIndex < len(next.Queue) {
		next.Queue[next.CurrentIndex].ServedAt = &now
		next.CurrentIndex++
	}
	next.UpdatedAt = now
	if next.CurrentIndex >= len(next.Queue) {
		next.Status = StateComplete
		next.CompletedAt = &now
	}
	return m.persist(ctx, plan, next)
}

// Complete ends a LIVE plan early.
func (m *Machine) Complete(ctx context.Context, plan Plan) (Plan, error) {
	if plan.Status != StateLive {
		return plan, transitionError(plan.Status, StateComplete)
	}

	now := m.now().UTC()
	done := plan
	done.Status = StateComplete
	done.UpdatedAt = now
	done.CompletedAt = &now
	return m.persist(ctx, plan, done)
}

// Swap replaces a slot's bottle. LIVE plans are persisted after the swap;
// LINEUP plans are not stored yet.
func (m *Machine) Swap(ctx context.Context, plan Plan, position int, replacement cellar.Bottle) (Plan, error) {
	swapped, err := plan.Swap(position, replacement)
	if err != nil {
		return plan, err
	}
	if plan.Status != StateLive {
		return swapped, nil
	}
	swapped.UpdatedAt = m.now().UTC()
	return m.persist(ctx, plan, swapped)
}

func (m *Machine) persist(ctx context.Context, prev, next Plan) (Plan, error) {
	if err := m.store.Save(ctx, next); err != nil {
		m.logger.Warn("failed to persist plan",
			zap.String("plan_id", next.ID),
			zap.String("status", string(next.Status)),
			zap.Error(err),
		)
		return prev, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if next.Status == StateComplete && prev.Status != StateComplete {
		m.logger.Info("evening plan complete",
			zap.String("plan_id", next.ID),
			zap.Int("served", next.CurrentIndex),
		)
	}
	return next, nil
}
