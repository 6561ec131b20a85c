package evening_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/evening"
	"wine-cellar/internal/testutil"
)

type flakyStore struct {
	evening.PlanStore
	saveErr error
}

func (f *flakyStore) Save(ctx context.Context, plan evening.Plan) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.PlanStore.Save(ctx, plan)
}

// gatedStore holds every GetActive caller until all of them have read,
// so concurrent starts all see "no live plan".
type gatedStore struct {
	evening.PlanStore
	reads sync.WaitGroup
}

func (g *gatedStore) GetActive(ctx context.Context, userID string) (*evening.Plan, error) {
	plan, err := g.PlanStore.GetActive(ctx, userID)
	g.reads.Done()
	g.reads.Wait()
	return plan, err
}

func candidates() []cellar.Bottle {
	mk := func(id string, rating float64) cellar.Bottle {
		return cellar.Bottle{
			ID:        id,
			Quantity:  2,
			Readiness: cellar.Label(cellar.ReadinessReady),
			Wine:      cellar.Wine{Name: id, Color: cellar.ColorRed, Rating: cellar.Float(rating)},
		}
	}
	return []cellar.Bottle{mk("a", 4.8), mk("b", 4.5), mk("c", 4.3), mk("d", 3.9), mk("e", 3.5)}
}

func lineupPlan(t *testing.T, userID string) evening.Plan {
	t.Helper()
	plan, err := evening.NewPlan(userID, evening.Preferences{Occasion: "dinner", GroupSize: evening.GroupSmall}).
		WithLineup(candidates(), cellar.DefaultStandoutRating)
	require.NoError(t, err)
	require.Equal(t, evening.StateLineup, plan.Status)
	return plan
}

func newMachine(t *testing.T) (*evening.Machine, *evening.SQLitePlanStore) {
	t.Helper()
	store := evening.NewSQLitePlanStore(testutil.NewTestDB(t).SQL)
	now := time.Date(2026, 10, 16, 19, 30, 0, 0, time.UTC)
	return evening.NewMachine(store, zap.NewNop(), evening.WithMachineClock(testutil.FixedClock(now))), store
}

func TestMachineLifecycle(t *testing.T) {
	ctx := context.Background()
	machine, store := newMachine(t)

	live, err := machine.Start(ctx, lineupPlan(t, "u1"))
	require.NoError(t, err)
	assert.Equal(t, evening.StateLive, live.Status)
	assert.NotEmpty(t, live.ID)
	require.Len(t, live.Queue, 3)
	assert.Equal(t, "Warm-up", live.Queue[0].Label)

	resumed, err := machine.Resume(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, live.ID, resumed.ID)
	assert.Equal(t, live.Queue, resumed.Queue)

	plan := *resumed
	for i := 0; i < 3; i++ {
		current, ok := plan.Current()
		require.True(t, ok)
		assert.Equal(t, i+1, current.Position)
		plan, err = machine.Advance(ctx, plan)
		require.NoError(t, err)
	}
	assert.Equal(t, evening.StateComplete, plan.Status)
	require.NotNil(t, plan.CompletedAt)
	for _, q := range plan.Queue {
		assert.NotNil(t, q.ServedAt)
	}

	none, err := machine.Resume(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, none)

	stored, err := store.Get(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, evening.StateComplete, stored.Status)
}

func TestMachineCompleteIsTerminal(t *testing.T) {
	ctx := context.Background()
	machine, _ := newMachine(t)

	live, err := machine.Start(ctx, lineupPlan(t, "u1"))
	require.NoError(t, err)
	done, err := machine.Complete(ctx, live)
	require.NoError(t, err)
	assert.Equal(t, evening.StateComplete, done.Status)

	_, err = machine.Complete(ctx, done)
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
	_, err = machine.Advance(ctx, done)
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
	_, err = machine.Start(ctx, done)
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
	_, err = machine.Swap(ctx, done, 1, candidates()[4])
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
	_, err = done.WithLineup(candidates(), cellar.DefaultStandoutRating)
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
}

func TestMachineStartPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondLivePlanRejected", func(t *testing.T) {
		machine, _ := newMachine(t)
		_, err := machine.Start(ctx, lineupPlan(t, "u1"))
		require.NoError(t, err)

		_, err = machine.Start(ctx, lineupPlan(t, "u1"))
		assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)

		_, err = machine.Start(ctx, lineupPlan(t, "u2"))
		assert.NoError(t, err, "other users are independent")
	})

	t.Run("InputPlanRejected", func(t *testing.T) {
		machine, _ := newMachine(t)
		_, err := machine.Start(ctx, evening.NewPlan("u1", evening.Preferences{GroupSize: evening.GroupSmall}))
		assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
	})

	t.Run("EmptyLineupRejected", func(t *testing.T) {
		machine, _ := newMachine(t)
		plan, err := evening.NewPlan("u1", evening.Preferences{GroupSize: evening.GroupSmall}).
			WithLineup(nil, cellar.DefaultStandoutRating)
		require.NoError(t, err)
		_, err = machine.Start(ctx, plan)
		assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
	})

	t.Run("ConcurrentStartsKeepOneLivePlan", func(t *testing.T) {
		store := &gatedStore{PlanStore: evening.NewSQLitePlanStore(testutil.NewTestDB(t).SQL)}
		store.reads.Add(2)
		machine := evening.NewMachine(store, zap.NewNop())

		plans := []evening.Plan{lineupPlan(t, "u1"), lineupPlan(t, "u1")}
		errs := make([]error, len(plans))
		var wg sync.WaitGroup
		for i := range plans {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = machine.Start(ctx, plans[i])
			}(i)
		}
		wg.Wait()

		var failed []error
		for _, err := range errs {
			if err != nil {
				failed = append(failed, err)
			}
		}
		require.Len(t, failed, 1, "exactly one start wins")
		assert.ErrorIs(t, failed[0], evening.ErrInvalidPrecondition)
		assert.NotErrorIs(t, failed[0], evening.ErrPersistenceUnavailable)
	})

	t.Run("PersistFailureKeepsLineup", func(t *testing.T) {
		store := &flakyStore{
			PlanStore: evening.NewSQLitePlanStore(testutil.NewTestDB(t).SQL),
			saveErr:   errors.New("disk full"),
		}
		machine := evening.NewMachine(store, zap.NewNop())

		plan := lineupPlan(t, "u1")
		got, err := machine.Start(ctx, plan)
		assert.ErrorIs(t, err, evening.ErrPersistenceUnavailable)
		assert.Equal(t, evening.StateLineup, got.Status)
		assert.Empty(t, got.ID)
		assert.Equal(t, plan.Lineup, got.Lineup)

		resumed, err := machine.Resume(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, resumed)
	})
}

func TestSQLitePlanStoreRejectsSecondLivePlan(t *testing.T) {
	ctx := context.Background()
	store := evening.NewSQLitePlanStore(testutil.NewTestDB(t).SQL)
	now := time.Date(2026, 10, 16, 19, 30, 0, 0, time.UTC)

	first := lineupPlan(t, "u1")
	first.ID, first.Status, first.CreatedAt, first.UpdatedAt = "p1", evening.StateLive, now, now
	require.NoError(t, store.Save(ctx, first))

	second := first
	second.ID = "p2"
	assert.ErrorIs(t, store.Save(ctx, second), evening.ErrActivePlanExists)

	first.Status = evening.StateComplete
	require.NoError(t, store.Save(ctx, first))
	assert.NoError(t, store.Save(ctx, second), "a completed plan frees the slot")
}

func TestMachineSwap(t *testing.T) {
	ctx := context.Background()
	machine, store := newMachine(t)
	spare := candidates()[4]

	t.Run("LineupSwapIsNotStored", func(t *testing.T) {
		plan := lineupPlan(t, "u1")
		swapped, err := machine.Swap(ctx, plan, 3, spare)
		require.NoError(t, err)
		assert.Equal(t, "e", swapped.Lineup[2].Bottle.ID)

		active, err := store.GetActive(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("LiveSwapOnlyUnserved", func(t *testing.T) {
		live, err := machine.Start(ctx, lineupPlan(t, "u1"))
		require.NoError(t, err)
		live, err = machine.Advance(ctx, live)
		require.NoError(t, err)

		_, err = machine.Swap(ctx, live, 1, spare)
		assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)

		swapped, err := machine.Swap(ctx, live, 2, spare)
		require.NoError(t, err)
		assert.Equal(t, "e", swapped.Queue[1].BottleID)

		active, err := store.GetActive(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "e", active.Lineup[1].Bottle.ID)
		assert.Equal(t, 1, active.CurrentIndex)
	})
}

func TestPlanSwapKeepsPreferences(t *testing.T) {
	white := cellar.Bottle{
		ID:       "w",
		Quantity: 1,
		Wine:     cellar.Wine{Name: "w", Color: cellar.ColorWhite, Rating: cellar.Float(4.9)},
	}
	lowRed := candidates()[4]

	reds, err := evening.NewPlan("u1", evening.Preferences{GroupSize: evening.GroupSmall, RedsOnly: true}).
		WithLineup(candidates(), cellar.DefaultStandoutRating)
	require.NoError(t, err)
	_, err = reds.Swap(1, white)
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
	_, err = reds.Swap(1, lowRed)
	assert.NoError(t, err)

	top, err := evening.NewPlan("u1", evening.Preferences{GroupSize: evening.GroupSmall, HighRatingOnly: true}).
		WithLineup(candidates(), cellar.DefaultStandoutRating)
	require.NoError(t, err)
	assert.Equal(t, cellar.DefaultStandoutRating, top.Cutoff)
	_, err = top.Swap(1, lowRed)
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
}

func TestPlanCheckStock(t *testing.T) {
	plan := lineupPlan(t, "u1")
	assert.NoError(t, plan.CheckStock(candidates()))

	current := candidates()
	current[1].Quantity = 0
	assert.ErrorIs(t, plan.CheckStock(current), evening.ErrInvalidPrecondition)
	assert.ErrorIs(t, plan.CheckStock(candidates()[:2]), evening.ErrInvalidPrecondition, "removed bottle")
}

func TestPlanAlternatives(t *testing.T) {
	plan := lineupPlan(t, "u1")
	alts, err := plan.Alternatives(candidates(), cellar.DefaultStandoutRating, evening.DefaultAlternativesLimit)
	require.NoError(t, err)
	require.Len(t, alts, 2)
	assert.Equal(t, "d", alts[0].ID)

	_, err = evening.NewPlan("u1", evening.Preferences{}).Alternatives(candidates(), 0, 0)
	assert.ErrorIs(t, err, evening.ErrInvalidPrecondition)
}
