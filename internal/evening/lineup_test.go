package evening

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wine-cellar/internal/cellar"
)

func wine(id string, color cellar.Color, rating *float64, label *cellar.ReadinessLabel) cellar.Bottle {
	return cellar.Bottle{
		ID:        id,
		Quantity:  1,
		Readiness: label,
		Wine:      cellar.Wine{Name: id, Color: color, Rating: rating},
	}
}

func cellarFixture() []cellar.Bottle {
	ready := cellar.Label(cellar.ReadinessReady)
	hold := cellar.Label(cellar.ReadinessHold)
	return []cellar.Bottle{
		wine("r1", cellar.ColorRed, cellar.Float(4.1), ready),
		wine("r2", cellar.ColorRed, cellar.Float(4.6), ready),
		wine("w1", cellar.ColorWhite, cellar.Float(4.4), ready),
		wine("s1", cellar.ColorSparkling, nil, ready),
		wine("r3", cellar.ColorRed, cellar.Float(4.9), hold),
		wine("w2", cellar.ColorWhite, cellar.Float(3.2), nil),
		wine("r4", cellar.ColorRed, nil, nil),
	}
}

func ids(bottles []cellar.Bottle) []string {
	out := make([]string, 0, len(bottles))
	for _, b := range bottles {
		out = append(out, b.ID)
	}
	return out
}

func slotIDs(lineup []WineSlot) []string {
	out := make([]string, 0, len(lineup))
	for _, s := range lineup {
		out = append(out, s.Bottle.ID)
	}
	return out
}

func TestGroupSize(t *testing.T) {
	g, err := ParseGroupSize(" Medium ")
	require.NoError(t, err)
	assert.Equal(t, GroupMedium, g)

	_, err = ParseGroupSize("huge")
	assert.Error(t, err)

	assert.Less(t, GroupSmall.WineCount(), GroupMedium.WineCount())
	assert.Less(t, GroupMedium.WineCount(), GroupLarge.WineCount())
}

func TestStageLabel(t *testing.T) {
	assert.Equal(t, "Warm-up", StageLabel(1))
	assert.Equal(t, "Grand Finale", StageLabel(5))
	assert.Equal(t, "Wine 6", StageLabel(6))
}

func TestRank(t *testing.T) {
	got := ids(Rank(cellarFixture()))
	assert.Equal(t, []string{"r2", "w1", "r1", "s1", "r3", "w2", "r4"}, got)

	// Input order does not matter.
	reversed := cellarFixture()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	assert.Equal(t, got, ids(Rank(reversed)))
}

func TestGenerateLineup(t *testing.T) {
	t.Run("TopRankedWithLabels", func(t *testing.T) {
		lineup := GenerateLineup(cellarFixture(), Preferences{GroupSize: GroupMedium}, cellar.DefaultStandoutRating)
		require.Len(t, lineup, 4)
		assert.Equal(t, []string{"r2", "w1", "r1", "s1"}, slotIDs(lineup))
		for i, s := range lineup {
			assert.Equal(t, i+1, s.Position)
			assert.Equal(t, StageLabel(i+1), s.Label)
			assert.False(t, s.Locked)
		}
	})

	t.Run("ScarceRedsGiveShorterLineup", func(t *testing.T) {
		bottles := []cellar.Bottle{
			wine("r1", cellar.ColorRed, cellar.Float(4.0), nil),
			wine("r2", cellar.ColorRed, cellar.Float(4.5), nil),
			wine("w1", cellar.ColorWhite, cellar.Float(5.0), nil),
		}
		lineup := GenerateLineup(bottles, Preferences{GroupSize: GroupSmall, RedsOnly: true}, cellar.DefaultStandoutRating)
		assert.Equal(t, []string{"r2", "r1"}, slotIDs(lineup))
	})

	t.Run("HighRatingOnly", func(t *testing.T) {
		lineup := GenerateLineup(cellarFixture(), Preferences{GroupSize: GroupLarge, HighRatingOnly: true}, 4.2)
		assert.Equal(t, []string{"r2", "w1", "r3"}, slotIDs(lineup))
	})

	t.Run("NoDuplicates", func(t *testing.T) {
		bottles := append(cellarFixture(), cellarFixture()...)
		lineup := GenerateLineup(bottles, Preferences{GroupSize: GroupLarge}, cellar.DefaultStandoutRating)
		seen := map[string]bool{}
		for _, s := range lineup {
			assert.False(t, seen[s.Bottle.ID], "duplicate %s", s.Bottle.ID)
			seen[s.Bottle.ID] = true
		}
		assert.LessOrEqual(t, len(lineup), GroupLarge.WineCount())
	})

	t.Run("OutOfStockNeverPicked", func(t *testing.T) {
		bottles := cellarFixture()
		bottles[1].Quantity = 0
		lineup := GenerateLineup(bottles, Preferences{GroupSize: GroupLarge}, cellar.DefaultStandoutRating)
		assert.NotContains(t, slotIDs(lineup), "r2")
	})

	t.Run("EmptyCellar", func(t *testing.T) {
		lineup := GenerateLineup(nil, Preferences{GroupSize: GroupSmall}, cellar.DefaultStandoutRating)
		assert.Empty(t, lineup)
	})
}

func TestAlternatives(t *testing.T) {
	prefs := Preferences{GroupSize: GroupSmall}
	lineup := GenerateLineup(cellarFixture(), prefs, cellar.DefaultStandoutRating)

	alts := Alternatives(lineup, cellarFixture(), prefs, cellar.DefaultStandoutRating, DefaultAlternativesLimit)
	assert.Equal(t, []string{"s1", "r3", "w2", "r4"}, ids(alts))

	capped := Alternatives(lineup, cellarFixture(), prefs, cellar.DefaultStandoutRating, 2)
	assert.Equal(t, []string{"s1", "r3"}, ids(capped))

	t.Run("NoneLeft", func(t *testing.T) {
		all := GenerateLineup(cellarFixture(), Preferences{GroupSize: GroupLarge, RedsOnly: true}, cellar.DefaultStandoutRating)
		alts := Alternatives(all, cellarFixture(), Preferences{RedsOnly: true}, cellar.DefaultStandoutRating, DefaultAlternativesLimit)
		assert.NotNil(t, alts)
		assert.Empty(t, alts)
	})
}

func TestSwap(t *testing.T) {
	bottles := cellarFixture()
	lineup := GenerateLineup(bottles, Preferences{GroupSize: GroupSmall}, cellar.DefaultStandoutRating)

	swapped, err := Swap(lineup, 2, bottles[4])
	require.NoError(t, err)
	assert.Equal(t, "r3", swapped[1].Bottle.ID)
	assert.Equal(t, 2, swapped[1].Position)
	assert.Equal(t, "Opening Act", swapped[1].Label)
	assert.Equal(t, "w1", lineup[1].Bottle.ID, "input lineup untouched")

	tests := []struct {
		name     string
		lineup   []WineSlot
		position int
		bottle   cellar.Bottle
		want     error
	}{
		{"UnknownPosition", lineup, 9, bottles[4], ErrUnknownPosition},
		{"AlreadyInLineup", lineup, 2, bottles[0], ErrDuplicateBottle},
		{"OutOfStock", lineup, 2, cellar.Bottle{ID: "gone"}, ErrInvalidPrecondition},
		{"Locked", mustLock(t, lineup, 2), 2, bottles[4], ErrSlotLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Swap(tt.lineup, tt.position, tt.bottle)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func mustLock(t *testing.T, lineup []WineSlot, position int) []WineSlot {
	t.Helper()
	locked, err := ToggleLock(lineup, position)
	require.NoError(t, err)
	return locked
}

func TestToggleLock(t *testing.T) {
	lineup := GenerateLineup(cellarFixture(), Preferences{GroupSize: GroupSmall}, cellar.DefaultStandoutRating)

	locked := mustLock(t, lineup, 1)
	assert.True(t, locked[0].Locked)
	assert.False(t, lineup[0].Locked)

	unlocked := mustLock(t, locked, 1)
	assert.False(t, unlocked[0].Locked)

	_, err := ToggleLock(lineup, 0)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}
