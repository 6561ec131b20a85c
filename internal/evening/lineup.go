// Package evening plans a wine lineup for an evening and runs it as a
// persisted, resumable serving queue.
package evening

import (
	"fmt"
	"slices"
	"strings"

	"wine-cellar/internal/cellar"
)

// DefaultAlternativesLimit caps the swap preview list.
const DefaultAlternativesLimit = 6

// GroupSize is the ordinal party size picked by the user.
type GroupSize string

const (
	GroupSmall  GroupSize = "small"
	GroupMedium GroupSize = "medium"
	GroupLarge  GroupSize = "large"
)

// ParseGroupSize validates a group size.
func ParseGroupSize(s string) (GroupSize, error) {
	g := GroupSize(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case GroupSmall, GroupMedium, GroupLarge:
		return g, nil
	}
	return "", fmt.Errorf("unknown group size %q (want small, medium or large)", s)
}

// WineCount maps the group size onto the number of wines served.
func (g GroupSize) WineCount() int {
	switch g {
	case GroupMedium:
		return 4
	case GroupLarge:
		return 5
	default:
		return 3
	}
}

// Preferences are collected in the INPUT state.
type Preferences struct {
	Occasion       string    `json:"occasion"`
	GroupSize      GroupSize `json:"group_size"`
	RedsOnly       bool      `json:"reds_only"`
	HighRatingOnly bool      `json:"high_rating_only"`
}

// WineSlot is one entry of a lineup. Position and Label never change once created.
type WineSlot struct {
	Bottle   cellar.Bottle `json:"bottle"`
	Position int           `json:"position"`
	Label    string        `json:"label"`
	Locked   bool          `json:"locked"`
}

var stageLabels = []string{"Warm-up", "Opening Act", "Main Event", "Showstopper", "Grand Finale"}

// StageLabel names a serving position, falling back to "Wine n".
func StageLabel(position int) string {
	if position >= 1 && position <= len(stageLabels) {
		return stageLabels[position-1]
	}
	return fmt.Sprintf("Wine %d", position)
}

// Eligible applies the preference filters to the in-stock candidates.
// Duplicate ids keep their first occurrence.
func Eligible(candidates []cellar.Bottle, prefs Preferences, cutoff float64) []cellar.Bottle {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]cellar.Bottle, 0, len(candidates))
	for _, b := range candidates {
		if !b.InStock() {
			continue
		}
		if prefs.RedsOnly && b.Wine.Color != cellar.ColorRed {
			continue
		}
		if prefs.HighRatingOnly && !b.RatingAtLeast(cutoff) {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Rank orders bottles for serving: READY first, then higher rating
// (unrated last), then bottle id. The order is fully deterministic.
func Rank(bottles []cellar.Bottle) []cellar.Bottle {
	ranked := slices.Clone(bottles)
	slices.SortStableFunc(ranked, func(a, b cellar.Bottle) int {
		ar, br := a.HasLabel(cellar.ReadinessReady), b.HasLabel(cellar.ReadinessReady)
		if ar != br {
			if ar {
				return -1
			}
			return 1
		}
		if c := compareRating(a.Wine.Rating, b.Wine.Rating); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return ranked
}

func compareRating(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	}
	return 0
}

// GenerateLineup picks the top ranked eligible bottles for the group size.
// Fewer eligible bottles give a shorter lineup; none gives an empty one.
func GenerateLineup(candidates []cellar.Bottle, prefs Preferences, cutoff float64) []WineSlot {
	ranked := Rank(Eligible(candidates, prefs, cutoff))
	n := min(prefs.GroupSize.WineCount(), len(ranked))

	lineup := make([]WineSlot, 0, n)
	for i := 0; i < n; i++ {
		lineup = append(lineup, WineSlot{
			Bottle:   ranked[i],
			Position: i + 1,
			Label:    StageLabel(i + 1),
		})
	}
	return lineup
}

// Alternatives lists the bottles that could replace any slot: same filters,
// nothing already in the lineup, ranked and capped at limit.
func Alternatives(lineup []WineSlot, candidates []cellar.Bottle, prefs Preferences, cutoff float64, limit int) []cellar.Bottle {
	inLineup := make(map[string]struct{}, len(lineup))
	for _, s := range lineup {
		inLineup[s.Bottle.ID] = struct{}{}
	}

	var pool []cellar.Bottle
	for _, b := range Eligible(candidates, prefs, cutoff) {
		if _, taken := inLineup[b.ID]; !taken {
			pool = append(pool, b)
		}
	}

	ranked := Rank(pool)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []cellar.Bottle{}
	}
	return ranked
}

// Swap replaces the bottle at position, keeping the slot's position and label.
// The input lineup is not modified.
func Swap(lineup []WineSlot, position int, replacement cellar.Bottle) ([]WineSlot, error) {
	idx := slices.IndexFunc(lineup, func(s WineSlot) bool { return s.Position == position })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPosition, position)
	}
	if lineup[idx].Locked {
		return nil, fmt.Errorf("%w: %d", ErrSlotLocked, position)
	}
	if !replacement.InStock() {
		return nil, fmt.Errorf("%w: bottle %s is out of stock", ErrInvalidPrecondition, replacement.ID)
	}
	for _, s := range lineup {
		if s.Bottle.ID == replacement.ID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBottle, replacement.ID)
		}
	}

	out := slices.Clone(lineup)
	out[idx].Bottle = replacement
	return out, nil
}

// ToggleLock flips the lock on a slot.
func ToggleLock(lineup []WineSlot, position int) ([]WineSlot, error) {
	idx := slices.IndexFunc(lineup, func(s WineSlot) bool { return s.Position == position })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPosition, position)
	}
	out := slices.Clone(lineup)
	out[idx].Locked = !out[idx].Locked
	return out, nil
}
