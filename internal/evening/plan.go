package evening

import (
	"errors"
	"fmt"
	"time"

	"wine-cellar/internal/cellar"
)

var (
	// ErrInvalidPrecondition marks programmer errors: a transition the
	// current state does not allow, or a second live plan for a user.
	ErrInvalidPrecondition = errors.New("invalid precondition")
	// ErrPersistenceUnavailable wraps plan store failures. The plan keeps its previous state.
	ErrPersistenceUnavailable = errors.New("plan persistence unavailable")
	ErrUnknownPosition        = errors.New("no slot at position")
	ErrSlotLocked             = errors.New("slot is locked")
	ErrDuplicateBottle        = errors.New("bottle already in lineup")
	// ErrActivePlanExists is returned by a PlanStore when saving would leave
	// a user with two live plans.
	ErrActivePlanExists = errors.New("user already has a live plan")
)

// State is the lifecycle state of an evening plan.
type State string

const (
	StateInput    State = "INPUT"
	StateLineup   State = "LINEUP"
	StateLive     State = "LIVE"
	StateComplete State = "COMPLETE"
)

// QueueEntry is a served-or-pending lineup slot of a live plan.
type QueueEntry struct {
	Position   int        `json:"position"`
	Label      string     `json:"label"`
	BottleID   string     `json:"bottle_id"`
	BottleName string     `json:"bottle_name"`
	ServedAt   *time.Time `json:"served_at,omitempty"`
}

// Plan is an evening plan in any state. Callers own the value and pass it
// back into every transition; nothing is held globally.
type Plan struct {
	ID           string       `json:"id,omitempty"`
	UserID       string       `json:"user_id"`
	Status       State        `json:"status"`
	Settings     Preferences  `json:"settings"`
	Cutoff       float64      `json:"cutoff"`
	Lineup       []WineSlot   `json:"lineup"`
	Queue        []QueueEntry `json:"queue,omitempty"`
	CurrentIndex int          `json:"current_index"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// NewPlan starts a plan in the INPUT state.
func NewPlan(userID string, prefs Preferences) Plan {
	return Plan{UserID: userID, Status: StateInput, Settings: prefs}
}

// Occasion is shorthand for Settings.Occasion.
func (p Plan) Occasion() string { return p.Settings.Occasion }

// GroupSize is shorthand for Settings.GroupSize.
func (p Plan) GroupSize() GroupSize { return p.Settings.GroupSize }

// Current returns the queue entry being served, if any.
func (p Plan) Current() (QueueEntry, bool) {
	if p.Status != StateLive || p.CurrentIndex >= len(p.Queue) {
		return QueueEntry{}, false
	}
	return p.Queue[p.CurrentIndex], true
}

// WithLineup generates the lineup from candidates and moves to LINEUP.
// Regenerating from LINEUP is allowed.
func (p Plan) WithLineup(candidates []cellar.Bottle, cutoff float64) (Plan, error) {
	if p.Status != StateInput && p.Status != StateLineup {
		return p, transitionError(p.Status, StateLineup)
	}
	p.Lineup = GenerateLineup(candidates, p.Settings, cutoff)
	p.Cutoff = cutoff
	p.Status = StateLineup
	return p, nil
}

// Alternatives lists swap candidates for the plan's lineup.
func (p Plan) Alternatives(candidates []cellar.Bottle, cutoff float64, limit int) ([]cellar.Bottle, error) {
	if p.Status == StateComplete || p.Status == StateInput {
		return nil, fmt.Errorf("%w: no lineup to swap in state %s", ErrInvalidPrecondition, p.Status)
	}
	return Alternatives(p.Lineup, candidates, p.Settings, cutoff, limit), nil
}

// Swap replaces the bottle at position. Only LINEUP plans and the unserved
// part of a LIVE plan can be changed, and the replacement must pass the
// plan's own filters.
func (p Plan) Swap(position int, replacement cellar.Bottle) (Plan, error) {
	switch p.Status {
	case StateLineup:
	case StateLive:
		if p.served(position) {
			return p, fmt.Errorf("%w: position %d was already served", ErrInvalidPrecondition, position)
		}
	default:
		return p, fmt.Errorf("%w: cannot swap in state %s", ErrInvalidPrecondition, p.Status)
	}

	if replacement.InStock() && len(Eligible([]cellar.Bottle{replacement}, p.Settings, p.Cutoff)) == 0 {
		return p, fmt.Errorf("%w: %s does not match the plan preferences", ErrInvalidPrecondition, replacement.DisplayName())
	}

	lineup, err := Swap(p.Lineup, position, replacement)
	if err != nil {
		return p, err
	}
	p.Lineup = lineup
	if p.Status == StateLive {
		p.Queue = cloneQueue(p.Queue)
		for i := range p.Queue {
			if p.Queue[i].Position == position {
				p.Queue[i].BottleID = replacement.ID
				p.Queue[i].BottleName = replacement.DisplayName()
			}
		}
	}
	return p, nil
}

// CheckStock verifies every lineup bottle is still in stock in current.
// Bottles missing from current count as gone.
func (p Plan) CheckStock(current []cellar.Bottle) error {
	stock := make(map[string]int, len(current))
	for _, b := range current {
		stock[b.ID] = b.Quantity
	}
	for _, s := range p.Lineup {
		if stock[s.Bottle.ID] <= 0 {
			return fmt.Errorf("%w: %s at position %d is out of stock", ErrInvalidPrecondition, s.Bottle.DisplayName(), s.Position)
		}
	}
	return nil
}

// ToggleLock flips the lock on a slot of a LINEUP plan.
func (p Plan) ToggleLock(position int) (Plan, error) {
	if p.Status != StateLineup {
		return p, fmt.Errorf("%w: cannot lock slots in state %s", ErrInvalidPrecondition, p.Status)
	}
	lineup, err := ToggleLock(p.Lineup, position)
	if err != nil {
		return p, err
	}
	p.Lineup = lineup
	return p, nil
}

func (p Plan) served(position int) bool {
	for _, q := range p.Queue {
		if q.Position == position {
			return q.ServedAt != nil
		}
	}
	return false
}

func buildQueue(lineup []WineSlot) []QueueEntry {
	queue := make([]QueueEntry, 0, len(lineup))
	for _, s := range lineup {
		queue = append(queue, QueueEntry{
			Position:   s.Position,
			Label:      s.Label,
			BottleID:   s.Bottle.ID,
			BottleName: s.Bottle.DisplayName(),
		})
	}
	return queue
}

func cloneQueue(q []QueueEntry) []QueueEntry {
	out := make([]QueueEntry, len(q))
	copy(out, q)
	return out
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidPrecondition, from, to)
}
