package cellar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultStandoutRating is the rating a bottle needs to be considered a standout.
// It backs both the tonight signal and the "high rating only" lineup filter.
const DefaultStandoutRating = 4.2

// ErrBottleNotFound is returned when a bottle id is unknown.
var ErrBottleNotFound = errors.New("bottle not found")

// Color is the wine color family.
type Color string

const (
	ColorRed       Color = "red"
	ColorWhite     Color = "white"
	ColorRose      Color = "rose"
	ColorSparkling Color = "sparkling"
)

// ParseColor normalizes a free-form color into a Color.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "tinto", "rouge":
		return ColorRed, nil
	case "white", "blanc", "branco":
		return ColorWhite, nil
	case "rose", "rosé", "rosado":
		return ColorRose, nil
	case "sparkling", "champagne", "espumante":
		return ColorSparkling, nil
	}
	return "", fmt.Errorf("unknown wine color %q", s)
}

// ReadinessLabel is the drink-window classification produced by the analysis agent.
type ReadinessLabel string

const (
	ReadinessHold     ReadinessLabel = "HOLD"
	ReadinessPeakSoon ReadinessLabel = "PEAK_SOON"
	ReadinessReady    ReadinessLabel = "READY"
)

// Labels lists every readiness label in display order.
var Labels = []ReadinessLabel{ReadinessHold, ReadinessPeakSoon, ReadinessReady}

// ParseReadinessLabel validates a label string.
func ParseReadinessLabel(s string) (ReadinessLabel, error) {
	l := ReadinessLabel(strings.ToUpper(strings.TrimSpace(s)))
	switch l {
	case ReadinessHold, ReadinessPeakSoon, ReadinessReady:
		return l, nil
	}
	return "", fmt.Errorf("unknown readiness label %q", s)
}

// Wine describes what is inside the bottle.
type Wine struct {
	Name     string   `json:"name"`
	Producer string   `json:"producer,omitempty"`
	Region   string   `json:"region,omitempty"`
	Grape    string   `json:"grape,omitempty"`
	Color    Color    `json:"color"`
	Rating   *float64 `json:"rating,omitempty"`
	Vintage  *int     `json:"vintage,omitempty"`
}

// Bottle is a cellar entry. A nil Readiness means the bottle was never analyzed.
type Bottle struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Quantity   int             `json:"quantity"`
	Wine       Wine            `json:"wine"`
	Readiness  *ReadinessLabel `json:"readiness_label,omitempty"`
	DrinkFrom  *int            `json:"drink_from,omitempty"`
	DrinkUntil *int            `json:"drink_until,omitempty"`
	AnalyzedAt *time.Time      `json:"analyzed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// InStock reports whether the bottle takes part in insights and planning.
func (b Bottle) InStock() bool {
	return b.Quantity > 0
}

// HasLabel reports whether the bottle carries the given readiness label.
func (b Bottle) HasLabel(l ReadinessLabel) bool {
	return b.Readiness != nil && *b.Readiness == l
}

// RatingAtLeast is false for unrated bottles.
func (b Bottle) RatingAtLeast(cutoff float64) bool {
	return b.Wine.Rating != nil && *b.Wine.Rating >= cutoff
}

// DisplayName renders "Producer Name Vintage" for chat and CLI output.
func (b Bottle) DisplayName() string {
	parts := make([]string, 0, 3)
	if b.Wine.Producer != "" {
		parts = append(parts, b.Wine.Producer)
	}
	if b.Wine.Name != "" {
		parts = append(parts, b.Wine.Name)
	}
	if b.Wine.Vintage != nil {
		parts = append(parts, fmt.Sprintf("%d", *b.Wine.Vintage))
	}
	if len(parts) == 0 {
		return b.ID
	}
	return strings.Join(parts, " ")
}

// InStockOnly filters out bottles with no remaining quantity.
func InStockOnly(bottles []Bottle) []Bottle {
	out := make([]Bottle, 0, len(bottles))
	for _, b := range bottles {
		if b.InStock() {
			out = append(out, b)
		}
	}
	return out
}

// Source supplies the bottles of a user's cellar.
type Source interface {
	ListBottles(ctx context.Context, userID string) ([]Bottle, error)
}

// Float and Int are helpers for building optional fields.
func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

func Label(l ReadinessLabel) *ReadinessLabel { return &l }
