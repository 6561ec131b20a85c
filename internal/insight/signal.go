package insight

import "wine-cellar/internal/cellar"

// TonightSignal counts the standout bottles that are ready to drink.
type TonightSignal struct {
	Count     int     `json:"count"`
	Threshold float64 `json:"threshold"`
}

// Actionable is false when no ready bottle clears the threshold.
func (s TonightSignal) Actionable() bool {
	return s.Count > 0
}

// ComputeTonightSignal uses a fixed rating cutoff: a ready bottle qualifies
// when its rating is at least threshold. Unrated bottles never qualify.
func ComputeTonightSignal(ready []cellar.Bottle, threshold float64) TonightSignal {
	s := TonightSignal{Threshold: threshold}
	for _, b := range ready {
		if b.InStock() && b.RatingAtLeast(threshold) {
			s.Count++
		}
	}
	return s
}
