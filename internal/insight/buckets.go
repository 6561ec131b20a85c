// Package insight turns a cellar into drink-window buckets, month-over-month
// deltas backed by daily snapshots, and the tonight signal.
package insight

import "wine-cellar/internal/cellar"

// Counts holds the number of bottles per readiness label.
type Counts struct {
	Hold     int `json:"HOLD"`
	PeakSoon int `json:"PEAK_SOON"`
	Ready    int `json:"READY"`
}

// Get returns the count for a label.
func (c Counts) Get(l cellar.ReadinessLabel) int {
	switch l {
	case cellar.ReadinessHold:
		return c.Hold
	case cellar.ReadinessPeakSoon:
		return c.PeakSoon
	case cellar.ReadinessReady:
		return c.Ready
	}
	return 0
}

// Total is the number of analyzed bottles.
func (c Counts) Total() int {
	return c.Hold + c.PeakSoon + c.Ready
}

// Buckets partitions the analyzed, in-stock bottles of a cellar.
type Buckets struct {
	Hold          []cellar.Bottle
	PeakSoon      []cellar.Bottle
	Ready         []cellar.Bottle
	TotalAnalyzed int
}

// Bottles returns the bottles of one bucket.
func (b Buckets) Bottles(l cellar.ReadinessLabel) []cellar.Bottle {
	switch l {
	case cellar.ReadinessHold:
		return b.Hold
	case cellar.ReadinessPeakSoon:
		return b.PeakSoon
	case cellar.ReadinessReady:
		return b.Ready
	}
	return nil
}

// Counts returns the bucket sizes.
func (b Buckets) Counts() Counts {
	return Counts{Hold: len(b.Hold), PeakSoon: len(b.PeakSoon), Ready: len(b.Ready)}
}

// ComputeBuckets partitions bottles by readiness label. Out-of-stock and
// unanalyzed bottles are left out; every other bottle lands in exactly one bucket.
// Counts are per bottle record, not per unit.
func ComputeBuckets(bottles []cellar.Bottle) Buckets {
	b := Buckets{
		Hold:     []cellar.Bottle{},
		PeakSoon: []cellar.Bottle{},
		Ready:    []cellar.Bottle{},
	}
	for _, bottle := range bottles {
		if !bottle.InStock() || bottle.Readiness == nil {
			continue
		}
		switch *bottle.Readiness {
		case cellar.ReadinessHold:
			b.Hold = append(b.Hold, bottle)
		case cellar.ReadinessPeakSoon:
			b.PeakSoon = append(b.PeakSoon, bottle)
		case cellar.ReadinessReady:
			b.Ready = append(b.Ready, bottle)
		}
	}
	b.TotalAnalyzed = len(b.Hold) + len(b.PeakSoon) + len(b.Ready)
	return b
}
