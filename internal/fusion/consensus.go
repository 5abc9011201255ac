package fusion

import (
	"math"
	"sort"
)

// Estimate is one series' measurement widened by the sensor's accuracy
// tolerance. Lower <= Upper.
type Estimate struct {
	Lower float64
	Upper float64
}

// Tolerance describes a sensor's accuracy. A reading v is widened to
// [v - w, v + w] with w = Absolute + Relative*|v|.
type Tolerance struct {
	Absolute float64 `yaml:"absolute" json:"absolute"`
	Relative float64 `yaml:"relative" json:"relative"`
}

// Widen builds the Estimate for reading v.
func (t Tolerance) Widen(v float64) Estimate {
	w := t.Absolute + t.Relative*math.Abs(v)
	return Estimate{Lower: v - w, Upper: v + w}
}

// ConsensusResult is the fused range for one quantity and the number of
// estimates that contributed to it.
type ConsensusResult struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Median returns the midpoint of the fused range.
func (c ConsensusResult) Median() float64 {
	return (c.Low + c.High) / 2
}

// Precision returns the half-width of the fused range.
func (c ConsensusResult) Precision() float64 {
	return (c.High - c.Low) / 2
}

// Consensus returns the closed interval intersected by the largest number of
// estimates, together with that number.
//
// Each estimate in turn is taken as a candidate and narrowed against every
// other estimate it overlaps. Candidates are visited in ascending order of
// lower bound (then upper bound), and the first one reaching the highest
// count wins, so the result does not depend on the input order.
//
// Consensus panics on an empty slice; callers route that case to Degraded.
func Consensus(estimates []Estimate) ConsensusResult {
	if len(estimates) == 0 {
		panic("fusion: Consensus called with no estimates")
	}

	sorted := make([]Estimate, len(estimates))
	copy(sorted, estimates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Lower != sorted[j].Lower {
			return sorted[i].Lower < sorted[j].Lower
		}
		return sorted[i].Upper < sorted[j].Upper
	})

	best := ConsensusResult{Low: sorted[0].Lower, High: sorted[0].Upper, Count: 0}
	for i, cand := range sorted {
		l, r := cand.Lower, cand.Upper
		count := 1
		for j, other := range sorted {
			if j == i {
				continue
			}
			if other.Lower <= r && other.Upper >= l {
				l = math.Max(l, other.Lower)
				r = math.Min(r, other.Upper)
				count++
			}
		}
		if count > best.Count {
			best = ConsensusResult{Low: l, High: r, Count: count}
		}
	}
	return best
}
