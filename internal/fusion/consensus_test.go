package fusion

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestConsensus_SingleInterval(t *testing.T) {
	got := Consensus([]Estimate{{Lower: 20.1, Upper: 20.5}})
	if got.Low != 20.1 || got.High != 20.5 {
		t.Errorf("range = [%v, %v], want [20.1, 20.5]", got.Low, got.High)
	}
	if got.Count != 1 {
		t.Errorf("Count = %d, want 1", got.Count)
	}
}

func TestConsensus_DisjointOutlierExcluded(t *testing.T) {
	got := Consensus([]Estimate{
		{Lower: 20.0, Upper: 20.4},
		{Lower: 20.2, Upper: 20.6},
		{Lower: 25.0, Upper: 25.4},
	})
	if !almostEqual(got.Low, 20.2, 1e-9) || !almostEqual(got.High, 20.4, 1e-9) {
		t.Errorf("range = [%v, %v], want [20.2, 20.4]", got.Low, got.High)
	}
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
}

func TestConsensus_AllAgree(t *testing.T) {
	got := Consensus([]Estimate{
		{Lower: 44, Upper: 48},
		{Lower: 45, Upper: 49},
		{Lower: 43, Upper: 47},
	})
	if got.Low != 45 || got.High != 47 || got.Count != 3 {
		t.Errorf("got %+v, want {45 47 3}", got)
	}
	if got.Median() != 46 {
		t.Errorf("Median = %v, want 46", got.Median())
	}
	if got.Precision() != 1 {
		t.Errorf("Precision = %v, want 1", got.Precision())
	}
}

func TestConsensus_NoOverlapPicksLowest(t *testing.T) {
	got := Consensus([]Estimate{
		{Lower: 30, Upper: 31},
		{Lower: 10, Upper: 11},
		{Lower: 20, Upper: 21},
	})
	if got.Low != 10 || got.High != 11 || got.Count != 1 {
		t.Errorf("got %+v, want {10 11 1}", got)
	}
}

func TestConsensus_PermutationInvariant(t *testing.T) {
	base := []Estimate{
		{Lower: 20.0, Upper: 20.4},
		{Lower: 20.2, Upper: 20.6},
		{Lower: 25.0, Upper: 25.4},
	}
	want := Consensus(base)

	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range perms {
		in := []Estimate{base[p[0]], base[p[1]], base[p[2]]}
		if got := Consensus(in); got != want {
			t.Errorf("perm %v: got %+v, want %+v", p, got, want)
		}
	}
}

func TestConsensus_ResultWithinWinningBounds(t *testing.T) {
	cases := [][]Estimate{
		{{Lower: 1, Upper: 5}, {Lower: 2, Upper: 3}, {Lower: 4, Upper: 6}},
		{{Lower: -1, Upper: 1}, {Lower: 0, Upper: 2}, {Lower: 1, Upper: 3}},
		{{Lower: 5, Upper: 5}, {Lower: 5, Upper: 5}},
		{{Lower: 0, Upper: 10}, {Lower: 9, Upper: 11}, {Lower: -5, Upper: 0.5}},
	}
	for i, in := range cases {
		got := Consensus(in)
		if got.Low > got.High {
			t.Errorf("case %d: low %v > high %v", i, got.Low, got.High)
		}
		if got.Count < 1 || got.Count > len(in) {
			t.Errorf("case %d: Count = %d out of range", i, got.Count)
		}
		var lowFound, highFound bool
		for _, e := range in {
			if e.Lower == got.Low || e.Upper == got.Low {
				lowFound = true
			}
			if e.Lower == got.High || e.Upper == got.High {
				highFound = true
			}
		}
		if !lowFound || !highFound {
			t.Errorf("case %d: result %+v not drawn from input bounds", i, got)
		}
	}
}

func TestConsensus_EmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on empty input")
		}
	}()
	Consensus(nil)
}

func TestConsensus_DoesNotMutateInput(t *testing.T) {
	in := []Estimate{{Lower: 3, Upper: 4}, {Lower: 1, Upper: 2}}
	Consensus(in)
	if in[0].Lower != 3 || in[1].Lower != 1 {
		t.Errorf("input reordered: %+v", in)
	}
}

func TestTolerance_Widen(t *testing.T) {
	tests := []struct {
		name string
		tol  Tolerance
		v    float64
		want Estimate
	}{
		{"absolute", Tolerance{Absolute: 0.2}, 21, Estimate{Lower: 20.8, Upper: 21.2}},
		{"relative", Tolerance{Relative: 0.1}, 150, Estimate{Lower: 135, Upper: 165}},
		{"relative zero", Tolerance{Relative: 0.1}, 0, Estimate{}},
		{"relative negative keeps order", Tolerance{Relative: 0.5}, -4, Estimate{Lower: -6, Upper: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tol.Widen(tt.v)
			if !almostEqual(got.Lower, tt.want.Lower, 1e-9) || !almostEqual(got.Upper, tt.want.Upper, 1e-9) {
				t.Errorf("Widen(%v) = %+v, want %+v", tt.v, got, tt.want)
			}
		})
	}
}

func TestDegraded(t *testing.T) {
	if got := Degraded(nil); got != (ConsensusResult{}) {
		t.Errorf("Degraded(nil) = %+v, want zero", got)
	}

	got := Degraded([]Estimate{{Lower: 44, Upper: 48}})
	if got.Low != 44 || got.High != 48 || got.Count != 1 {
		t.Errorf("single survivor: got %+v, want {44 48 1}", got)
	}

	got = Degraded([]Estimate{{Lower: 1, Upper: 2}, {Lower: 3, Upper: 5}})
	if got.Low != 4 || got.High != 7 || got.Count != 2 {
		t.Errorf("sum: got %+v, want {4 7 2}", got)
	}
}
