package fusion

import "math"

// DefaultWindowSize is one hour of readings at one reading per minute.
const DefaultWindowSize = 60

// ChangeWindow is a fixed-capacity circular buffer of recent fused medians
// used to detect rapid change.
type ChangeWindow struct {
	slots     []float64
	cycle     uint64
	threshold float64
}

// NewChangeWindow returns a window of the given capacity that flags a change
// larger than threshold. capacity <= 0 selects DefaultWindowSize.
func NewChangeWindow(capacity int, threshold float64) *ChangeWindow {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &ChangeWindow{
		slots:     make([]float64, capacity),
		threshold: threshold,
	}
}

// Observe stores v in slot cycle mod capacity and reports whether v differs
// from any compared slot by more than the threshold.
//
// Until the buffer has been filled once only the slots written before v are
// compared. Afterwards every slot is compared, including the one v was just
// written to.
func (w *ChangeWindow) Observe(v float64) bool {
	c := uint64(len(w.slots))
	slot := w.cycle % c
	w.slots[slot] = v

	n := c
	if w.cycle < c {
		n = w.cycle
	}
	w.cycle++

	for i := uint64(0); i < n; i++ {
		if math.Abs(w.slots[i]-v) > w.threshold {
			return true
		}
	}
	return false
}

// SetThreshold replaces the change threshold. The buffer is kept.
func (w *ChangeWindow) SetThreshold(t float64) {
	w.threshold = t
}

// Filled reports whether at least capacity observations have been made.
func (w *ChangeWindow) Filled() bool {
	return w.cycle >= uint64(len(w.slots))
}

// Len returns the number of observations made so far.
func (w *ChangeWindow) Len() uint64 {
	return w.cycle
}
