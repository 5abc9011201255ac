package fusion

// DefaultDownCycles is the number of consecutive failed reads after which a
// series raises its sticky down alert.
const DefaultDownCycles = 3

// SeriesHealth is the up/down state of one series.
type SeriesHealth struct {
	ConsecutiveFailures uint `json:"consecutive_failures"`
	CurrentlyDown       bool `json:"currently_down"`
}

// HealthTracker keeps per-series failure counters across cycles.
//
// The "down for N cycles" flag is sticky: once a series has failed
// downCycles times in a row the flag stays raised for the lifetime of the
// tracker, even after the series recovers.
type HealthTracker struct {
	series     []SeriesHealth
	stuck      []bool
	downCycles uint
}

// NewHealthTracker returns a tracker for n series. downCycles <= 0 selects
// DefaultDownCycles.
func NewHealthTracker(n, downCycles int) *HealthTracker {
	if downCycles <= 0 {
		downCycles = DefaultDownCycles
	}
	return &HealthTracker{
		series:     make([]SeriesHealth, n),
		stuck:      make([]bool, n),
		downCycles: uint(downCycles),
	}
}

// Record applies the outcome of one read attempt for series id.
func (h *HealthTracker) Record(id int, ok bool) {
	s := &h.series[id]
	if ok {
		s.ConsecutiveFailures = 0
		s.CurrentlyDown = false
		return
	}
	s.ConsecutiveFailures++
	s.CurrentlyDown = true
	if s.ConsecutiveFailures >= h.downCycles {
		h.stuck[id] = true
	}
}

// Health returns the current state of series id.
func (h *HealthTracker) Health(id int) SeriesHealth {
	return h.series[id]
}

// Down reports whether series id failed its most recent read.
func (h *HealthTracker) Down(id int) bool {
	return h.series[id].CurrentlyDown
}

// Stuck reports whether series id has ever reached the down-cycle limit.
func (h *HealthTracker) Stuck(id int) bool {
	return h.stuck[id]
}

// DownCount returns how many series are currently down.
func (h *HealthTracker) DownCount() int {
	var n int
	for _, s := range h.series {
		if s.CurrentlyDown {
			n++
		}
	}
	return n
}

// Len returns the number of tracked series.
func (h *HealthTracker) Len() int {
	return len(h.series)
}
