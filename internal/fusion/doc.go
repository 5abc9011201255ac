// Package fusion reconciles redundant sensor readings into one range per
// quantity and derives the per-cycle alert lines.
//
// consensus.go provides the pure Consensus function: given the tolerance
// intervals of the live series it returns the sub-range agreed on by the
// largest number of them (Marzullo-style narrowing).
//
// degraded.go holds the fallback rule used when only one series survives.
//
// window.go, health.go and threshold.go hold the rolling humidity change
// window, the per-series failure counters and the soft/hard limit checks.
//
// cycle.go provides the stateful Cycle that owns all of the above across
// polling ticks. Cycle.Process accepts an injectable time.Time so tests are
// deterministic. Cycle is not safe for concurrent use; the agent loop is its
// only caller.
package fusion
