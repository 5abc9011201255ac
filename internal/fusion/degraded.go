package fusion

// Degraded combines the estimates of the series that are still up when too
// few survive for Consensus to mean anything.
//
// The bounds of the survivors are summed element-wise rather than
// intersected. This is a legacy numeric shortcut kept for behavioural
// compatibility; it is only ever reached with exactly one survivor, in which
// case it returns that survivor's range unchanged.
//
// With no survivors the result is the fixed pair {0, 0} with a count of 0.
func Degraded(live []Estimate) ConsensusResult {
	var out ConsensusResult
	for _, e := range live {
		out.Low += e.Lower
		out.High += e.Upper
		out.Count++
	}
	return out
}
