package fusion

// Limits is the soft/hard band for one quantity. The ordering
// LowHard < LowSoft < HighSoft < HighHard is the caller's contract; it is
// checked by the config loader, not here.
//
// Single-line quantities (lux, lux-hours, humidity change) only use HighSoft.
type Limits struct {
	LowHard  float64 `yaml:"low_hard" json:"low_hard"`
	LowSoft  float64 `yaml:"low_soft" json:"low_soft"`
	HighSoft float64 `yaml:"high_soft" json:"high_soft"`
	HighHard float64 `yaml:"high_hard" json:"high_hard"`
}

// ThresholdSet holds the limits for every quantity the cycle evaluates.
type ThresholdSet struct {
	Temperature    Limits `yaml:"temperature" json:"temperature"`
	Humidity       Limits `yaml:"humidity" json:"humidity"`
	Lux            Limits `yaml:"lux" json:"lux"`
	LuxHours       Limits `yaml:"lux_hours" json:"lux_hours"`
	HumidityChange Limits `yaml:"humidity_change" json:"humidity_change"`
}

// DefaultThresholds returns the limits used by the original installation.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		Temperature:    Limits{LowHard: 20, LowSoft: 20.5, HighSoft: 21.5, HighHard: 22},
		Humidity:       Limits{LowHard: 25, LowSoft: 40, HighSoft: 50, HighHard: 65},
		Lux:            Limits{HighSoft: 200},
		LuxHours:       Limits{HighSoft: 1000},
		HumidityChange: Limits{HighSoft: 10},
	}
}

// EvaluateLow checks the low bound of a fused range.
// soft is raised when low < LowSoft; hard additionally when low < LowHard.
func EvaluateLow(low float64, l Limits) (soft, hard bool) {
	if low >= l.LowSoft {
		return false, false
	}
	return true, low < l.LowHard
}

// EvaluateHigh is the mirror of EvaluateLow for the high bound.
func EvaluateHigh(high float64, l Limits) (soft, hard bool) {
	if high <= l.HighSoft {
		return false, false
	}
	return true, high > l.HighHard
}

// Bands evaluated for one quantity.
type bandFlags struct {
	highSoft, lowSoft, highHard, lowHard bool
}

func evaluateBand(r ConsensusResult, l Limits) bandFlags {
	var b bandFlags
	b.lowSoft, b.lowHard = EvaluateLow(r.Low, l)
	b.highSoft, b.highHard = EvaluateHigh(r.High, l)
	return b
}

// Measurements is everything the threshold checks look at in one cycle.
type Measurements struct {
	Temperature    ConsensusResult
	Humidity       ConsensusResult
	Lux            ConsensusResult
	LuxHours       float64
	HumidityChange bool
}

// Evaluate recomputes the non-sticky alert lines from scratch. Series lines
// are left to the caller.
func Evaluate(m Measurements, t ThresholdSet) AlertVector {
	var v AlertVector

	temp := evaluateBand(m.Temperature, t.Temperature)
	v[AlertTempHighSoft] = temp.highSoft
	v[AlertTempLowSoft] = temp.lowSoft
	v[AlertTempHighHard] = temp.highHard
	v[AlertTempLowHard] = temp.lowHard

	hum := evaluateBand(m.Humidity, t.Humidity)
	v[AlertHumHighSoft] = hum.highSoft
	v[AlertHumLowSoft] = hum.lowSoft
	v[AlertHumHighHard] = hum.highHard
	v[AlertHumLowHard] = hum.lowHard

	v[AlertHumRapidChange] = m.HumidityChange
	v[AlertLuxHigh] = m.Lux.Low > t.Lux.HighSoft || m.Lux.High > t.Lux.HighSoft
	v[AlertLuxHoursHigh] = m.LuxHours > t.LuxHours.HighSoft
	return v
}
