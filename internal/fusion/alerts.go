package fusion

// SeriesCount is the number of redundant sensor series the agent fuses.
const SeriesCount = 3

// AlertCount is the number of alert lines produced each cycle.
const AlertCount = 17

// Alert line indices. The order is fixed: it is the column order of the row
// log and the line order handed to the actuator.
const (
	AlertTempHighSoft = iota
	AlertTempLowSoft
	AlertTempHighHard
	AlertTempLowHard
	AlertHumHighSoft
	AlertHumLowSoft
	AlertHumHighHard
	AlertHumLowHard
	AlertHumRapidChange
	AlertLuxHigh
	AlertLuxHoursHigh

	// AlertSeriesDown+id is raised while series id is down.
	AlertSeriesDown
	// AlertSeriesStuckDown+id is sticky once series id has been down for
	// the configured number of cycles.
	AlertSeriesStuckDown = AlertSeriesDown + SeriesCount
)

// AlertVector holds one flag per alert line.
type AlertVector [AlertCount]bool

var alertNames = [AlertCount]string{
	"temp_high_soft",
	"temp_low_soft",
	"temp_high_hard",
	"temp_low_hard",
	"humidity_high_soft",
	"humidity_low_soft",
	"humidity_high_hard",
	"humidity_low_hard",
	"humidity_rapid_change",
	"lux_high",
	"lux_hours_high",
	"series1_down",
	"series2_down",
	"series3_down",
	"series1_down_3",
	"series2_down_3",
	"series3_down_3",
}

// AlertName returns the stable name of alert line i.
func AlertName(i int) string {
	if i < 0 || i >= AlertCount {
		return "unknown"
	}
	return alertNames[i]
}

// Active returns the indices of raised lines in ascending order.
func (v AlertVector) Active() []int {
	var out []int
	for i, on := range v {
		if on {
			out = append(out, i)
		}
	}
	return out
}

// Any reports whether at least one line is raised.
func (v AlertVector) Any() bool {
	for _, on := range v {
		if on {
			return true
		}
	}
	return false
}
