package fusion

import (
	"log/slog"
	"math"
	"time"
)

// DefaultLuxHoursReset is the number of cycles after which the lux-hours
// accumulator restarts: one day at one reading per minute.
const DefaultLuxHoursReset = 1440

// State is the phase of the per-tick pipeline.
type State int

const (
	StateIdle State = iota
	StateSampling
	StateFusing
	StateEvaluating
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateFusing:
		return "fusing"
	case StateEvaluating:
		return "evaluating"
	case StateReporting:
		return "reporting"
	default:
		return "idle"
	}
}

// Fusion paths recorded on each QuantityResult.
const (
	PathConsensus = "consensus"
	PathDegraded  = "degraded"
	PathNone      = "none"
)

// SeriesReading is the raw output of one series for one cycle. A quantity
// whose Has flag is false was not reported by the series.
type SeriesReading struct {
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	Lux            float64 `json:"lux"`
	HasTemperature bool    `json:"has_temperature"`
	HasHumidity    bool    `json:"has_humidity"`
	HasLux         bool    `json:"has_lux"`
	Failed         bool    `json:"failed"`
}

// Tolerances holds the accuracy of each sensor type.
type Tolerances struct {
	Temperature Tolerance `yaml:"temperature" json:"temperature"`
	Humidity    Tolerance `yaml:"humidity" json:"humidity"`
	Lux         Tolerance `yaml:"lux" json:"lux"`
}

// DefaultTolerances returns the datasheet accuracies of the HTU31D
// (±0.2 °C, ±2 %RH) and LTR390 (±10 %) sensors.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Temperature: Tolerance{Absolute: 0.2},
		Humidity:    Tolerance{Absolute: 2},
		Lux:         Tolerance{Relative: 0.1},
	}
}

// Options configures a Cycle. A zero WindowSize, LuxHoursReset or DownCycles
// selects the default.
type Options struct {
	Tolerances    Tolerances
	Thresholds    ThresholdSet
	WindowSize    int
	LuxHoursReset int
	DownCycles    int
}

// QuantityResult is the fused range for one quantity.
type QuantityResult struct {
	ConsensusResult
	Median    float64 `json:"median"`
	Precision float64 `json:"precision"`
	Path      string  `json:"path"`
}

// SeriesStatus is the per-series part of a Result.
type SeriesStatus struct {
	ID       int           `json:"id"`
	Reading  SeriesReading `json:"reading"`
	Health   SeriesHealth  `json:"health"`
	Stuck    bool          `json:"stuck"`
	Estimate [3]Estimate   `json:"estimates"` // temperature, humidity, lux; zero when failed
}

// Result is the outcome of one cycle, ready to be handed to the reporting
// sinks.
type Result struct {
	Cycle          uint64                    `json:"cycle"`
	Timestamp      time.Time                 `json:"timestamp"`
	Temperature    QuantityResult            `json:"temperature"`
	Humidity       QuantityResult            `json:"humidity"`
	Lux            QuantityResult            `json:"lux"`
	LuxHours       float64                   `json:"lux_hours"`
	HumidityChange bool                      `json:"humidity_change"`
	Series         [SeriesCount]SeriesStatus `json:"series"`
	Alerts         AlertVector               `json:"alerts"`
}

// Cycle owns every piece of state that survives between polling ticks: the
// series health counters, the humidity change window, the lux-hours
// accumulator and the cycle index.
type Cycle struct {
	tolerances    Tolerances
	thresholds    ThresholdSet
	luxHoursReset uint64

	health   *HealthTracker
	window   *ChangeWindow
	luxHours float64
	index    uint64
	state    State
}

// NewCycle returns a Cycle in the Idle state with empty history.
func NewCycle(opts Options) *Cycle {
	reset := opts.LuxHoursReset
	if reset <= 0 {
		reset = DefaultLuxHoursReset
	}
	return &Cycle{
		tolerances:    opts.Tolerances,
		thresholds:    opts.Thresholds,
		luxHoursReset: uint64(reset),
		health:        NewHealthTracker(SeriesCount, opts.DownCycles),
		window:        NewChangeWindow(opts.WindowSize, opts.Thresholds.HumidityChange.HighSoft),
	}
}

// Begin moves the cycle into Sampling. The caller reads the series after
// calling Begin and then hands the readings to Process.
func (c *Cycle) Begin() {
	c.state = StateSampling
}

// Process fuses one tick's readings and evaluates the alert lines. The cycle
// is left in Reporting; call End once the result has been handed off.
//
// now is passed explicitly so callers (and tests) control the clock.
func (c *Cycle) Process(readings [SeriesCount]SeriesReading, now time.Time) *Result {
	c.state = StateFusing

	out := &Result{Cycle: c.index, Timestamp: now}
	for id, r := range readings {
		c.health.Record(id, !r.Failed)
		if r.Failed {
			slog.Warn("cycle: series read failed",
				"series", id+1,
				"consecutive_failures", c.health.Health(id).ConsecutiveFailures)
		}
	}

	var temps, hums, luxes []Estimate
	for id, r := range readings {
		st := SeriesStatus{
			ID:      id,
			Reading: r,
			Health:  c.health.Health(id),
			Stuck:   c.health.Stuck(id),
		}
		if !c.health.Down(id) {
			if usable(r.HasTemperature, r.Temperature) {
				st.Estimate[0] = c.tolerances.Temperature.Widen(r.Temperature)
				temps = append(temps, st.Estimate[0])
			}
			if usable(r.HasHumidity, r.Humidity) {
				st.Estimate[1] = c.tolerances.Humidity.Widen(r.Humidity)
				hums = append(hums, st.Estimate[1])
			}
			if usable(r.HasLux, r.Lux) {
				st.Estimate[2] = c.tolerances.Lux.Widen(r.Lux)
				luxes = append(luxes, st.Estimate[2])
			}
		}
		out.Series[id] = st
	}

	down := c.health.DownCount()
	out.Temperature = c.fuse(temps, down)
	out.Humidity = c.fuse(hums, down)
	out.Lux = c.fuse(luxes, down)

	if c.index%c.luxHoursReset == 0 {
		c.luxHours = 0
	}
	c.luxHours += out.Lux.Median
	out.LuxHours = c.luxHours
	out.HumidityChange = c.window.Observe(out.Humidity.Median)

	c.state = StateEvaluating
	out.Alerts = Evaluate(Measurements{
		Temperature:    out.Temperature.ConsensusResult,
		Humidity:       out.Humidity.ConsensusResult,
		Lux:            out.Lux.ConsensusResult,
		LuxHours:       out.LuxHours,
		HumidityChange: out.HumidityChange,
	}, c.thresholds)
	for id := 0; id < SeriesCount; id++ {
		out.Alerts[AlertSeriesDown+id] = c.health.Down(id)
		out.Alerts[AlertSeriesStuckDown+id] = c.health.Stuck(id)
	}

	slog.Debug("cycle: fused",
		"cycle", out.Cycle,
		"temperature", out.Temperature.Median,
		"temperature_precision", out.Temperature.Precision,
		"humidity", out.Humidity.Median,
		"humidity_precision", out.Humidity.Precision,
		"lux", out.Lux.Median,
		"lux_precision", out.Lux.Precision,
		"lux_hours", out.LuxHours,
		"down", down,
	)

	c.index++
	c.state = StateReporting
	return out
}

// usable reports whether a reported value can enter fusion. NaN or Inf
// would poison the fused range and the lux-hours total.
func usable(has bool, v float64) bool {
	return has && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// End returns the cycle to Idle after reporting.
func (c *Cycle) End() {
	c.state = StateIdle
}

// fuse picks the aggregation path from the number of series that are down.
func (c *Cycle) fuse(live []Estimate, down int) QuantityResult {
	var r ConsensusResult
	path := PathNone
	switch {
	case down >= SeriesCount || len(live) == 0:
		r = ConsensusResult{}
	case down == SeriesCount-1:
		r = Degraded(live)
		path = PathDegraded
	default:
		r = Consensus(live)
		path = PathConsensus
	}
	return QuantityResult{
		ConsensusResult: r,
		Median:          r.Median(),
		Precision:       r.Precision(),
		Path:            path,
	}
}

// SetThresholds replaces the limits used from the next Process call on.
// Accumulated state is kept.
func (c *Cycle) SetThresholds(t ThresholdSet) {
	c.thresholds = t
	c.window.SetThreshold(t.HumidityChange.HighSoft)
}

// Thresholds returns the limits currently in force.
func (c *Cycle) Thresholds() ThresholdSet {
	return c.thresholds
}

// State returns the current pipeline phase.
func (c *Cycle) State() State {
	return c.state
}

// Index returns the number of completed cycles.
func (c *Cycle) Index() uint64 {
	return c.index
}

// LuxHours returns the current lux-hours accumulator.
func (c *Cycle) LuxHours() float64 {
	return c.luxHours
}

// Health returns a copy of every series' health.
func (c *Cycle) Health() [SeriesCount]SeriesHealth {
	var out [SeriesCount]SeriesHealth
	for id := range out {
		out[id] = c.health.Health(id)
	}
	return out
}
