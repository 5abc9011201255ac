// Package agent runs the polling loop: it samples the three series, hands the
// readings to the fusion cycle and reports the result to every sink.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/actuator"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
	"github.com/fusionwatch/fusionwatch/internal/metrics"
	"github.com/fusionwatch/fusionwatch/internal/reader"
	"github.com/fusionwatch/fusionwatch/internal/rowlog"
	"github.com/fusionwatch/fusionwatch/internal/store"
)

// Sink is a named row logger. The name labels errors in logs and metrics.
type Sink struct {
	Name   string
	Logger rowlog.Logger
}

// Deps are the collaborators of an Agent. Only Reader is required.
type Deps struct {
	Reader   reader.Reader
	Store    *store.Store
	Metrics  *metrics.Metrics
	Sinks    []Sink
	Actuator actuator.Actuator

	// OnResult is called after every cycle has been reported.
	OnResult func(*fusion.Result)
}

// Agent owns the fusion cycle and drives it on a fixed interval. All cycle
// state is touched only by the goroutine running Run.
type Agent struct {
	cycle    *fusion.Cycle
	reader   reader.Reader
	store    *store.Store
	metrics  *metrics.Metrics
	sinks    []Sink
	actuator actuator.Actuator
	onResult func(*fusion.Result)

	interval   time.Duration
	thresholds chan fusion.ThresholdSet
	now        func() time.Time
}

// New creates an Agent that runs a cycle every interval.
func New(opts fusion.Options, interval time.Duration, d Deps) *Agent {
	act := d.Actuator
	if act == nil {
		act = actuator.Noop{}
	}
	return &Agent{
		cycle:      fusion.NewCycle(opts),
		reader:     d.Reader,
		store:      d.Store,
		metrics:    d.Metrics,
		sinks:      d.Sinks,
		actuator:   act,
		onResult:   d.OnResult,
		interval:   interval,
		thresholds: make(chan fusion.ThresholdSet, 1),
		now:        time.Now,
	}
}

// UpdateThresholds schedules new limits for the next cycle. It never blocks;
// if an update is already pending it is replaced.
func (a *Agent) UpdateThresholds(t fusion.ThresholdSet) {
	for {
		select {
		case a.thresholds <- t:
			return
		default:
		}
		select {
		case <-a.thresholds:
		default:
		}
	}
}

// Thresholds returns the limits the cycle currently evaluates against.
func (a *Agent) Thresholds() fusion.ThresholdSet {
	return a.cycle.Thresholds()
}

// Run executes a cycle immediately and then every interval until ctx is
// cancelled. A cycle in progress always completes; cancellation is only
// observed between cycles.
func (a *Agent) Run(ctx context.Context) error {
	slog.Info("agent: started", "interval", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.applyPending()
	a.RunOnce(ctx, a.now())

	for {
		select {
		case <-ctx.Done():
			slog.Info("agent: stopped", "cycles", a.cycle.Index())
			return nil
		case <-ticker.C:
			a.applyPending()
			a.RunOnce(ctx, a.now())
		}
	}
}

// RunOnce executes one full cycle: sample, fuse, evaluate, report.
func (a *Agent) RunOnce(ctx context.Context, now time.Time) *fusion.Result {
	ctx = context.WithoutCancel(ctx)

	a.cycle.Begin()
	readings, err := reader.ReadAll(ctx, a.reader)
	if err != nil {
		slog.Error("agent: read failed", "err", err)
	}
	for id, r := range readings {
		slog.Debug("agent: series reading",
			"series", id+1,
			"failed", r.Failed,
			"temperature", r.Temperature,
			"humidity", r.Humidity,
			"lux", r.Lux)
	}

	res := a.cycle.Process(readings, now)
	a.report(ctx, res)
	a.cycle.End()
	return res
}

// report hands res to every sink. Failures are logged and counted; they
// never stop the loop.
func (a *Agent) report(ctx context.Context, res *fusion.Result) {
	if a.store != nil {
		a.store.Put(res)
	}
	if a.metrics != nil {
		a.metrics.Observe(res)
	}

	row := rowlog.FromResult(res)
	for _, s := range a.sinks {
		if err := s.Logger.Log(ctx, row); err != nil {
			slog.Error("agent: row log failed", "sink", s.Name, "cycle", res.Cycle, "err", err)
			a.sinkError(s.Name)
		}
	}

	if err := a.actuator.Apply(ctx, res.Alerts); err != nil {
		slog.Error("agent: actuator failed", "cycle", res.Cycle, "err", err)
		a.sinkError("actuator")
	}

	if active := res.Alerts.Active(); len(active) > 0 {
		names := make([]string, len(active))
		for i, line := range active {
			names[i] = fusion.AlertName(line)
		}
		slog.Info("agent: alert lines active", "cycle", res.Cycle, "lines", names)
	}

	if a.onResult != nil {
		a.onResult(res)
	}
}

func (a *Agent) sinkError(name string) {
	if a.metrics != nil {
		a.metrics.SinkError(name)
	}
}

func (a *Agent) applyPending() {
	select {
	case t := <-a.thresholds:
		a.cycle.SetThresholds(t)
		slog.Info("agent: thresholds updated")
	default:
	}
}
