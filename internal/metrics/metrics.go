// Package metrics exposes fused readings, alert lines and series health in
// the Prometheus exposition format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

const namespace = "fusionwatch"

// Metrics holds the agent's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	fused       *prometheus.GaugeVec
	agreement   *prometheus.GaugeVec
	path        *prometheus.GaugeVec
	luxHours    prometheus.Gauge
	alerts      *prometheus.GaugeVec
	seriesDown  *prometheus.GaugeVec
	seriesFails *prometheus.GaugeVec
	cycles      prometheus.Counter
	sinkErrors  *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		fused: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fused_value",
			Help:      "Fused range per quantity; bound is low, high or median.",
		}, []string{"quantity", "bound"}),
		agreement: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fused_agreement",
			Help:      "Number of series agreeing on the fused range.",
		}, []string{"quantity"}),
		path: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fusion_path",
			Help:      "1 for the aggregation path used for the quantity in the last cycle.",
		}, []string{"quantity", "path"}),
		luxHours: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lux_hours",
			Help:      "Cumulative lux-hours since the last reset.",
		}),
		alerts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_line",
			Help:      "State of each alert line (1 raised).",
		}, []string{"line", "name"}),
		seriesDown: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_down",
			Help:      "1 while the series is down.",
		}, []string{"series"}),
		seriesFails: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_consecutive_failures",
			Help:      "Consecutive failed reads per series.",
		}, []string{"series"}),
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed fusion cycles.",
		}),
		sinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Reporting failures per sink.",
		}, []string{"sink"}),
	}
}

// Observe records a cycle result.
func (m *Metrics) Observe(res *fusion.Result) {
	for _, q := range []struct {
		name string
		r    fusion.QuantityResult
	}{
		{"temperature", res.Temperature},
		{"humidity", res.Humidity},
		{"lux", res.Lux},
	} {
		m.fused.WithLabelValues(q.name, "low").Set(q.r.Low)
		m.fused.WithLabelValues(q.name, "high").Set(q.r.High)
		m.fused.WithLabelValues(q.name, "median").Set(q.r.Median)
		m.agreement.WithLabelValues(q.name).Set(float64(q.r.Count))
		for _, p := range []string{fusion.PathConsensus, fusion.PathDegraded, fusion.PathNone} {
			v := 0.0
			if p == q.r.Path {
				v = 1
			}
			m.path.WithLabelValues(q.name, p).Set(v)
		}
	}

	m.luxHours.Set(res.LuxHours)

	for i, on := range res.Alerts {
		v := 0.0
		if on {
			v = 1
		}
		m.alerts.WithLabelValues(strconv.Itoa(i), fusion.AlertName(i)).Set(v)
	}

	for i, s := range res.Series {
		id := strconv.Itoa(i + 1)
		down := 0.0
		if s.Health.CurrentlyDown {
			down = 1
		}
		m.seriesDown.WithLabelValues(id).Set(down)
		m.seriesFails.WithLabelValues(id).Set(float64(s.Health.ConsecutiveFailures))
	}

	m.cycles.Inc()
}

// SinkError counts a failed report to sink.
func (m *Metrics) SinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
