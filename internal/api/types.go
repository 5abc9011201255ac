package api

import "github.com/fusionwatch/fusionwatch/internal/fusion"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State        string `json:"state"` // ok | degraded | stale | unknown
	Cycle        uint64 `json:"cycle"`
	LastCycle    string `json:"last_cycle,omitempty"` // RFC3339
	CyclesTotal  uint64 `json:"cycles_total"`
	SeriesUp     int    `json:"series_up"`
	SeriesDown   int    `json:"series_down"`
	ActiveAlerts int    `json:"active_alerts"`
}

// QuantityResponse is the fused range of one quantity.
type QuantityResponse struct {
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Median    float64 `json:"median"`
	Precision float64 `json:"precision"`
	Agreement int     `json:"agreement"`
	Path      string  `json:"path"`
}

// SeriesResponse is one series entry in GET /api/v1/series.
type SeriesResponse struct {
	Series              int                  `json:"series"` // 1-based
	Down                bool                 `json:"down"`
	Stuck               bool                 `json:"stuck"`
	ConsecutiveFailures uint                 `json:"consecutive_failures"`
	Reading             fusion.SeriesReading `json:"reading"`
}

// AlertResponse is one line in GET /api/v1/alerts.
type AlertResponse struct {
	Line   int    `json:"line"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// CycleResponse is one fused cycle.
type CycleResponse struct {
	Cycle          uint64           `json:"cycle"`
	Timestamp      string           `json:"timestamp"` // RFC3339Nano
	Temperature    QuantityResponse `json:"temperature"`
	Humidity       QuantityResponse `json:"humidity"`
	Lux            QuantityResponse `json:"lux"`
	LuxHours       float64          `json:"lux_hours"`
	HumidityChange bool             `json:"humidity_change"`
	Active         []string         `json:"active_alerts"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Latest      *CycleResponse   `json:"latest"`
	Series      []SeriesResponse `json:"series"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
