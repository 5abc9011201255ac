package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/fusion"
	"github.com/fusionwatch/fusionwatch/internal/history"
	"github.com/fusionwatch/fusionwatch/internal/store"
)

const (
	defaultHistoryLimit = 60
	maxRowsLimit        = 10000
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store   *store.Store
	history history.Storage // nil when durable history is disabled
	mux     *http.ServeMux
}

// New creates a Handler wired to the result store and registers all routes.
// hist may be nil.
func New(st *store.Store, hist history.Storage) http.Handler {
	h := &Handler{store: st, history: hist, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/series", h.series)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/history", h.historyRecent)
	h.mux.HandleFunc("/api/v1/rows", h.rows)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	e, ok := h.store.Latest()
	if !ok {
		jsonResp(w, http.StatusOK, HealthResponse{State: "unknown"})
		return
	}

	res := e.Result
	resp := HealthResponse{
		Cycle:        res.Cycle,
		LastCycle:    res.Timestamp.UTC().Format(time.RFC3339),
		CyclesTotal:  h.store.Total(),
		ActiveAlerts: len(res.Alerts.Active()),
	}
	for _, s := range res.Series {
		if s.Health.CurrentlyDown {
			resp.SeriesDown++
		} else {
			resp.SeriesUp++
		}
	}

	switch {
	case !h.store.Fresh():
		resp.State = "stale"
	case resp.SeriesDown > 0:
		resp.State = "degraded"
	default:
		resp.State = "ok"
	}
	jsonResp(w, http.StatusOK, resp)
}

// snapshot returns GET /api/v1/snapshot.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// series returns GET /api/v1/series.
func (h *Handler) series(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	e, ok := h.store.Latest()
	if !ok {
		jsonResp(w, http.StatusOK, []SeriesResponse{})
		return
	}
	jsonResp(w, http.StatusOK, toSeries(e.Result))
}

// alerts returns GET /api/v1/alerts with every line and its state.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var lines fusion.AlertVector
	if e, ok := h.store.Latest(); ok {
		lines = e.Result.Alerts
	}
	out := make([]AlertResponse, 0, fusion.AlertCount)
	for i, on := range lines {
		out = append(out, AlertResponse{Line: i, Name: fusion.AlertName(i), Active: on})
	}
	jsonResp(w, http.StatusOK, out)
}

// historyRecent returns GET /api/v1/history?limit=n from the in-memory ring.
func (h *Handler) historyRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, ok := parseLimit(w, r, defaultHistoryLimit)
	if !ok {
		return
	}

	entries := h.store.History(limit)
	out := make([]*CycleResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toCycle(e.Result))
	}
	jsonResp(w, http.StatusOK, out)
}

// rows returns GET /api/v1/rows?limit=n from durable history.
func (h *Handler) rows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.history == nil {
		jsonErr(w, http.StatusNotFound, "history disabled")
		return
	}
	limit, ok := parseLimit(w, r, defaultHistoryLimit)
	if !ok {
		return
	}
	if limit <= 0 || limit > maxRowsLimit {
		limit = maxRowsLimit
	}

	recs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if recs == nil {
		recs = []*history.Record{}
	}
	jsonResp(w, http.StatusOK, recs)
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot assembles the snapshot payload from the latest stored result.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	resp := SnapshotResponse{
		Series:      []SeriesResponse{},
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if e, ok := st.Latest(); ok {
		resp.Latest = toCycle(e.Result)
		resp.Series = toSeries(e.Result)
	}
	return resp
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func toQuantity(q fusion.QuantityResult) QuantityResponse {
	return QuantityResponse{
		Low:       q.Low,
		High:      q.High,
		Median:    q.Median,
		Precision: q.Precision,
		Agreement: q.Count,
		Path:      q.Path,
	}
}

func toCycle(res *fusion.Result) *CycleResponse {
	active := make([]string, 0)
	for _, i := range res.Alerts.Active() {
		active = append(active, fusion.AlertName(i))
	}
	return &CycleResponse{
		Cycle:          res.Cycle,
		Timestamp:      res.Timestamp.UTC().Format(time.RFC3339Nano),
		Temperature:    toQuantity(res.Temperature),
		Humidity:       toQuantity(res.Humidity),
		Lux:            toQuantity(res.Lux),
		LuxHours:       res.LuxHours,
		HumidityChange: res.HumidityChange,
		Active:         active,
	}
}

func toSeries(res *fusion.Result) []SeriesResponse {
	out := make([]SeriesResponse, 0, len(res.Series))
	for i, s := range res.Series {
		out = append(out, SeriesResponse{
			Series:              i + 1,
			Down:                s.Health.CurrentlyDown,
			Stuck:               s.Stuck,
			ConsecutiveFailures: s.Health.ConsecutiveFailures,
			Reading:             s.Reading,
		})
	}
	return out
}
