// Package api implements the HTTP REST API of the fusion agent.
//
// New(store, history) returns an http.Handler that serves:
//
//	GET /api/v1/health         : ok | degraded | stale | unknown, series up/down
//	GET /api/v1/snapshot       : latest fused cycle plus per-series state
//	GET /api/v1/series         : per-series health and last raw reading
//	GET /api/v1/alerts         : all 17 alert lines with names and state
//	GET /api/v1/history?limit=n: recent cycles from the in-memory ring
//	GET /api/v1/rows?limit=n   : stored rows; 404 when history is disabled
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//
// APIKey wraps the handler with optional header-based key checking.
// JSON types are defined in types.go. No external HTTP framework is used.
package api
