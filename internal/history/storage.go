// Package history keeps a durable copy of every logged row.
//
// Two backends are available: an embedded SQLite file (modernc.org/sqlite,
// no cgo) for a standalone box, and PostgreSQL (pgx) when several agents
// report into a shared database. A Cleaner deletes rows older than the
// configured retention.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
	"github.com/fusionwatch/fusionwatch/internal/rowlog"
)

// Record is one stored row.
type Record struct {
	ID          int64   `json:"id"`
	Timestamp   int64   `json:"timestamp"` // Unix milliseconds
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Lux         float64 `json:"lux"`
	LuxHours    float64 `json:"lux_hours"`
	Series      string  `json:"series"` // comma-separated status per series, e.g. "OK,DOWN,OK"
	Alerts      string  `json:"alerts"` // one '0'/'1' per alert line in index order
}

// Storage is implemented by every history backend.
type Storage interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
	// Purge deletes records older than cutoff and returns how many went.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// New opens and initialises the configured backend. It returns nil, nil when
// history is disabled.
func New(ctx context.Context, cfg config.HistoryConfig) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(cfg.Path)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DSN())
	default:
		return nil, fmt.Errorf("history: unsupported backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// RecordFromRow converts a logged row into a Record. The row's UTC
// timestamp is stored; a row without one falls back to its local date and
// time columns.
func RecordFromRow(row rowlog.Row) (*Record, error) {
	ts := row.Timestamp
	if ts.IsZero() {
		var err error
		ts, err = time.ParseInLocation(rowlog.DateLayout+" "+rowlog.TimeLayout,
			row.Date+" "+row.TimeOfDay, time.Local)
		if err != nil {
			return nil, fmt.Errorf("history: parse row time: %w", err)
		}
	}

	bits := make([]byte, fusion.AlertCount)
	for i, on := range row.Alerts {
		bits[i] = '0'
		if on {
			bits[i] = '1'
		}
	}
	return &Record{
		Timestamp:   ts.UnixMilli(),
		Temperature: row.FusedTemperature,
		Humidity:    row.FusedHumidity,
		Lux:         row.FusedLux,
		LuxHours:    row.CumulativeLuxHours,
		Series:      strings.Join(row.SeriesStatus[:], ","),
		Alerts:      string(bits),
	}, nil
}

// Logger adapts a Storage to rowlog.Logger.
type Logger struct {
	Storage Storage
}

// Log implements rowlog.Logger.
func (l Logger) Log(ctx context.Context, row rowlog.Row) error {
	rec, err := RecordFromRow(row)
	if err != nil {
		return err
	}
	return l.Storage.Save(ctx, rec)
}
