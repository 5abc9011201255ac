package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLite stores records in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	// WAL plus a busy timeout keeps the API's reads from blocking the loop's writes.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}

	// Single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &SQLite{db: db}, nil
}

// Init creates the table and index if they do not exist.
func (s *SQLite) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fusion_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		temperature REAL NOT NULL,
		humidity REAL NOT NULL,
		lux REAL NOT NULL,
		lux_hours REAL NOT NULL,
		series TEXT NOT NULL,
		alerts TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fusion_rows_ts ON fusion_rows(timestamp DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: init sqlite: %w", err)
	}
	return nil
}

// Save inserts rec and sets its ID.
func (s *SQLite) Save(ctx context.Context, rec *Record) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fusion_rows (timestamp, temperature, humidity, lux, lux_hours, series, alerts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Temperature, rec.Humidity, rec.Lux, rec.LuxHours, rec.Series, rec.Alerts,
	)
	if err != nil {
		return fmt.Errorf("history: save: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history: last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, temperature, humidity, lux, lux_hours, series, alerts
		FROM fusion_rows
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Temperature, &r.Humidity,
			&r.Lux, &r.LuxHours, &r.Series, &r.Alerts); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Purge deletes records older than cutoff.
func (s *SQLite) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fusion_rows WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: purge: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
