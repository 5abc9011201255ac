package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores records in a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history: parse postgres dsn: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("history: create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: connect postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Init creates the table and index if they do not exist.
func (p *Postgres) Init(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS fusion_rows (
		id BIGSERIAL PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		temperature DOUBLE PRECISION NOT NULL,
		humidity DOUBLE PRECISION NOT NULL,
		lux DOUBLE PRECISION NOT NULL,
		lux_hours DOUBLE PRECISION NOT NULL,
		series TEXT NOT NULL,
		alerts TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fusion_rows_ts ON fusion_rows(timestamp DESC);
	`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("history: init postgres: %w", err)
	}
	return nil
}

// Save inserts rec and sets its ID.
func (p *Postgres) Save(ctx context.Context, rec *Record) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO fusion_rows (timestamp, temperature, humidity, lux, lux_hours, series, alerts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.Timestamp, rec.Temperature, rec.Humidity, rec.Lux, rec.LuxHours, rec.Series, rec.Alerts,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("history: save: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, timestamp, temperature, humidity, lux, lux_hours, series, alerts
		FROM fusion_rows
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`, limit)
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
func (p *Postgres) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM fusion_rows WHERE timestamp < $1`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
