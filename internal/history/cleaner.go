package history

import (
	"context"
	"log/slog"
	"time"
)

// DefaultCleanInterval is how often the Cleaner runs.
const DefaultCleanInterval = time.Hour

// Cleaner periodically deletes records older than the retention period.
type Cleaner struct {
	storage   Storage
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewCleaner returns a Cleaner for storage.
func NewCleaner(storage Storage, retention time.Duration) *Cleaner {
	return &Cleaner{
		storage:   storage,
		retention: retention,
		interval:  DefaultCleanInterval,
		now:       time.Now,
	}
}

// Run cleans once immediately and then every interval until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.retention <= 0 {
		slog.Info("history: retention disabled, cleaner not started")
		return
	}

	c.cleanOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanOnce(ctx)
		}
	}
}

func (c *Cleaner) cleanOnce(ctx context.Context) {
	cutoff := c.now().Add(-c.retention)
	n, err := c.storage.Purge(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("history: purge failed", "err", err)
		}
		return
	}
	if n > 0 {
		slog.Info("history: purged old rows", "deleted", n, "cutoff", cutoff)
	}
}
