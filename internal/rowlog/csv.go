package rowlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// CSV appends rows to sensor_log_<date>.csv files under Dir. The file for the
// current day stays open until the date changes or Close is called.
type CSV struct {
	dir string

	mu   sync.Mutex
	date string
	f    *os.File
	w    *csv.Writer
}

// NewCSV returns a CSV logger writing into dir. The directory is created if
// needed.
func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rowlog: create dir: %w", err)
	}
	return &CSV{dir: dir}, nil
}

// FileName returns the log file name for a Date column value.
func FileName(date string) string {
	return "sensor_log_" + date + ".csv"
}

// Log implements Logger.
func (c *CSV) Log(_ context.Context, row Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if row.Date != c.date || c.f == nil {
		if err := c.rollLocked(row.Date); err != nil {
			return err
		}
	}
	if err := c.w.Write(row.Record()); err != nil {
		return fmt.Errorf("rowlog: write row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("rowlog: flush: %w", err)
	}
	return nil
}

// rollLocked closes the current file and opens the one for date, writing
// the header when the file is new.
func (c *CSV) rollLocked(date string) error {
	if err := c.closeLocked(); err != nil {
		slog.Warn("rowlog: close previous file", "date", c.date, "err", err)
	}

	path := filepath.Join(c.dir, FileName(date))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("rowlog: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("rowlog: stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header()); err != nil {
			f.Close()
			return fmt.Errorf("rowlog: write header: %w", err)
		}
		slog.Info("rowlog: started daily file", "path", path)
	}

	c.date, c.f, c.w = date, f, w
	return nil
}

func (c *CSV) closeLocked() error {
	if c.f == nil {
		return nil
	}
	c.w.Flush()
	err := c.f.Close()
	c.f, c.w = nil, nil
	return err
}

// Close flushes and closes the open file.
func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}
