package config

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// reloadDebounce collapses the Write/Create bursts an editor produces for a
// single save into one reload.
const reloadDebounce = 200 * time.Millisecond

// Watch monitors path for changes and calls onChange with the newly loaded
// Config once per save. It runs until ctx is cancelled.
//
// Only thresholds take effect without a restart; the bands that changed are
// logged, and any other difference is reported as needing a restart. If a
// reload fails (e.g., invalid YAML or misordered thresholds), the error is
// logged and onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	prev, err := Load(path)
	if err != nil {
		slog.Warn("config: current file does not load, diffing disabled until next reload",
			"path", path, "err", err)
		prev = nil
	}

	slog.Info("config: watching for changes", "path", path)

	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, so catch Create as well as Write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// An atomic save replaced the inode.
				_ = watcher.Add(path)
			}
			debounce.Reset(reloadDebounce)

		case <-debounce.C:
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}

			if prev != nil {
				if bands := changedBands(prev.Agent.Thresholds, cfg.Agent.Thresholds); len(bands) > 0 {
					slog.Info("config: thresholds changed", "bands", bands)
				}
				if needsRestart(prev, cfg) {
					slog.Warn("config: changes besides thresholds apply after a restart", "path", path)
				}
			}
			slog.Info("config: reloaded", "path", path)
			prev = cfg
			onChange(cfg)

			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// changedBands returns the names of the threshold kinds whose limits differ.
func changedBands(old, cur fusion.ThresholdSet) []string {
	var out []string
	for _, b := range []struct {
		name     string
		old, cur fusion.Limits
	}{
		{"temperature", old.Temperature, cur.Temperature},
		{"humidity", old.Humidity, cur.Humidity},
		{"lux", old.Lux, cur.Lux},
		{"lux_hours", old.LuxHours, cur.LuxHours},
		{"humidity_change", old.HumidityChange, cur.HumidityChange},
	} {
		if b.old != b.cur {
			out = append(out, b.name)
		}
	}
	return out
}

// needsRestart reports whether cur differs from old in anything other than
// the thresholds.
func needsRestart(old, cur *Config) bool {
	a, b := *old, *cur
	a.Agent.Thresholds = fusion.ThresholdSet{}
	b.Agent.Thresholds = fusion.ThresholdSet{}
	return !reflect.DeepEqual(a, b)
}
