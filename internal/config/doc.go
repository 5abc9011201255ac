// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent, Server}: full config tree parsed from YAML
//   - AgentConfig: poll_interval, reader, series [3], tolerances, thresholds,
//     window_size, lux_hours_reset, down_cycles, log, row_log, actuator,
//     history, publish
//   - Series: id, mux channel (0–7), gateway endpoint
//   - ServerConfig: http_port, auth, history_size, broadcast_interval
//
// Load(path) reads the YAML file, applies defaults (1m poll, 60-cycle window,
// 1440-cycle lux-hours reset, 3 down cycles, the original installation's
// thresholds and sensor tolerances), then validates required fields, enums
// and the ordering low_hard < low_soft < high_soft < high_hard.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after a
// rename→create so atomic-save editors keep working.
package config
