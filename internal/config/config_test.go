package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

const seriesBlock = `
  series:
    - id: s1
      channel: 0
      endpoint: "http://gateway:9100/metrics"
    - id: s2
      channel: 3
      endpoint: "http://gateway:9100/metrics"
    - id: s3
      channel: 7
      endpoint: "http://gateway:9100/metrics"
`

func TestLoad_Valid(t *testing.T) {
	yaml := `
agent:
  poll_interval: 5s
  reader:
    type: gateway
    timeout: 2s
` + seriesBlock + `
  thresholds:
    temperature:
      low_hard: 18
      low_soft: 19
      high_soft: 24
      high_hard: 26
  actuator:
    type: gpio
    gpio:
      pins:
        0: 17
        1: 27
server:
  http_port: 9090
  auth:
    mode: apikey
    key_env: FUSION_KEY
`
	cfg := loadFromString(t, yaml)

	if cfg.Agent.PollInterval != 5*time.Second {
		t.Errorf("poll_interval: got %v", cfg.Agent.PollInterval)
	}
	if cfg.Agent.Reader.Timeout != 2*time.Second {
		t.Errorf("reader.timeout: got %v", cfg.Agent.Reader.Timeout)
	}
	if len(cfg.Agent.Series) != 3 {
		t.Fatalf("series: got %d, want 3", len(cfg.Agent.Series))
	}
	if cfg.Agent.Series[2].Channel != 7 {
		t.Errorf("series[2].channel: got %d", cfg.Agent.Series[2].Channel)
	}
	if got := cfg.Agent.Thresholds.Temperature; got.LowHard != 18 || got.HighHard != 26 {
		t.Errorf("temperature thresholds: got %+v", got)
	}
	// Humidity was not specified and keeps the defaults.
	if got := cfg.Agent.Thresholds.Humidity; got != fusion.DefaultThresholds().Humidity {
		t.Errorf("humidity thresholds: got %+v, want defaults", got)
	}
	if cfg.Agent.Actuator.GPIO.Pins[1] != 27 {
		t.Errorf("gpio pin for line 1: got %d", cfg.Agent.Actuator.GPIO.Pins[1])
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("http_port: got %d", cfg.Server.HTTPPort)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "agent:"+seriesBlock)

	if cfg.Agent.PollInterval != DefaultPollInterval {
		t.Errorf("default poll_interval: got %v, want %v", cfg.Agent.PollInterval, DefaultPollInterval)
	}
	if cfg.Agent.WindowSize != fusion.DefaultWindowSize {
		t.Errorf("default window_size: got %d", cfg.Agent.WindowSize)
	}
	if cfg.Agent.LuxHoursReset != fusion.DefaultLuxHoursReset {
		t.Errorf("default lux_hours_reset: got %d", cfg.Agent.LuxHoursReset)
	}
	if cfg.Agent.DownCycles != fusion.DefaultDownCycles {
		t.Errorf("default down_cycles: got %d", cfg.Agent.DownCycles)
	}
	if cfg.Agent.Tolerances != fusion.DefaultTolerances() {
		t.Errorf("default tolerances: got %+v", cfg.Agent.Tolerances)
	}
	if cfg.Agent.Reader.Type != "gateway" {
		t.Errorf("default reader: got %q", cfg.Agent.Reader.Type)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("default http_port: got %d", cfg.Server.HTTPPort)
	}
	opts := cfg.Agent.CycleOptions()
	if opts.Thresholds != fusion.DefaultThresholds() {
		t.Errorf("CycleOptions thresholds: got %+v", opts.Thresholds)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "two series",
			yaml:    "agent:\n  series:\n    - id: a\n      endpoint: x\n    - id: b\n      endpoint: y\n",
			wantErr: "want exactly 3",
		},
		{
			name:    "unknown reader",
			yaml:    "agent:\n  reader:\n    type: i2c\n" + seriesBlock,
			wantErr: "reader.type",
		},
		{
			name:    "misordered temperature",
			yaml:    "agent:" + seriesBlock + "  thresholds:\n    temperature:\n      low_hard: 21\n      low_soft: 20\n      high_soft: 22\n      high_hard: 23\n",
			wantErr: "thresholds.temperature",
		},
		{
			name:    "non-positive lux",
			yaml:    "agent:" + seriesBlock + "  thresholds:\n    lux:\n      high_soft: 0\n",
			wantErr: "thresholds.lux.high_soft",
		},
		{
			name:    "channel out of range",
			yaml:    strings.Replace("agent:"+seriesBlock, "channel: 7", "channel: 8", 1),
			wantErr: "channel 8",
		},
		{
			name:    "duplicate id",
			yaml:    strings.Replace("agent:"+seriesBlock, "id: s2", "id: s1", 1),
			wantErr: "duplicate id",
		},
		{
			name:    "unknown actuator",
			yaml:    "agent:" + seriesBlock + "  actuator:\n    type: relay\n",
			wantErr: "actuator.type",
		},
		{
			name:    "gpio line out of range",
			yaml:    "agent:" + seriesBlock + "  actuator:\n    type: gpio\n    gpio:\n      pins:\n        17: 4\n",
			wantErr: "line 17",
		},
		{
			name:    "sqlite without path",
			yaml:    "agent:" + seriesBlock + "  history:\n    backend: sqlite\n",
			wantErr: "history.path",
		},
		{
			name:    "unknown auth mode",
			yaml:    "agent:" + seriesBlock + "server:\n  auth:\n    mode: magictoken\n",
			wantErr: "auth.mode",
		},
		{
			name:    "bad log level",
			yaml:    "agent:" + seriesBlock + "  log:\n    level: loud\n",
			wantErr: "log.level",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadStringErr(t, tc.yaml)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_SimulatedReaderNeedsNoEndpoint(t *testing.T) {
	yaml := `
agent:
  reader:
    type: simulated
    failure_rate: 0.1
  series:
    - id: s1
    - id: s2
      channel: 3
    - id: s3
      channel: 7
`
	cfg := loadFromString(t, yaml)
	if cfg.Agent.Reader.FailureRate != 0.1 {
		t.Errorf("failure_rate: got %v", cfg.Agent.Reader.FailureRate)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_API_KEY"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
	if got := a.EffectiveHeader(); got != "X-API-Key" {
		t.Errorf("EffectiveHeader(): got %q", got)
	}
}

func TestSecretsFromEnv(t *testing.T) {
	t.Setenv("TEAMS_URL", "https://teams.example.com/webhook")
	t.Setenv("PG_DSN", "postgres://u:p@db/fusion")
	t.Setenv("MQTT_PW", "pw")

	if got := (WebhookConfig{Type: "teams", URLEnv: "TEAMS_URL"}).URL(); got != "https://teams.example.com/webhook" {
		t.Errorf("URL(): got %q", got)
	}
	if got := (HistoryConfig{DSNEnv: "PG_DSN"}).DSN(); got != "postgres://u:p@db/fusion" {
		t.Errorf("DSN(): got %q", got)
	}
	if got := (MQTTConfig{PasswordEnv: "MQTT_PW"}).Password(); got != "pw" {
		t.Errorf("Password(): got %q", got)
	}
	if got := (RedisConfig{}).Password(); got != "" {
		t.Errorf("Password() without env: got %q", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent:"+seriesBlock), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c *Config) { got <- c }) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := "agent:\n  poll_interval: 2m" + seriesBlock
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Agent.PollInterval != 2*time.Minute {
			t.Errorf("reloaded poll_interval: got %v", c.Agent.PollInterval)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within 3s")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatch_CoalescesBurstIntoOneReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent:"+seriesBlock), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	go func() { _ = Watch(ctx, path, func(c *Config) { got <- c }) }()
	time.Sleep(100 * time.Millisecond)

	// An editor save: truncate, then write, then touch again.
	updated := "agent:\n  thresholds:\n    lux: { high_soft: 300 }" + seriesBlock
	for _, body := range []string{"", updated, updated} {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case c := <-got:
		if c.Agent.Thresholds.Lux.HighSoft != 300 {
			t.Errorf("lux high_soft = %v, want 300", c.Agent.Thresholds.Lux.HighSoft)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within 3s")
	}
	select {
	case c := <-got:
		t.Errorf("second reload for one save: %+v", c.Agent.Thresholds.Lux)
	case <-time.After(4 * reloadDebounce):
	}
}

func TestChangedBands(t *testing.T) {
	old := fusion.DefaultThresholds()
	cur := old
	if got := changedBands(old, cur); len(got) != 0 {
		t.Errorf("identical sets: got %v", got)
	}

	cur.Humidity.HighHard = 70
	cur.LuxHours.HighSoft = 2000
	got := changedBands(old, cur)
	if strings.Join(got, ",") != "humidity,lux_hours" {
		t.Errorf("changed bands = %v, want [humidity lux_hours]", got)
	}
}

func TestNeedsRestart(t *testing.T) {
	old := loadFromString(t, "agent:"+seriesBlock)

	thresholdsOnly := *old
	thresholdsOnly.Agent.Thresholds.Lux.HighSoft = 500
	if needsRestart(old, &thresholdsOnly) {
		t.Error("threshold change reported as needing a restart")
	}

	interval := *old
	interval.Agent.PollInterval = 5 * time.Minute
	if !needsRestart(old, &interval) {
		t.Error("poll_interval change not reported")
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
