package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval      = time.Minute
	DefaultReadTimeout       = 10 * time.Second
	DefaultHTTPPort          = 8080
	DefaultHistorySize       = 1440
	DefaultBroadcastInterval = 5 * time.Second
	DefaultRowLogDir         = "."
	DefaultRetention         = 7 * 24 * time.Hour
	DefaultMQTTTopic         = "fusionwatch"
	DefaultRedisPrefix       = "fusionwatch"
)

// Config is the top-level configuration for the fusion agent.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	Server ServerConfig `yaml:"server"`
}

// AgentConfig holds the polling loop and fusion settings.
type AgentConfig struct {
	// PollInterval controls how often the three series are read.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Reader selects how series readings are obtained.
	Reader ReaderConfig `yaml:"reader"`

	// Series lists the three sensor series in fusion order.
	Series []Series `yaml:"series"`

	// Tolerances widen each raw reading into an interval.
	Tolerances fusion.Tolerances `yaml:"tolerances"`

	// Thresholds are the soft/hard limits per quantity. Reloaded without restart.
	Thresholds fusion.ThresholdSet `yaml:"thresholds"`

	// WindowSize is the number of cycles kept for the humidity change check.
	WindowSize int `yaml:"window_size"`

	// LuxHoursReset is the number of cycles after which lux-hours restart.
	LuxHoursReset int `yaml:"lux_hours_reset"`

	// DownCycles is the number of consecutive failures that raise the sticky
	// series-down line.
	DownCycles int `yaml:"down_cycles"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// RowLog configures the daily CSV row log.
	RowLog RowLogConfig `yaml:"row_log"`

	// Actuator configures where the alert lines are driven.
	Actuator ActuatorConfig `yaml:"actuator"`

	// History configures durable storage of every logged row.
	History HistoryConfig `yaml:"history"`

	// Publish configures optional fan-out of rows to brokers.
	Publish PublishConfig `yaml:"publish"`
}

// ReaderConfig selects the series reader implementation.
type ReaderConfig struct {
	// Type is one of: gateway | simulated.
	Type string `yaml:"type"`

	// Timeout bounds each gateway HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// FailureRate is the probability a simulated series read fails (0–1).
	FailureRate float64 `yaml:"failure_rate"`

	// Seed fixes the simulated reader's random source. 0 picks a time seed.
	Seed int64 `yaml:"seed"`
}

// Series describes one sensor series behind the bus multiplexer.
type Series struct {
	// ID is a unique, human-readable identifier.
	ID string `yaml:"id"`

	// Channel is the multiplexer channel the series is wired to.
	Channel int `yaml:"channel"`

	// Endpoint is the gateway URL exposing the series' readings.
	Endpoint string `yaml:"endpoint"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// RowLogConfig configures the daily CSV row log.
type RowLogConfig struct {
	// Dir is the directory daily files are created in.
	Dir string `yaml:"dir"`

	// Disabled turns the CSV log off.
	Disabled bool `yaml:"disabled"`
}

// ActuatorConfig configures the alert line outputs.
type ActuatorConfig struct {
	// Type is one of: none | gpio | webhook.
	Type string `yaml:"type"`

	// GPIO maps alert line index to output.
	GPIO GPIOConfig `yaml:"gpio"`

	// Webhooks are notified whenever a line changes state.
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// GPIOConfig drives one sysfs GPIO value file per alert line.
type GPIOConfig struct {
	// BasePath is the sysfs GPIO root, normally /sys/class/gpio.
	BasePath string `yaml:"base_path"`

	// Pins maps alert line index to GPIO number. Lines without a pin are skipped.
	Pins map[int]int `yaml:"pins"`

	// ActiveLow inverts every output.
	ActiveLow bool `yaml:"active_low"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// HistoryConfig configures the row history backend.
type HistoryConfig struct {
	// Backend selects the storage implementation: sqlite | postgres. Empty disables history.
	Backend string `yaml:"backend"`

	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`

	// DSNEnv is the name of the environment variable holding the PostgreSQL DSN.
	DSNEnv string `yaml:"dsn_env"`

	// Retention is how long rows are kept before deletion.
	Retention time.Duration `yaml:"retention"`
}

// DSN returns the PostgreSQL connection string resolved from the environment.
func (h HistoryConfig) DSN() string {
	if h.DSNEnv == "" {
		return ""
	}
	return os.Getenv(h.DSNEnv)
}

// PublishConfig configures the broker publishers.
type PublishConfig struct {
	MQTT  MQTTConfig  `yaml:"mqtt"`
	Redis RedisConfig `yaml:"redis"`
}

// MQTTConfig configures the MQTT row publisher.
type MQTTConfig struct {
	// Broker is host:port of the MQTT server. Empty disables MQTT.
	Broker string `yaml:"broker"`

	// ClientID is the MQTT client identifier.
	ClientID string `yaml:"client_id"`

	// Topic is the topic prefix; rows go to <topic>/row, lines to <topic>/alerts.
	Topic string `yaml:"topic"`

	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	// Retain marks published messages as retained.
	Retain bool `yaml:"retain"`
}

// Password returns the MQTT password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// RedisConfig configures the Redis latest-row publisher.
type RedisConfig struct {
	// Addr is host:port of the Redis server. Empty disables Redis.
	Addr string `yaml:"addr"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	// DB selects the Redis database.
	DB int `yaml:"db"`

	// Prefix namespaces every key and channel.
	Prefix string `yaml:"prefix"`

	// Recent is how many rows the recent list keeps.
	Recent int `yaml:"recent"`
}

// Password returns the Redis password resolved from the environment.
func (r RedisConfig) Password() string {
	if r.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(r.PasswordEnv)
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the REST API authenticates requests.
	Auth AuthConfig `yaml:"auth"`

	// HistorySize is the number of recent cycle results kept in memory.
	HistorySize int `yaml:"history_size"`

	// BroadcastInterval controls how often WebSocket clients receive a snapshot.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// AuthConfig controls REST API authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "X-API-Key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "X-API-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-API-Key"
}

// CycleOptions converts the agent settings into fusion.Options.
func (a AgentConfig) CycleOptions() fusion.Options {
	return fusion.Options{
		Tolerances:    a.Tolerances,
		Thresholds:    a.Thresholds,
		WindowSize:    a.WindowSize,
		LuxHoursReset: a.LuxHoursReset,
		DownCycles:    a.DownCycles,
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			PollInterval:  DefaultPollInterval,
			Reader:        ReaderConfig{Type: "gateway", Timeout: DefaultReadTimeout},
			Tolerances:    fusion.DefaultTolerances(),
			Thresholds:    fusion.DefaultThresholds(),
			WindowSize:    fusion.DefaultWindowSize,
			LuxHoursReset: fusion.DefaultLuxHoursReset,
			DownCycles:    fusion.DefaultDownCycles,
			Log:           LogConfig{Level: "info"},
			RowLog:        RowLogConfig{Dir: DefaultRowLogDir},
			Actuator:      ActuatorConfig{Type: "none", GPIO: GPIOConfig{BasePath: "/sys/class/gpio"}},
			History:       HistoryConfig{Retention: DefaultRetention},
			Publish: PublishConfig{
				MQTT:  MQTTConfig{ClientID: "fusion-agent", Topic: DefaultMQTTTopic},
				Redis: RedisConfig{Prefix: DefaultRedisPrefix, Recent: 60},
			},
		},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			HistorySize:       DefaultHistorySize,
			BroadcastInterval: DefaultBroadcastInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := &cfg.Agent
	if a.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if len(a.Series) != fusion.SeriesCount {
		return fmt.Errorf("agent.series: got %d entries, want exactly %d", len(a.Series), fusion.SeriesCount)
	}

	switch a.Reader.Type {
	case "gateway", "simulated":
	default:
		return fmt.Errorf("agent.reader.type %q unknown: want gateway|simulated", a.Reader.Type)
	}
	if a.Reader.FailureRate < 0 || a.Reader.FailureRate > 1 {
		return fmt.Errorf("agent.reader.failure_rate must be within [0, 1]")
	}

	seen := make(map[string]bool, len(a.Series))
	for i, s := range a.Series {
		if s.ID == "" {
			return fmt.Errorf("series[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("series[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if a.Reader.Type == "gateway" && s.Endpoint == "" {
			return fmt.Errorf("series[%d] %q: endpoint is required for the gateway reader", i, s.ID)
		}
		if s.Channel < 0 || s.Channel > 7 {
			return fmt.Errorf("series[%d] %q: channel %d is out of range [0, 7]", i, s.ID, s.Channel)
		}
	}

	if err := validateBand("temperature", a.Thresholds.Temperature); err != nil {
		return err
	}
	if err := validateBand("humidity", a.Thresholds.Humidity); err != nil {
		return err
	}
	for name, l := range map[string]fusion.Limits{
		"lux":             a.Thresholds.Lux,
		"lux_hours":       a.Thresholds.LuxHours,
		"humidity_change": a.Thresholds.HumidityChange,
	} {
		if l.HighSoft <= 0 {
			return fmt.Errorf("agent.thresholds.%s.high_soft must be positive", name)
		}
	}

	for name, tol := range map[string]fusion.Tolerance{
		"temperature": a.Tolerances.Temperature,
		"humidity":    a.Tolerances.Humidity,
		"lux":         a.Tolerances.Lux,
	} {
		if tol.Absolute < 0 || tol.Relative < 0 {
			return fmt.Errorf("agent.tolerances.%s must not be negative", name)
		}
	}

	if a.WindowSize <= 0 {
		return fmt.Errorf("agent.window_size must be positive")
	}
	if a.LuxHoursReset <= 0 {
		return fmt.Errorf("agent.lux_hours_reset must be positive")
	}
	if a.DownCycles <= 0 {
		return fmt.Errorf("agent.down_cycles must be positive")
	}

	switch a.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent.log.level %q unknown: want debug|info|warn|error", a.Log.Level)
	}

	switch a.Actuator.Type {
	case "none", "":
	case "gpio":
		for line := range a.Actuator.GPIO.Pins {
			if line < 0 || line >= fusion.AlertCount {
				return fmt.Errorf("agent.actuator.gpio.pins: line %d is out of range [0, %d)", line, fusion.AlertCount)
			}
		}
	case "webhook":
		for i, wh := range a.Actuator.Webhooks {
			switch wh.Type {
			case "teams", "slack", "http":
			default:
				return fmt.Errorf("agent.actuator.webhooks[%d]: unknown type %q", i, wh.Type)
			}
		}
	default:
		return fmt.Errorf("agent.actuator.type %q unknown: want none|gpio|webhook", a.Actuator.Type)
	}

	switch a.History.Backend {
	case "":
	case "sqlite":
		if a.History.Path == "" {
			return fmt.Errorf("agent.history.path is required for the sqlite backend")
		}
	case "postgres":
		if a.History.DSNEnv == "" {
			return fmt.Errorf("agent.history.dsn_env is required for the postgres backend")
		}
	default:
		return fmt.Errorf("agent.history.backend %q unknown: want sqlite|postgres", a.History.Backend)
	}
	if a.History.Retention < 0 {
		return fmt.Errorf("agent.history.retention must not be negative")
	}

	s := &cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.HistorySize <= 0 {
		return fmt.Errorf("server.history_size must be positive")
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	return nil
}

// validateBand enforces lowHard < lowSoft < highSoft < highHard.
func validateBand(name string, l fusion.Limits) error {
	if !(l.LowHard < l.LowSoft && l.LowSoft < l.HighSoft && l.HighSoft < l.HighHard) {
		return fmt.Errorf("agent.thresholds.%s: want low_hard < low_soft < high_soft < high_hard, got %v < %v < %v < %v",
			name, l.LowHard, l.LowSoft, l.HighSoft, l.HighHard)
	}
	return nil
}
