// Package config loads and persists the client configuration from
// $TASKWIRE_HOME/config.yaml, with environment overrides.
package config

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TelemetryConfig controls the OpenTelemetry export pipeline.
type TelemetryConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Exporter       string  `yaml:"exporter"` // otlp-http, stdout, none
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	SampleRate     float64 `yaml:"sample_rate"`
	MetricsEnabled *bool   `yaml:"metrics_enabled,omitempty"`
}

// PushConfig controls push token registration.
type PushConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Platform string `yaml:"platform"` // reported to the backend; defaults to "cli"
}

// TelegramConfig configures the Telegram notification forwarder.
type TelegramConfig struct {
	Enabled bool    `yaml:"enabled"`
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

// ChannelsConfig groups notification delivery channels.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// SyncConfig tunes the realtime sync engine.
type SyncConfig struct {
	// ResyncCron is a 5-field cron expression for periodic full resyncs.
	// Empty disables scheduled resync.
	ResyncCron string `yaml:"resync_cron"`

	// MaxReconnectAttempts bounds socket reconnection before giving up.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// ThrottleWindowMillis is the minimum interval between cache refetches
	// triggered by server push events.
	ThrottleWindowMillis int `yaml:"throttle_window_millis"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	// ServerURL is the REST base URL of the task platform backend.
	ServerURL string `yaml:"server_url"`

	// SocketURL is the realtime endpoint. Derived from ServerURL when empty
	// (scheme flipped to ws/wss, path /ws).
	SocketURL string `yaml:"socket_url"`

	LogLevel              string `yaml:"log_level"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`

	Sync      SyncConfig      `yaml:"sync"`
	Push      PushConfig      `yaml:"push"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

func defaultConfig() Config {
	return Config{
		ServerURL:             "http://127.0.0.1:4000",
		LogLevel:              "info",
		RequestTimeoutSeconds: 30,
		Sync: SyncConfig{
			ResyncCron:           "*/5 * * * *",
			MaxReconnectAttempts: 10,
			ThrottleWindowMillis: 1000,
		},
		Push: PushConfig{
			Enabled:  false,
			Platform: "cli",
		},
	}
}

// HomeDir resolves the data directory: $TASKWIRE_HOME or ~/.taskwire.
func HomeDir() string {
	if override := os.Getenv("TASKWIRE_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".taskwire")
}

// Load reads config.yaml from the home directory, creating the directory if
// needed. A missing file yields the defaults.
func Load() (Config, error) {
	return LoadFrom(HomeDir())
}

// LoadFrom reads configuration rooted at the given home directory.
func LoadFrom(homeDir string) (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = homeDir

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create taskwire home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

// Save writes the config back to config.yaml.
func (c Config) Save() error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	return os.WriteFile(ConfigPath(c.HomeDir), out, 0o644)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKWIRE_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("TASKWIRE_SOCKET_URL"); v != "" {
		cfg.SocketURL = v
	}
	if v := os.Getenv("TASKWIRE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKWIRE_TELEGRAM_TOKEN"); v != "" {
		cfg.Channels.Telegram.Token = v
	}
	if v := os.Getenv("TASKWIRE_REQUEST_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestTimeoutSeconds = n
		}
	}
}

func normalize(cfg *Config) {
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	if cfg.Sync.MaxReconnectAttempts <= 0 {
		cfg.Sync.MaxReconnectAttempts = 10
	}
	if cfg.Sync.ThrottleWindowMillis <= 0 {
		cfg.Sync.ThrottleWindowMillis = 1000
	}
	if cfg.Push.Platform == "" {
		cfg.Push.Platform = "cli"
	}
	if cfg.SocketURL == "" {
		cfg.SocketURL = deriveSocketURL(cfg.ServerURL)
	}
}

// deriveSocketURL maps an http(s) base URL to its ws(s) counterpart at /ws.
func deriveSocketURL(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// Fingerprint returns a stable hash of the active config, logged at startup
// so support can match a report to the settings that produced it.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "server=%s|socket=%s|log=%s|timeout=%d|cron=%s|reconnect=%d|throttle=%d",
		c.ServerURL, c.SocketURL, c.LogLevel, c.RequestTimeoutSeconds,
		c.Sync.ResyncCron, c.Sync.MaxReconnectAttempts, c.Sync.ThrottleWindowMillis)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}
