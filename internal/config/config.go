package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Engine    EngineConfig    `yaml:"engine"`
	Control   ControlConfig   `yaml:"control"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

// ServiceConfig locates the remote workout service.
type ServiceConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Token             string  `yaml:"token"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type EngineConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// ControlConfig is the local control API listener.
type ControlConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// HistoryConfig enables the local history cache when Dir is set.
type HistoryConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Timeout returns the per-request timeout of the service client.
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Debounce returns the quiet period before field edits are saved.
func (e EngineConfig) Debounce() time.Duration {
	return time.Duration(e.DebounceMS) * time.Millisecond
}

// Addr returns the host:port of the control API.
func (c ControlConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads config from a YAML file, then applies defaults and environment
// variable overrides. Env vars use the prefix WORKOUTSYNC_:
//
//	WORKOUTSYNC_SERVICE_BASE_URL, WORKOUTSYNC_SERVICE_TOKEN,
//	WORKOUTSYNC_CONTROL_HOST, WORKOUTSYNC_CONTROL_PORT, WORKOUTSYNC_CONTROL_API_KEY,
//	WORKOUTSYNC_HISTORY_DIR, WORKOUTSYNC_LOG_LEVEL, WORKOUTSYNC_DEBOUNCE_MS
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service.TimeoutSeconds == 0 {
		cfg.Service.TimeoutSeconds = 30
	}
	if cfg.Service.RequestsPerSecond == 0 {
		cfg.Service.RequestsPerSecond = 10
	}
	if cfg.Service.Burst == 0 {
		cfg.Service.Burst = 5
	}
	if cfg.Engine.DebounceMS == 0 {
		cfg.Engine.DebounceMS = 500
	}
	if cfg.Control.Host == "" {
		cfg.Control.Host = "127.0.0.1"
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "workoutsync"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WORKOUTSYNC_SERVICE_BASE_URL"); v != "" {
		cfg.Service.BaseURL = v
	}
	if v := os.Getenv("WORKOUTSYNC_SERVICE_TOKEN"); v != "" {
		cfg.Service.Token = v
	}
	if v := os.Getenv("WORKOUTSYNC_CONTROL_HOST"); v != "" {
		cfg.Control.Host = v
	}
	if v := os.Getenv("WORKOUTSYNC_CONTROL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Control.Port = port
		}
	}
	if v := os.Getenv("WORKOUTSYNC_CONTROL_API_KEY"); v != "" {
		cfg.Control.APIKey = v
	}
	if v := os.Getenv("WORKOUTSYNC_HISTORY_DIR"); v != "" {
		cfg.History.Dir = v
	}
	if v := os.Getenv("WORKOUTSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WORKOUTSYNC_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Engine.DebounceMS = ms
		}
	}
}

func (c *Config) validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	if !strings.HasPrefix(c.Service.BaseURL, "http://") && !strings.HasPrefix(c.Service.BaseURL, "https://") {
		return fmt.Errorf("service.base_url must be an http(s) URL")
	}
	if c.Engine.DebounceMS < 0 {
		return fmt.Errorf("engine.debounce_ms must not be negative")
	}
	if !c.Tailscale.Enabled && c.Control.Port == 0 {
		return fmt.Errorf("control.port is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.StateDir == "" {
		return fmt.Errorf("tailscale.state_dir is required when tailscale is enabled")
	}
	return nil
}
