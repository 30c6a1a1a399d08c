package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "WORKTABS"

// Store backends
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Duration is a time.Duration that decodes from strings such as "1s" in
// environment variables, YAML and TOML alike.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config holds all application configuration. Environment variables are
// derived from the field path, e.g. WORKTABS_API_BASE_URL or
// WORKTABS_TERMINAL_RECONNECT_DELAY.
type Config struct {
	API      APIConfig      `yaml:"api" toml:"api"`
	Terminal TerminalConfig `yaml:"terminal" toml:"terminal"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
	Logging  LogConfig      `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// APIConfig holds the collaborator REST endpoint settings.
type APIConfig struct {
	BaseURL   string   `split_words:"true" default:"http://127.0.0.1:3007" yaml:"base_url" toml:"base_url"`
	WSBaseURL string   `split_words:"true" yaml:"ws_base_url" toml:"ws_base_url"`
	Token     string   `yaml:"token" toml:"token"`
	Timeout   Duration `default:"15s" yaml:"timeout" toml:"timeout"`
	Retries   int      `default:"2" yaml:"retries" toml:"retries"`
	RateLimit float64  `split_words:"true" default:"0" yaml:"rate_limit" toml:"rate_limit"`
	UserAgent string   `split_words:"true" default:"worktabs/1.0" yaml:"user_agent" toml:"user_agent"`
}

// TerminalConfig holds connection manager settings.
type TerminalConfig struct {
	ReconnectDelay Duration `split_words:"true" default:"1s" yaml:"reconnect_delay" toml:"reconnect_delay"`
	DialTimeout    Duration `split_words:"true" default:"10s" yaml:"dial_timeout" toml:"dial_timeout"`
	DefaultRows    int      `split_words:"true" default:"24" yaml:"default_rows" toml:"default_rows"`
	DefaultCols    int      `split_words:"true" default:"80" yaml:"default_cols" toml:"default_cols"`
}

// StoreConfig selects where tab order is persisted.
type StoreConfig struct {
	Backend string `default:"file" yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
	Key     string `default:"kanban-terminal-tab-order" yaml:"key" toml:"key"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `default:"info" yaml:"level" toml:"level"`
	Development bool   `default:"false" yaml:"development" toml:"development"`
}

// MetricsConfig holds the status server settings used by `watch`.
type MetricsConfig struct {
	Address      string   `default:"127.0.0.1:9464" yaml:"address" toml:"address"`
	AllowOrigins []string `split_words:"true" default:"*" yaml:"allow_origins" toml:"allow_origins"`
	// RateLimit is requests per second per client; 0 disables limiting
	RateLimit int `split_words:"true" default:"50" yaml:"rate_limit" toml:"rate_limit"`
	Burst     int `default:"100" yaml:"burst" toml:"burst"`
}

// Load loads configuration from defaults and environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.applyDerived()
	return &cfg, cfg.Validate()
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile loads configuration from defaults, then the given YAML or TOML
// file, then environment variables. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := overlayEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDerived()
	return cfg, cfg.Validate()
}

// overlayEnv applies only the variables that are actually set, so file
// values are not reset to struct-tag defaults.
func overlayEnv(cfg *Config) error {
	var fromEnv Config
	if err := envconfig.Process(EnvPrefix, &fromEnv); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	set := func(name string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + name)
		return ok
	}

	if set("API_BASE_URL") {
		cfg.API.BaseURL = fromEnv.API.BaseURL
	}
	if set("API_WS_BASE_URL") {
		cfg.API.WSBaseURL = fromEnv.API.WSBaseURL
	}
	if set("API_TOKEN") {
		cfg.API.Token = fromEnv.API.Token
	}
	if set("API_TIMEOUT") {
		cfg.API.Timeout = fromEnv.API.Timeout
	}
	if set("API_RETRIES") {
		cfg.API.Retries = fromEnv.API.Retries
	}
	if set("API_RATE_LIMIT") {
		cfg.API.RateLimit = fromEnv.API.RateLimit
	}
	if set("API_USER_AGENT") {
		cfg.API.UserAgent = fromEnv.API.UserAgent
	}
	if set("TERMINAL_RECONNECT_DELAY") {
		cfg.Terminal.ReconnectDelay = fromEnv.Terminal.ReconnectDelay
	}
	if set("TERMINAL_DIAL_TIMEOUT") {
		cfg.Terminal.DialTimeout = fromEnv.Terminal.DialTimeout
	}
	if set("TERMINAL_DEFAULT_ROWS") {
		cfg.Terminal.DefaultRows = fromEnv.Terminal.DefaultRows
	}
	if set("TERMINAL_DEFAULT_COLS") {
		cfg.Terminal.DefaultCols = fromEnv.Terminal.DefaultCols
	}
	if set("STORE_BACKEND") {
		cfg.Store.Backend = fromEnv.Store.Backend
	}
	if set("STORE_PATH") {
		cfg.Store.Path = fromEnv.Store.Path
	}
	if set("STORE_KEY") {
		cfg.Store.Key = fromEnv.Store.Key
	}
	if set("LOGGING_LEVEL") {
		cfg.Logging.Level = fromEnv.Logging.Level
	}
	if set("LOGGING_DEVELOPMENT") {
		cfg.Logging.Development = fromEnv.Logging.Development
	}
	if set("METRICS_ADDRESS") {
		cfg.Metrics.Address = fromEnv.Metrics.Address
	}
	if set("METRICS_ALLOW_ORIGINS") {
		cfg.Metrics.AllowOrigins = fromEnv.Metrics.AllowOrigins
	}
	if set("METRICS_RATE_LIMIT") {
		cfg.Metrics.RateLimit = fromEnv.Metrics.RateLimit
	}
	if set("METRICS_BURST") {
		cfg.Metrics.Burst = fromEnv.Metrics.Burst
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		API: APIConfig{
			BaseURL:   "http://127.0.0.1:3007",
			Timeout:   Duration(15 * time.Second),
			Retries:   2,
			UserAgent: "worktabs/1.0",
		},
		Terminal: TerminalConfig{
			ReconnectDelay: Duration(time.Second),
			DialTimeout:    Duration(10 * time.Second),
			DefaultRows:    24,
			DefaultCols:    80,
		},
		Store: StoreConfig{
			Backend: StoreFile,
			Key:     "kanban-terminal-tab-order",
		},
		Logging: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Address:      "127.0.0.1:9464",
			AllowOrigins: []string{"*"},
			RateLimit:    50,
			Burst:        100,
		},
	}
	cfg.applyDerived()
	return cfg
}

// applyDerived fills values computed from other settings.
func (c *Config) applyDerived() {
	if c.Store.Path == "" && c.Store.Backend != StoreMemory {
		c.Store.Path = defaultStorePath(c.Store.Backend)
	}
}

func defaultStorePath(backend string) string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	if backend == StoreSQLite {
		return filepath.Join(dir, "worktabs", "state.db")
	}
	return filepath.Join(dir, "worktabs")
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api base url is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api base url %q is not absolute", c.API.BaseURL))
	}
	if c.API.Retries < 0 {
		errs = append(errs, errors.New("api retries cannot be negative"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, errors.New("api rate limit cannot be negative"))
	}
	if c.Terminal.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("reconnect delay must be positive"))
	}
	switch c.Store.Backend {
	case StoreFile, StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Metrics.RateLimit < 0 || c.Metrics.Burst < 0 {
		errs = append(errs, errors.New("status server rate limit and burst cannot be negative"))
	}
	if strings.TrimSpace(c.Store.Key) == "" {
		errs = append(errs, errors.New("store key is required"))
	}

	return errors.Join(errs...)
}
