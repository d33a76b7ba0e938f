// Package config loads SpecGen settings: built-in defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/omjikush09/aggroso/internal/logging"
	"github.com/omjikush09/aggroso/internal/store"
)

// Environment variables read by Load.
const (
	EnvConfig      = "SPECGEN_CONFIG"
	EnvAddr        = "SPECGEN_ADDR"
	EnvPort        = "PORT"
	EnvDBDriver    = "SPECGEN_DB_DRIVER"
	EnvDBDSN       = "SPECGEN_DB_DSN"
	EnvDatabaseURL = "DATABASE_URL"
	EnvDataDir     = "SPECGEN_DATA_DIR"
	EnvLogLevel    = "SPECGEN_LOG_LEVEL"
	EnvLogFormat   = "SPECGEN_LOG_FORMAT"
	EnvAPIURL      = "SPECGEN_API_URL"
	EnvCORSOrigins = "SPECGEN_CORS_ORIGINS"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	History  HistoryConfig  `yaml:"history"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	DataDir string `yaml:"data_dir"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HistoryConfig caps the history listing.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// ClientConfig configures the CLI's API client.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3001",
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  string(store.DriverSQLite),
			DataDir: DefaultDataDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(logging.FormatText),
		},
		History: HistoryConfig{
			Limit: store.DefaultHistoryLimit,
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:3001",
			Timeout: 10 * time.Second,
		},
	}
}

// DefaultDataDir is ~/.specgen, or .specgen when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".specgen"
	}
	return home + string(os.PathSeparator) + ".specgen"
}

// Load builds the configuration. path names an optional YAML file; when it
// is empty SPECGEN_CONFIG is consulted. A named file that does not exist is
// an error. Environment variables override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. PORT is honoured for hosted
// platforms; SPECGEN_ADDR wins when both are set.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if port, ok := get(EnvPort); ok {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, port)
		}
		cfg.Server.Addr = ":" + port
	}
	if v, ok := get(EnvAddr); ok {
		cfg.Server.Addr = v
	}
	if v, ok := get(EnvCORSOrigins); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v, ok := get(EnvDBDriver); ok {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v, ok := get(EnvDatabaseURL); ok {
		cfg.Database.DSN = v
	}
	if v, ok := get(EnvDBDSN); ok {
		cfg.Database.DSN = v
	}
	if v, ok := get(EnvDataDir); ok {
		cfg.Database.DataDir = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := get(EnvLogFormat); ok {
		cfg.Log.Format = v
	}
	if v, ok := get(EnvAPIURL); ok {
		cfg.Client.BaseURL = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server.max_body_bytes must not be negative"))
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"client.timeout":          c.Client.Timeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	switch store.Driver(c.Database.Driver) {
	case store.DriverSQLite, "":
		if strings.TrimSpace(c.Database.DataDir) == "" {
			errs = append(errs, errors.New("database.data_dir is required for sqlite"))
		}
	case store.DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: must be sqlite or postgres", c.Database.Driver))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", string(logging.FormatText), string(logging.FormatJSON):
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be text or json", c.Log.Format))
	}
	if c.History.Limit <= 0 {
		errs = append(errs, errors.New("history.limit must be positive"))
	}

	if u, err := url.Parse(c.Client.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("client.base_url %q: must be an http(s) URL", c.Client.BaseURL))
	}

	return errors.Join(errs...)
}

// StoreOptions converts the database settings for store.Open.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:  store.Driver(c.Database.Driver),
		DSN:     c.Database.DSN,
		DataDir: c.Database.DataDir,
	}
}

// LoggingConfig converts the log settings for logging.New. Output is left
// for the caller.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}
