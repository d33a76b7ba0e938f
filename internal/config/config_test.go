package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omjikush09/aggroso/internal/store"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvConfig, EnvAddr, EnvPort, EnvDBDriver, EnvDBDSN, EnvDatabaseURL,
		EnvDataDir, EnvLogLevel, EnvLogFormat, EnvAPIURL, EnvCORSOrigins,
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "specgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, string(store.DriverSQLite), cfg.Database.Driver)
	assert.NotEmpty(t, cfg.Database.DataDir)
	assert.Equal(t, store.DefaultHistoryLimit, cfg.History.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
server:
  addr: ":8080"
  cors_origins: ["http://localhost:5173"]
  shutdown_timeout: 3s
database:
  driver: postgres
  dsn: postgres://u:p@localhost/specgen
log:
  level: debug
  format: json
history:
  limit: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.History.Limit)

	opts := cfg.StoreOptions()
	assert.Equal(t, store.DriverPostgres, opts.Driver)
	assert.Equal(t, "postgres://u:p@localhost/specgen", opts.DSN)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfig, writeYAML(t, "server:\n  addr: \":9999\"\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeYAML(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, "server:\n  addr: \":8080\"\nlog:\n  level: debug\n")
	t.Setenv(EnvAddr, "127.0.0.1:4000")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvCORSOrigins, "http://a.test, http://b.test ,")
	t.Setenv(EnvDataDir, "/tmp/specgen")
	t.Setenv(EnvAPIURL, "https://api.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:4000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/tmp/specgen", cfg.Database.DataDir)
	assert.Equal(t, "https://api.example.com", cfg.Client.BaseURL)
}

func TestLoad_PortAndAddrPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "5000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Addr)

	t.Setenv(EnvAddr, ":6000")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":6000", cfg.Server.Addr, "SPECGEN_ADDR wins over PORT")
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "http")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_DSNPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDBDriver, "POSTGRES")
	t.Setenv(EnvDatabaseURL, "postgres://from-database-url")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://from-database-url", cfg.Database.DSN)

	t.Setenv(EnvDBDSN, "postgres://from-specgen")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-specgen", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"blank addr", func(c *Config) { c.Server.Addr = " " }},
		{"negative body", func(c *Config) { c.Server.MaxBodyBytes = -1 }},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"sqlite without dir", func(c *Config) { c.Database.DataDir = "" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"zero history", func(c *Config) { c.History.Limit = 0 }},
		{"bad base url", func(c *Config) { c.Client.BaseURL = "localhost:3001" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.History.Limit = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "history.limit")
}

func TestLoggingConfig(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"

	lc := cfg.LoggingConfig()
	assert.Equal(t, "json", lc.Format)
	assert.Equal(t, "info", lc.Level)
	assert.Nil(t, lc.Output)
}
