package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torrentsnag/tracker"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "/tmp/torrentsnag.db"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Fetch:    FetchConfig{Timeout: 30 * time.Second, Retries: 2},
		Tracking: TrackingConfig{MaxAge: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "Valid config",
			modify: func(*Config) {},
		},
		{
			name:    "Missing database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path is required",
		},
		{
			name:    "Invalid logging level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid logging level: verbose",
		},
		{
			name:    "Invalid logging format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid logging format: xml",
		},
		{
			name:    "Zero fetch timeout",
			modify:  func(c *Config) { c.Fetch.Timeout = 0 },
			wantErr: "fetch.timeout must be positive",
		},
		{
			name:    "Negative retries",
			modify:  func(c *Config) { c.Fetch.Retries = -1 },
			wantErr: "fetch.retries must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, tracker.DefaultMaxAge, cfg.Tracking.MaxAge)
	assert.Equal(t, "torrentsnag.db", filepath.Base(cfg.Database.Path))
	assert.True(t, filepath.IsAbs(cfg.Database.Path))
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: `+filepath.Join(dir, "db.sqlite")+`
logging:
  level: debug
server:
  allowed_origins:
    - moz-extension://abc
fetch:
  timeout: 5s
`), 0o600))

	t.Setenv("TORRENTSNAG_LOGGING_FORMAT", "json")

	app, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, path, app.File())

	cfg := app.Config
	assert.Equal(t, filepath.Join(dir, "db.sqlite"), cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"moz-extension://abc"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
}

func TestReloadNotifiesListeners(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	app, err := New(path)
	require.NoError(t, err)

	var got *Config
	app.OnReload(func(c *Config) { got = c })

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600))
	require.NoError(t, app.viper.ReadInConfig())
	app.reload(zerolog.Nop())

	require.NotNil(t, got)
	assert.Equal(t, "warn", got.Logging.Level)
	assert.Equal(t, "warn", app.Current().Logging.Level)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))
	require.NoError(t, app.viper.ReadInConfig())
	got = nil
	app.reload(zerolog.Nop())

	assert.Nil(t, got)
	assert.Equal(t, "warn", app.Current().Logging.Level)
}
