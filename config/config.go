package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/s0up4200/torrentsnag/page"
	"github.com/s0up4200/torrentsnag/tracker"
	"github.com/s0up4200/torrentsnag/update"
)

const (
	envPrefix = "TORRENTSNAG_"
	appDir    = "~/.torrentsnag"
)

// ErrConfigFileNotFound is returned when an explicitly given config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// AppConfig holds the loaded configuration and reloads it when the file changes.
type AppConfig struct {
	Config *Config

	viper *viper.Viper

	mu        sync.RWMutex
	listeners []func(*Config)
}

// Load loads the configuration from file. A missing file is only an error when
// configPath was given explicitly.
func Load(configPath string) (*Config, error) {
	app, err := New(configPath)
	if err != nil {
		return nil, err
	}
	return app.Config, nil
}

// New reads the configuration and returns it with its viper instance.
func New(configPath string) (*AppConfig, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if dir, err := homedir.Expand(appDir); err == nil {
			v.AddConfigPath(dir)
		}

		// Check /etc
		v.AddConfigPath("/etc/torrentsnag/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && configPath == "":
			// defaults and environment only
		case errors.As(err, &notFound):
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
		default:
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	return &AppConfig{Config: cfg, viper: v}, nil
}

// File returns the config file in use, empty when running on defaults.
func (c *AppConfig) File() string {
	return c.viper.ConfigFileUsed()
}

// Current returns the latest loaded configuration.
func (c *AppConfig) Current() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

// OnReload registers fn to be called with every successfully reloaded configuration.
func (c *AppConfig) OnReload(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Watch reloads the configuration when the config file changes. Invalid
// changes are logged and ignored.
func (c *AppConfig) Watch(logger zerolog.Logger) {
	if c.File() == "" {
		return
	}

	c.viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info().Str("file", e.Name).Msg("Config file changed")
		c.reload(logger)
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) reload(logger zerolog.Logger) {
	cfg, err := decode(c.viper)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to reload configuration")
		return
	}

	c.mu.Lock()
	c.Config = cfg
	listeners := append([]func(*Config){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		copied := *cfg
		fn(&copied)
	}
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	expanded, err := homedir.Expand(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid database.path: %w", err)
	}
	cfg.Database.Path = expanded

	if cfg.Logging.File != "" {
		if cfg.Logging.File, err = homedir.Expand(cfg.Logging.File); err != nil {
			return nil, fmt.Errorf("invalid logging.file: %w", err)
		}
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(appDir, "torrentsnag.db"))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 3)

	v.SetDefault("server.addr", "127.0.0.1:7475")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("fetch.user_agent", page.DefaultUserAgent)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.retries", 2)

	v.SetDefault("tracking.max_age", tracker.DefaultMaxAge.String())
	v.SetDefault("tracking.interval", tracker.DefaultCompactionInterval.String())

	v.SetDefault("update.repository", update.DefaultRepository)
}

// bindEnv maps every known key to TORRENTSNAG_<SECTION>_<KEY>.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"database.path",
		"logging.level", "logging.format", "logging.color", "logging.file", "logging.max_size", "logging.max_backups",
		"server.addr", "server.allowed_origins",
		"fetch.user_agent", "fetch.timeout", "fetch.retries",
		"tracking.max_age", "tracking.interval",
		"update.repository",
	} {
		v.BindEnv(key, envPrefix+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if cfg.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must not be negative")
	}
	if cfg.Tracking.MaxAge <= 0 {
		return fmt.Errorf("tracking.max_age must be positive")
	}

	return nil
}
