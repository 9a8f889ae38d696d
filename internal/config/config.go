// Package config loads runtime settings from defaults, an optional YAML
// file, a .env file and MOODMAP_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var (
	ErrUnknownDriver   = errors.New("unknown storage driver")
	ErrMissingDatabase = errors.New("database_url is required for the postgres driver")
	ErrInvalidTimings  = errors.New("durations must not be negative")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config holds every runtime setting.
type Config struct {
	APIURL          string        `mapstructure:"api_url"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	Addr            string        `mapstructure:"addr"`
	StorageDriver   string        `mapstructure:"storage_driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	DatabaseURL     string        `mapstructure:"database_url"`
	CacheDir        string        `mapstructure:"cache_dir"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	CaptureClip     string        `mapstructure:"capture_clip"`
	CaptureWindow   time.Duration `mapstructure:"capture_window"`
	AnalysisDelay   time.Duration `mapstructure:"analysis_delay"`
	LogLevel        string        `mapstructure:"log_level"`
	TokenPath       string        `mapstructure:"token_path"`
	OTelEndpoint    string        `mapstructure:"otel_endpoint"`
	OTelInsecure    bool          `mapstructure:"otel_insecure"`
	ServiceName     string        `mapstructure:"service_name"`
}

// dataDir is where local state lives unless overridden.
func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "moodmap")
	}
	return ".moodmap"
}

func setDefaults(v *viper.Viper) {
	dir := dataDir()
	v.SetDefault("api_url", "")
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("storage_driver", DriverSQLite)
	v.SetDefault("sqlite_path", filepath.Join(dir, "state.db"))
	v.SetDefault("database_url", "")
	v.SetDefault("cache_dir", filepath.Join(dir, "audio-cache"))
	v.SetDefault("download_timeout", 10*time.Minute)
	v.SetDefault("capture_clip", "")
	v.SetDefault("capture_window", 5*time.Second)
	v.SetDefault("analysis_delay", 2*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("token_path", "")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("otel_insecure", false)
	v.SetDefault("service_name", "moodmap")
}

// Load reads configuration. An empty path skips the config file; a path
// that does not exist is an error.
func Load(path string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MOODMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings are usable together.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabase
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StorageDriver)
	}
	if c.CaptureWindow < 0 || c.AnalysisDelay < 0 || c.DownloadTimeout < 0 {
		return ErrInvalidTimings
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}
