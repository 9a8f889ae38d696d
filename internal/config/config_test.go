package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MOODMAP_STORAGE_DRIVER", "")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageDriver != DriverSQLite {
		t.Errorf("StorageDriver = %q, want %q", cfg.StorageDriver, DriverSQLite)
	}
	if cfg.CaptureWindow != 5*time.Second || cfg.AnalysisDelay != 2*time.Second {
		t.Errorf("timings = %v/%v, want 5s/2s", cfg.CaptureWindow, cfg.AnalysisDelay)
	}
	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DownloadTimeout != 10*time.Minute {
		t.Errorf("DownloadTimeout = %v, want 10m", cfg.DownloadTimeout)
	}
	if cfg.DownloadTimeout <= cfg.HTTPTimeout {
		t.Errorf("DownloadTimeout %v should exceed HTTPTimeout %v", cfg.DownloadTimeout, cfg.HTTPTimeout)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "moodmap.yaml")
	data := "api_url: https://moods.example.com\nstorage_driver: memory\ncapture_window: 3s\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOODMAP_ADDR", ":9090")
	t.Setenv("MOODMAP_API_URL", "https://override.example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != "https://override.example.com" {
		t.Errorf("APIURL = %q, environment should win over the file", cfg.APIURL)
	}
	if cfg.StorageDriver != DriverMemory {
		t.Errorf("StorageDriver = %q", cfg.StorageDriver)
	}
	if cfg.CaptureWindow != 3*time.Second {
		t.Errorf("CaptureWindow = %v", cfg.CaptureWindow)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{StorageDriver: DriverSQLite, LogLevel: "info"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "redis" }, wantErr: ErrUnknownDriver},
		{name: "postgres without url", mutate: func(c *Config) { c.StorageDriver = DriverPostgres }, wantErr: ErrMissingDatabase},
		{name: "postgres with url", mutate: func(c *Config) {
			c.StorageDriver = DriverPostgres
			c.DatabaseURL = "postgres://localhost/moodmap"
		}},
		{name: "negative window", mutate: func(c *Config) { c.CaptureWindow = -time.Second }, wantErr: ErrInvalidTimings},
		{name: "negative download timeout", mutate: func(c *Config) { c.DownloadTimeout = -time.Second }, wantErr: ErrInvalidTimings},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
