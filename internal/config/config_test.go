package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"empty host", func(c *Config) { c.Server.Host = "" }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero max connections", func(c *Config) { c.Database.MaxConnections = 0 }},
		{"empty assets path", func(c *Config) { c.Storage.AssetsPath = "" }},
		{"empty thumbnails path", func(c *Config) { c.Storage.ThumbnailsPath = "" }},
		{"zero upload size", func(c *Config) { c.Storage.MaxUploadSizeMB = 0 }},
		{"empty ffmpeg path", func(c *Config) { c.Media.FFmpegPath = "" }},
		{"empty ffprobe path", func(c *Config) { c.Media.FFprobePath = "" }},
		{"zero thumbnail width", func(c *Config) { c.Media.ThumbnailWidth = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"generative enabled without base URL", func(c *Config) {
			c.Generative.Enabled = true
			c.Generative.BaseURL = ""
		}},
		{"generative timeout below poll interval", func(c *Config) {
			c.Generative.Enabled = true
			c.Generative.PollIntervalSeconds = 10
			c.Generative.TimeoutSeconds = 5
		}},
		{"auth enabled without password hash", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.PasswordHash = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, expected 8080", cfg.Server.Port)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("LoadConfig should write a default config file: %v", err)
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Server.Port = "9999"
	cfg.Storage.AssetsPath = "/srv/contentizer/assets"
	cfg.Media.ThumbnailWidth = 640
	cfg.Logging.Format = "json"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Server.Port != "9999" {
		t.Errorf("port = %q, expected 9999", loaded.Server.Port)
	}
	if loaded.Storage.AssetsPath != "/srv/contentizer/assets" {
		t.Errorf("assets path = %q, expected /srv/contentizer/assets", loaded.Storage.AssetsPath)
	}
	if loaded.Media.ThumbnailWidth != 640 {
		t.Errorf("thumbnail width = %d, expected 640", loaded.Media.ThumbnailWidth)
	}
	if loaded.Logging.Format != "json" {
		t.Errorf("log format = %q, expected json", loaded.Logging.Format)
	}
}

func TestGetAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "8181"

	if got := cfg.GetAddress(); got != "127.0.0.1:8181" {
		t.Errorf("GetAddress = %q, expected 127.0.0.1:8181", got)
	}
}
