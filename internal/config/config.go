package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Storage    StorageConfig    `toml:"storage"`
	Media      MediaConfig      `toml:"media"`
	Logging    LoggingConfig    `toml:"logging"`
	Generative GenerativeConfig `toml:"generative"`
	Ngrok      NgrokConfig      `toml:"ngrok"`
	Auth       AuthConfig       `toml:"auth"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains project store configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// StorageConfig describes the storage root that holds every project's
// media files. All track locations are relative to AssetsPath.
type StorageConfig struct {
	AssetsPath      string `toml:"assets_path"`
	ThumbnailsPath  string `toml:"thumbnails_path"`
	MaxUploadSizeMB int64  `toml:"max_upload_size_mb"`
	WatchForChanges bool   `toml:"watch_for_changes"`
}

// MediaConfig contains media toolchain configuration
type MediaConfig struct {
	FFmpegPath           string `toml:"ffmpeg_path"`
	FFprobePath          string `toml:"ffprobe_path"`
	ThumbnailWidth       int    `toml:"thumbnail_width"`
	ThumbnailPlaceholder string `toml:"thumbnail_placeholder"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// GenerativeConfig contains generative-content (Freepik) configuration
type GenerativeConfig struct {
	Enabled             bool   `toml:"enabled"`
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
}

// AuthConfig contains access protection configuration. The server is
// single-user; when enabled, every API request requires a session obtained
// with the access password.
type AuthConfig struct {
	Enabled      bool   `toml:"enabled"`
	PasswordHash string `toml:"password_hash"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:           "./contentizer.db",
			MaxConnections: 10,
		},
		Storage: StorageConfig{
			AssetsPath:      "./assets",
			ThumbnailsPath:  "./assets/thumbnails",
			MaxUploadSizeMB: 512,
			WatchForChanges: true,
		},
		Media: MediaConfig{
			FFmpegPath:           "ffmpeg",
			FFprobePath:          "ffprobe",
			ThumbnailWidth:       1280,
			ThumbnailPlaceholder: "https://placehold.co/400",
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
		Generative: GenerativeConfig{
			Enabled:             false,
			APIKey:              "",
			BaseURL:             "https://api.freepik.com/v1",
			PollIntervalSeconds: 2,
			TimeoutSeconds:      600,
		},
		Ngrok: NgrokConfig{
			Enabled:   false,
			AuthToken: "",
			Domain:    "",
		},
		Auth: AuthConfig{
			Enabled:      false,
			PasswordHash: "",
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# Contentizer Video Project Server Configuration
# This file contains all configuration options for the Contentizer backend.
# Edit the values below to customize your server settings.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	// Validate storage config
	if c.Storage.AssetsPath == "" {
		return fmt.Errorf("storage assets path cannot be empty")
	}
	if c.Storage.ThumbnailsPath == "" {
		return fmt.Errorf("storage thumbnails path cannot be empty")
	}
	if c.Storage.MaxUploadSizeMB < 1 {
		return fmt.Errorf("max upload size must be at least 1 MB")
	}

	// Validate media config
	if c.Media.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path cannot be empty")
	}
	if c.Media.FFprobePath == "" {
		return fmt.Errorf("ffprobe path cannot be empty")
	}
	if c.Media.ThumbnailWidth < 1 {
		return fmt.Errorf("thumbnail width must be positive")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	// Validate generative config
	if c.Generative.Enabled {
		if c.Generative.BaseURL == "" {
			return fmt.Errorf("generative base URL cannot be empty when enabled")
		}
		if c.Generative.PollIntervalSeconds < 1 {
			return fmt.Errorf("generative poll interval must be at least 1 second")
		}
		if c.Generative.TimeoutSeconds < c.Generative.PollIntervalSeconds {
			return fmt.Errorf("generative timeout must be at least the poll interval")
		}
	}

	// Validate auth config
	if c.Auth.Enabled && c.Auth.PasswordHash == "" {
		return fmt.Errorf("auth password hash cannot be empty when auth is enabled")
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
