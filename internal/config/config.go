// Package config provides YAML-based configuration for the intake service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/whenitworks/backend/internal/intake"
	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Upload   UploadConfig   `yaml:"upload"`
	Session  SessionConfig  `yaml:"session"`
	App      AppInfo        `yaml:"app"`
	Advanced AdvancedConfig `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int      `yaml:"port"`
	BindAddress          string   `yaml:"bind_address"`
	AllowOrigins         []string `yaml:"allow_origins"`
	ReadTimeout          int      `yaml:"read_timeout_seconds"`
	WriteTimeout         int      `yaml:"write_timeout_seconds"`
	IdleTimeout          int      `yaml:"idle_timeout_seconds"`
	BodyLimit            string   `yaml:"body_limit"`
	EnableRequestLogging bool     `yaml:"enable_request_logging"`
}

// UploadConfig controls which files the intake accepts
type UploadConfig struct {
	AcceptedFileTypes []string `yaml:"accepted_file_types"`
	MaxFileSize       int64    `yaml:"max_file_size"`
}

// SessionConfig controls page session lifetime
type SessionConfig struct {
	TimeoutMinutes         int    `yaml:"timeout_minutes"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes"`
	MaxSessions            int    `yaml:"max_sessions"`
	CookieName             string `yaml:"cookie_name"`
}

// AppInfo is shown on the page and reported by the API
type AppInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Tagline string `yaml:"tagline"`
}

// AdvancedConfig contains tuning options
type AdvancedConfig struct {
	LogLevel                string `yaml:"log_level"`
	EnableMetrics           bool   `yaml:"enable_metrics"`
	WebSocketMaxMessageSize int    `yaml:"websocket_max_message_kb"`
	WebSocketSelectsPerSec  int    `yaml:"websocket_selects_per_second"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                 8089,
			BindAddress:          "0.0.0.0",
			AllowOrigins:         []string{"*"},
			ReadTimeout:          30,
			WriteTimeout:         30,
			IdleTimeout:          120,
			BodyLimit:            "64M",
			EnableRequestLogging: true,
		},
		Upload: UploadConfig{
			AcceptedFileTypes: []string{".ics"},
			MaxFileSize:       intake.DefaultMaxFileSize,
		},
		Session: SessionConfig{
			TimeoutMinutes:         30,
			CleanupIntervalMinutes: 5,
			MaxSessions:            1000,
			CookieName:             "wiw_session",
		},
		App: AppInfo{
			Name:    "WhenItWorks",
			Version: "1.0.0",
			Tagline: "Find a time that works",
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			EnableMetrics:           true,
			WebSocketMaxMessageSize: 16384,
			WebSocketSelectsPerSec:  4,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file is created
// with the defaults. A .env file next to the config is loaded before
// environment overrides are applied; variables already set win.
func LoadConfig(configPath string) (*AppConfig, error) {
	if configPath == "" {
		return nil, errors.New("config path is empty")
	}

	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		log.Infof("[Config] Created default config at %s", configPath)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	config.applyEnvironmentOverrides()
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration as YAML
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	header := []byte("# WhenItWorks configuration\n# This file is auto-generated on first run\n\n")
	if err := os.WriteFile(configPath, append(header, output...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if addr := os.Getenv("WIW_BIND_ADDRESS"); addr != "" {
		c.Server.BindAddress = addr
	}

	if size := os.Getenv("WIW_MAX_FILE_SIZE"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			c.Upload.MaxFileSize = n
		}
	}

	if types := os.Getenv("WIW_ACCEPTED_FILE_TYPES"); types != "" {
		c.Upload.AcceptedFileTypes = strings.Split(types, ",")
	}

	if level := os.Getenv("WIW_LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// normalize fills zero values left by partial config files
func (c *AppConfig) normalize() {
	def := DefaultConfig()
	if c.Server.BindAddress == "" {
		c.Server.BindAddress = def.Server.BindAddress
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = def.Server.BodyLimit
	}
	if c.Session.TimeoutMinutes <= 0 {
		c.Session.TimeoutMinutes = def.Session.TimeoutMinutes
	}
	if c.Session.CleanupIntervalMinutes <= 0 {
		c.Session.CleanupIntervalMinutes = def.Session.CleanupIntervalMinutes
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = def.Session.CookieName
	}
	if c.App.Name == "" {
		c.App.Name = def.App.Name
	}
	if c.Advanced.WebSocketMaxMessageSize <= 0 {
		c.Advanced.WebSocketMaxMessageSize = def.Advanced.WebSocketMaxMessageSize
	}
	if c.Advanced.WebSocketSelectsPerSec <= 0 {
		c.Advanced.WebSocketSelectsPerSec = def.Advanced.WebSocketSelectsPerSec
	}
}

// Validate rejects settings the service cannot run with
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("invalid max_file_size %d: must be positive", c.Upload.MaxFileSize)
	}
	if _, ok := logLevels[strings.ToLower(c.Advanced.LogLevel)]; !ok && c.Advanced.LogLevel != "" {
		return fmt.Errorf("unknown log_level %q", c.Advanced.LogLevel)
	}
	return nil
}

// Policy builds the intake validation policy from the upload section
func (c *AppConfig) Policy() (intake.Policy, error) {
	return intake.NewPolicy(c.Upload.AcceptedFileTypes, c.Upload.MaxFileSize)
}

var logLevels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// LogLevel maps advanced.log_level to a gommon level, defaulting to INFO
func (c *AppConfig) LogLevel() log.Lvl {
	if lvl, ok := logLevels[strings.ToLower(c.Advanced.LogLevel)]; ok {
		return lvl
	}
	return log.INFO
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
