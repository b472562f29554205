// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pdflens/internal/logger"
)

// EnvPrefix is prepended to every environment override, e.g. PDFLENS_SERVER_PORT
const EnvPrefix = "PDFLENS"

// Config holds the pdflens service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Log        LogConfig        `mapstructure:"log"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Host       string        `mapstructure:"host" validate:"required"`
	Port       int           `mapstructure:"port" validate:"min=1,max=65535"`
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"min=1m"`
}

// EngineConfig selects the PDF engine
type EngineConfig struct {
	Name string `mapstructure:"name" validate:"oneof=pdf mupdf"`
}

// UploadConfig bounds what the loader accepts
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes" validate:"min=1024"`
}

// ExtractionConfig tunes a single extraction run. Zero timeout means none.
type ExtractionConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// NotifyConfig toggles desktop notifications
type NotifyConfig struct {
	Desktop bool `mapstructure:"desktop"`
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks field constraints
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// Loader reads the config file through its own viper instance so it can be watched later
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader with defaults and environment overrides installed
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.session_ttl", "30m")
	v.SetDefault("engine.name", "pdf")
	v.SetDefault("upload.max_bytes", 64<<20)
	v.SetDefault("extraction.timeout", "0s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("notify.desktop", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load loads configuration from file and environment.
// An empty configPath means ~/.pdflens/config.yaml; a missing file is generated with defaults.
func Load(configPath string) (*Config, *Loader, error) {
	loadDotEnv(".env")

	l := NewLoader()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".pdflens", "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := generateDefaultConfig(configPath); err != nil {
			return nil, nil, fmt.Errorf("failed to generate default config: %w", err)
		}
		logger.Printf("Generated default config at %s", configPath)
	}

	l.v.SetConfigFile(configPath)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

// decode unmarshals and validates the current viper state
func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Watch calls onChange with the re-read config each time the file changes.
// Invalid edits are logged and skipped so the running config stays in place.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			logger.Warnf("Ignoring config change in %s: %v", e.Name, err)
			return
		}
		logger.Printf("Config reloaded from %s", e.Name)
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// ApplyCLIFlags applies command-line flags to override config values
func ApplyCLIFlags(cfg *Config, port int, engineName string) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if engineName != "" {
		cfg.Engine.Name = engineName
	}
}

// loadDotEnv loads KEY=VALUE pairs into the environment; existing variables win
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Failed to load %s: %v", path, err)
	}
}

// generateDefaultConfig creates a default configuration file
func generateDefaultConfig(configFile string) error {
	defaultConfig := `# pdflens configuration

server:
  host: "127.0.0.1"   # Interface the web UI listens on
  port: 9090          # Web UI port
  session_ttl: "30m"  # Idle views are dropped after this long

engine:
  name: "pdf"         # pdf (pure Go) or mupdf (go-fitz)

upload:
  max_bytes: 67108864 # Largest accepted PDF

extraction:
  timeout: "0s"       # 0 disables the timeout

log:
  level: "info"       # debug, info, warn, error
  file: ""            # Optional log file, appended to

notify:
  desktop: false      # Desktop notification when an extraction finishes
`

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(configFile, []byte(defaultConfig), 0644)
}
