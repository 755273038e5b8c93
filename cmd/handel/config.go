package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// errConfig marks invalid run settings.
var errConfig = errors.New("invalid configuration")

// =============================================================================
// Config Types
// =============================================================================

// Config holds the settings of one run.
type Config struct {
	Project   string          `mapstructure:"config"` // project file
	Env       string          `mapstructure:"env"`
	Since     string          `mapstructure:"since"`
	Output    string          `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Reference ReferenceConfig `mapstructure:"reference"`
	S3        S3Config        `mapstructure:"s3"`
	Volumes   VolumesConfig   `mapstructure:"volumes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host    string `mapstructure:"host"`
	Enabled bool   `mapstructure:"enabled"` // false skips local image lookup
}

// ReferenceConfig holds reference feed client configuration.
type ReferenceConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	JQPath  string        `mapstructure:"jq_path"`
}

// S3Config holds the object store used by s3:// volume sources.
type S3Config struct {
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// VolumesConfig holds volume initialisation settings.
type VolumesConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// =============================================================================
// Config Loading
// =============================================================================

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"config":     "config",
	"env":        "env",
	"since":      "since",
	"output":     "output",
	"log-format": "log.format",
}

// LoadConfig loads configuration from defaults, the environment and flags,
// in increasing precedence. flags may be nil.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("config", "handel.yml")
	v.SetDefault("env", "")
	v.SetDefault("since", "24h")
	v.SetDefault("output", "docker-compose.yml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.enabled", true)
	v.SetDefault("reference.timeout", "10s")
	v.SetDefault("reference.jq_path", "jq")
	v.SetDefault("s3.endpoint", "s3.amazonaws.com")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("volumes.enabled", true)

	// Enable environment variable overrides
	v.SetEnvPrefix("HANDEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, fmt.Errorf("%w: project file path is empty", errConfig)
	}
	if strings.TrimSpace(cfg.Output) == "" {
		return nil, fmt.Errorf("%w: output path is empty", errConfig)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to w; stdout carries the run summary.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
