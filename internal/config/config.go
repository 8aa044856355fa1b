package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	ManifestPath   string        `envconfig:"MANIFEST_PATH" required:"true"`
	TargetDir      string        `envconfig:"TARGET_DIR" required:"true"`
	MaxParallel    int           `envconfig:"MAX_PARALLEL" default:"5"`
	SampleInterval time.Duration `envconfig:"SAMPLE_INTERVAL" default:"250ms"`
	HeaderTimeout  time.Duration `envconfig:"HEADER_TIMEOUT" default:"0s"`
	LogInterval    time.Duration `envconfig:"LOG_INTERVAL" default:"5s"`

	VerifyChecksums bool `envconfig:"VERIFY_CHECKSUMS" default:"true"`

	PutioToken  string `envconfig:"PUTIO_TOKEN"`
	SourceToken string `envconfig:"SOURCE_TOKEN"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`
	DBPath            string `envconfig:"DB_PATH" default:"transfers.db"`

	Telemetry struct {
		Enabled      bool          `split_words:"true" default:"true"`
		ServiceName  string        `split_words:"true" default:"batchdl"`
		OTLPEndpoint string        `envconfig:"OTLP_ENDPOINT"`
		OTLPInterval time.Duration `envconfig:"OTLP_INTERVAL" default:"30s"`
	}

	Web struct {
		Enabled         bool          `split_words:"true" default:"false"`
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9091"`
		Username        string        `split_words:"true"`
		Password        string        `split_words:"true"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the batch cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ManifestPath) == "" || strings.TrimSpace(c.TargetDir) == "" {
		return fmt.Errorf("MANIFEST_PATH and TARGET_DIR must not be empty")
	}

	if c.MaxParallel < 1 {
		return fmt.Errorf("MAX_PARALLEL must be at least 1, got %d", c.MaxParallel)
	}

	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive, got %s", c.SampleInterval)
	}

	if c.HeaderTimeout < 0 {
		return fmt.Errorf("HEADER_TIMEOUT must not be negative, got %s", c.HeaderTimeout)
	}

	if c.Web.Password != "" && c.Web.Username == "" {
		return fmt.Errorf("WEB_PASSWORD requires WEB_USERNAME")
	}

	return nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
