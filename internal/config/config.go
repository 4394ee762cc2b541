package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	CardSource CardSourceConfig `yaml:"card_source" mapstructure:"card_source"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Retention  RetentionConfig  `yaml:"retention" mapstructure:"retention"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the field classifier.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// Timeout returns the per-call classifier deadline.
func (c AnthropicConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OCRConfig configures the text extraction engine.
type OCRConfig struct {
	Engine    string   `yaml:"engine" mapstructure:"engine"`
	Languages []string `yaml:"languages" mapstructure:"languages"`
}

// CardSourceConfig configures fetching card images by URL.
type CardSourceConfig struct {
	TimeoutSecs  int   `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxSizeBytes int64 `yaml:"max_size_bytes" mapstructure:"max_size_bytes"`
}

// BatchConfig configures backlog draining.
type BatchConfig struct {
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
}

// RetentionConfig configures terminal-job cleanup.
type RetentionConfig struct {
	JobMaxAgeDays int `yaml:"job_max_age_days" mapstructure:"job_max_age_days"`
}

// ServerConfig configures the admin HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// AuditConfig configures the activity log.
type AuditConfig struct {
	Actor string `yaml:"actor" mapstructure:"actor"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadscan.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.timeout_secs", 10)
	v.SetDefault("anthropic.max_attempts", 2)
	v.SetDefault("anthropic.requests_per_sec", 5)
	v.SetDefault("ocr.engine", "tesseract")
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("card_source.timeout_secs", 30)
	v.SetDefault("card_source.max_size_bytes", 10*1024*1024)
	v.SetDefault("batch.max_concurrent_jobs", 4)
	v.SetDefault("retention.job_max_age_days", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("audit.actor", "leadscan")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
