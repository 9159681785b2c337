package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application's configuration
type Config struct {
	WebPort                  int           `mapstructure:"WEB_PORT"`
	LogLevel                 string        `mapstructure:"LOG_LEVEL"`
	GeminiAPIKey             string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel              string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL            string        `mapstructure:"GEMINI_BASE_URL"`
	GeminiRequestTimeout     time.Duration `mapstructure:"GEMINI_REQUEST_TIMEOUT"`
	MaxRetries               int           `mapstructure:"MAX_RETRIES"`
	RetryDelaySeconds        time.Duration `mapstructure:"RETRY_DELAY_SECONDS"`
	BackoffMaxSeconds        time.Duration `mapstructure:"BACKOFF_MAX_SECONDS"`
	BackoffJitterRatio       float64       `mapstructure:"BACKOFF_JITTER_RATIO"`
	StorageBackend           string        `mapstructure:"STORAGE_BACKEND"`
	BoltPath                 string        `mapstructure:"BOLT_PATH"`
	PostgresDSN              string        `mapstructure:"POSTGRES_DSN"`
	RenderCacheSize          int           `mapstructure:"RENDER_CACHE_SIZE"`
	RateLimitMessagesPerMin  int           `mapstructure:"RATE_LIMIT_MESSAGES_PER_MIN"`
	RateLimitBurstSize       int           `mapstructure:"RATE_LIMIT_BURST_SIZE"`
	RateLimitCleanupInterval time.Duration `mapstructure:"RATE_LIMIT_CLEANUP_INTERVAL"`
}

func Load(logger *zap.Logger) *Config {
	var config Config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")        // For running locally
	viper.AddConfigPath("../")      // For running from docker subdir
	viper.AddConfigPath("./config") // Common config folder
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("WEB_PORT", 8090)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	viper.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("GEMINI_REQUEST_TIMEOUT", 120)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("RETRY_DELAY_SECONDS", 2)
	viper.SetDefault("BACKOFF_MAX_SECONDS", 30)
	viper.SetDefault("BACKOFF_JITTER_RATIO", 0.1)
	viper.SetDefault("STORAGE_BACKEND", "bolt")
	viper.SetDefault("BOLT_PATH", "data/estate-agent.db")
	viper.SetDefault("POSTGRES_DSN", "")
	viper.SetDefault("RENDER_CACHE_SIZE", 512)
	viper.SetDefault("RATE_LIMIT_MESSAGES_PER_MIN", 20)
	viper.SetDefault("RATE_LIMIT_BURST_SIZE", 5)
	viper.SetDefault("RATE_LIMIT_CLEANUP_INTERVAL", 1)

	if err := viper.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("Could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		// Config unmarshaling is critical - fail fast during bootstrap
		if logger != nil {
			logger.Fatal("Unable to decode config into struct", zap.Error(err))
		} else {
			// Fallback if logger not available (should not happen in practice)
			fmt.Fprintf(os.Stderr, "FATAL: Unable to decode config into struct: %v\n", err)
			os.Exit(1)
		}
	}

	// Convert seconds/hours to proper time.Duration
	config.GeminiRequestTimeout = config.GeminiRequestTimeout * time.Second
	config.RetryDelaySeconds = config.RetryDelaySeconds * time.Second
	config.BackoffMaxSeconds = config.BackoffMaxSeconds * time.Second
	config.RateLimitCleanupInterval = config.RateLimitCleanupInterval * time.Hour

	return &config
}
