package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Gemini    GeminiConfig
	Cache     CacheConfig
	Store     StoreConfig
	Analysis  AnalysisConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxOutputTokens   int32         `mapstructure:"max_output_tokens"`
	JSONMode          bool          `mapstructure:"json_mode"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig holds meal storage configuration
type StoreConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// AnalysisConfig holds settings for turning model output into nutrition records
type AnalysisConfig struct {
	MaxAttempts          int   `mapstructure:"max_attempts"`
	MaxImageBytes        int64 `mapstructure:"max_image_bytes"`
	StripMarkdown        bool  `mapstructure:"strip_markdown"`
	BlindQuoteRepair     bool  `mapstructure:"blind_quote_repair"`
	RequireNumericMacros bool  `mapstructure:"require_numeric_macros"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// Load loads configuration from the .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mealscan/")

	// MEALSCAN_GEMINI_API_KEY -> gemini.api_key
	v.SetEnvPrefix("MEALSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values. Every key needs a default so
// that AutomaticEnv values are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.requests_per_minute", 15)
	v.SetDefault("gemini.timeout", "60s")
	v.SetDefault("gemini.max_output_tokens", 2048)
	v.SetDefault("gemini.json_mode", true)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	// Store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite_path", "mealscan.db")
	v.SetDefault("store.postgres_dsn", "")

	// Analysis defaults
	v.SetDefault("analysis.max_attempts", 2)
	v.SetDefault("analysis.max_image_bytes", 8<<20)
	v.SetDefault("analysis.strip_markdown", true)
	v.SetDefault("analysis.blind_quote_repair", false)
	v.SetDefault("analysis.require_numeric_macros", false)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 30)
}

// RequireGemini reports an error when no Gemini API key is configured.
// Only commands that call the model need it.
func (c *Config) RequireGemini() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("Gemini API key is required (set MEALSCAN_GEMINI_API_KEY)")
	}
	return nil
}

// validate validates the configuration shared by every command
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	switch config.Store.Type {
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("SQLite path is required when store type is 'sqlite'")
		}
	case "postgres":
		if config.Store.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required when store type is 'postgres'")
		}
	default:
		return fmt.Errorf("store type must be 'sqlite' or 'postgres', got: %s", config.Store.Type)
	}

	if config.Analysis.MaxAttempts < 1 {
		return fmt.Errorf("analysis max attempts must be at least 1, got: %d", config.Analysis.MaxAttempts)
	}

	return nil
}
