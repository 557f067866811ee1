package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var configEnvVars = []string{
	"MEALSCAN_SERVER_PORT",
	"MEALSCAN_SERVER_ENVIRONMENT",
	"MEALSCAN_SERVER_ALLOWED_ORIGINS",
	"MEALSCAN_GEMINI_API_KEY",
	"MEALSCAN_GEMINI_MODEL",
	"MEALSCAN_GEMINI_REQUESTS_PER_MINUTE",
	"MEALSCAN_GEMINI_TIMEOUT",
	"MEALSCAN_GEMINI_JSON_MODE",
	"MEALSCAN_CACHE_TYPE",
	"MEALSCAN_CACHE_REDIS_URL",
	"MEALSCAN_CACHE_TTL",
	"MEALSCAN_STORE_TYPE",
	"MEALSCAN_STORE_SQLITE_PATH",
	"MEALSCAN_STORE_POSTGRES_DSN",
	"MEALSCAN_ANALYSIS_MAX_ATTEMPTS",
	"MEALSCAN_ANALYSIS_BLIND_QUOTE_REPAIR",
	"MEALSCAN_ANALYSIS_REQUIRE_NUMERIC_MACROS",
	"MEALSCAN_RATELIMIT_PER_IP",
}

func cleanupEnv() {
	for _, key := range configEnvVars {
		os.Unsetenv(key)
	}
}

// inTempDir runs the test from an empty directory so no .env or config.yaml is picked up
func inTempDir(t *testing.T) {
	t.Helper()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { os.Chdir(originalDir) })
}

func TestLoad(t *testing.T) {
	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		inTempDir(t)
		cleanupEnv()
		os.Setenv("MEALSCAN_GEMINI_API_KEY", "test-key")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Gemini.Model != "gemini-1.5-flash" {
			t.Errorf("Gemini.Model = %s, want gemini-1.5-flash", cfg.Gemini.Model)
		}
		if cfg.Gemini.Timeout != 60*time.Second {
			t.Errorf("Gemini.Timeout = %v, want 60s", cfg.Gemini.Timeout)
		}
		if !cfg.Gemini.JSONMode {
			t.Error("Gemini.JSONMode = false, want true")
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
		if cfg.Store.Type != "sqlite" || cfg.Store.SQLitePath != "mealscan.db" {
			t.Errorf("Store = %+v, want sqlite at mealscan.db", cfg.Store)
		}
		if cfg.Analysis.MaxAttempts != 2 {
			t.Errorf("Analysis.MaxAttempts = %d, want 2", cfg.Analysis.MaxAttempts)
		}
		if !cfg.Analysis.StripMarkdown || cfg.Analysis.BlindQuoteRepair || cfg.Analysis.RequireNumericMacros {
			t.Errorf("Analysis = %+v, want markdown stripping only", cfg.Analysis)
		}
		if cfg.RateLimit.PerIP != 30 {
			t.Errorf("RateLimit.PerIP = %d, want 30", cfg.RateLimit.PerIP)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		inTempDir(t)
		cleanupEnv()
		os.Setenv("MEALSCAN_SERVER_PORT", "9090")
		os.Setenv("MEALSCAN_SERVER_ENVIRONMENT", "production")
		os.Setenv("MEALSCAN_GEMINI_API_KEY", "custom-api-key")
		os.Setenv("MEALSCAN_GEMINI_MODEL", "gemini-1.5-pro")
		os.Setenv("MEALSCAN_GEMINI_REQUESTS_PER_MINUTE", "60")
		os.Setenv("MEALSCAN_CACHE_TYPE", "redis")
		os.Setenv("MEALSCAN_CACHE_REDIS_URL", "redis://localhost:6379")
		os.Setenv("MEALSCAN_CACHE_TTL", "1h")
		os.Setenv("MEALSCAN_STORE_TYPE", "postgres")
		os.Setenv("MEALSCAN_STORE_POSTGRES_DSN", "postgres://localhost/mealscan")
		os.Setenv("MEALSCAN_ANALYSIS_MAX_ATTEMPTS", "4")
		os.Setenv("MEALSCAN_ANALYSIS_REQUIRE_NUMERIC_MACROS", "true")
		os.Setenv("MEALSCAN_RATELIMIT_PER_IP", "200")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.Gemini.APIKey != "custom-api-key" {
			t.Errorf("Gemini.APIKey = %s, want custom-api-key", cfg.Gemini.APIKey)
		}
		if cfg.Gemini.Model != "gemini-1.5-pro" {
			t.Errorf("Gemini.Model = %s, want gemini-1.5-pro", cfg.Gemini.Model)
		}
		if cfg.Gemini.RequestsPerMinute != 60 {
			t.Errorf("Gemini.RequestsPerMinute = %d, want 60", cfg.Gemini.RequestsPerMinute)
		}
		if cfg.Cache.Type != "redis" {
			t.Errorf("Cache.Type = %s, want redis", cfg.Cache.Type)
		}
		if cfg.Cache.RedisURL != "redis://localhost:6379" {
			t.Errorf("Cache.RedisURL = %s, want redis://localhost:6379", cfg.Cache.RedisURL)
		}
		if cfg.Cache.TTL != time.Hour {
			t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
		}
		if cfg.Store.PostgresDSN != "postgres://localhost/mealscan" {
			t.Errorf("Store.PostgresDSN = %s, want postgres://localhost/mealscan", cfg.Store.PostgresDSN)
		}
		if cfg.Analysis.MaxAttempts != 4 {
			t.Errorf("Analysis.MaxAttempts = %d, want 4", cfg.Analysis.MaxAttempts)
		}
		if !cfg.Analysis.RequireNumericMacros {
			t.Error("Analysis.RequireNumericMacros = false, want true")
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
	})

	t.Run("reads the API key from a .env file", func(t *testing.T) {
		inTempDir(t)
		cleanupEnv()
		defer cleanupEnv()

		if err := os.WriteFile(".env", []byte("MEALSCAN_GEMINI_API_KEY=from-dotenv\n"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Gemini.APIKey != "from-dotenv" {
			t.Errorf("Gemini.APIKey = %s, want from-dotenv", cfg.Gemini.APIKey)
		}
	})

	t.Run("reads a config file", func(t *testing.T) {
		inTempDir(t)
		cleanupEnv()
		os.Setenv("MEALSCAN_GEMINI_API_KEY", "test-key")
		defer cleanupEnv()

		yaml := "server:\n  port: \"7070\"\n  allowed_origins:\n    - https://app.example.com\nanalysis:\n  blind_quote_repair: true\n"
		if err := os.WriteFile("config.yaml", []byte(yaml), 0644); err != nil {
			t.Fatalf("Failed to create config.yaml: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Server.Port != "7070" {
			t.Errorf("Server.Port = %s, want 7070", cfg.Server.Port)
		}
		if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
			t.Errorf("Server.AllowedOrigins = %v, want [https://app.example.com]", cfg.Server.AllowedOrigins)
		}
		if !cfg.Analysis.BlindQuoteRepair {
			t.Error("Analysis.BlindQuoteRepair = false, want true")
		}
	})

	t.Run("loads without API key", func(t *testing.T) {
		inTempDir(t)
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Gemini.APIKey != "" {
			t.Errorf("Gemini.APIKey = %s, want empty", cfg.Gemini.APIKey)
		}

		err = cfg.RequireGemini()
		if err == nil {
			t.Fatal("RequireGemini() error = nil, want error for missing API key")
		}
		if err.Error() != "Gemini API key is required (set MEALSCAN_GEMINI_API_KEY)" {
			t.Errorf("RequireGemini() error = %v, want 'Gemini API key is required'", err)
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		inTempDir(t)
		cleanupEnv()
		os.Setenv("MEALSCAN_GEMINI_API_KEY", "test-key")
		os.Setenv("MEALSCAN_CACHE_TYPE", "invalid")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation when redis URL missing for redis cache", func(t *testing.T) {
		inTempDir(t)
		cleanupEnv()
		os.Setenv("MEALSCAN_GEMINI_API_KEY", "test-key")
		os.Setenv("MEALSCAN_CACHE_TYPE", "redis")
		defer cleanupEnv()

		if _, err := Load(); err == nil {
			t.Error("Load() error = nil, want error for missing Redis URL")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		inTempDir(t)

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables and skips comments", func(t *testing.T) {
		inTempDir(t)

		envContent := `
# Comment line
TEST_VAR_1=value1

TEST_VAR_2=value2
# TEST_COMMENTED=should_not_load
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_COMMENTED")
		defer func() {
			os.Unsetenv("TEST_VAR_1")
			os.Unsetenv("TEST_VAR_2")
		}()

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		inTempDir(t)

		os.Setenv("TEST_OVERRIDE", "existing-value")
		defer os.Unsetenv("TEST_OVERRIDE")

		if err := os.WriteFile(".env", []byte("TEST_OVERRIDE=new-value"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})
}

func validConfig() *Config {
	return &Config{
		Gemini:   GeminiConfig{APIKey: "test-key"},
		Cache:    CacheConfig{Type: "memory"},
		Store:    StoreConfig{Type: "sqlite", SQLitePath: "meals.db"},
		Analysis: AnalysisConfig{MaxAttempts: 1},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"valid", func(cfg *Config) {}, ""},
		{"missing API key", func(cfg *Config) { cfg.Gemini.APIKey = "" }, ""},
		{"invalid cache type", func(cfg *Config) { cfg.Cache.Type = "invalid-type" }, "cache type"},
		{"redis with URL", func(cfg *Config) {
			cfg.Cache = CacheConfig{Type: "redis", RedisURL: "redis://localhost:6379"}
		}, ""},
		{"redis without URL", func(cfg *Config) { cfg.Cache.Type = "redis" }, "Redis URL"},
		{"invalid store type", func(cfg *Config) { cfg.Store.Type = "mongo" }, "store type"},
		{"sqlite without path", func(cfg *Config) { cfg.Store.SQLitePath = "" }, "SQLite path"},
		{"postgres without DSN", func(cfg *Config) { cfg.Store.Type = "postgres" }, "Postgres DSN"},
		{"postgres with DSN", func(cfg *Config) {
			cfg.Store = StoreConfig{Type: "postgres", PostgresDSN: "postgres://localhost/mealscan"}
		}, ""},
		{"zero attempts", func(cfg *Config) { cfg.Analysis.MaxAttempts = 0 }, "max attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRequireGemini(t *testing.T) {
	cfg := validConfig()
	if err := cfg.RequireGemini(); err != nil {
		t.Errorf("RequireGemini() error = %v, want nil", err)
	}

	cfg.Gemini.APIKey = ""
	if err := cfg.RequireGemini(); err == nil {
		t.Error("RequireGemini() error = nil, want error for missing API key")
	}
}
