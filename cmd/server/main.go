package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mealscan/backend/config"
	httpDelivery "github.com/mealscan/backend/internal/delivery/http"
	"github.com/mealscan/backend/internal/domain"
	"github.com/mealscan/backend/internal/infrastructure/cache"
	"github.com/mealscan/backend/internal/infrastructure/gemini"
	"github.com/mealscan/backend/internal/infrastructure/storage"
	"github.com/mealscan/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireGemini(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debug := cfg.Server.Environment == "development"

	log.Printf("Starting MealScan Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache Type: %s (TTL %s)", cfg.Cache.Type, cfg.Cache.TTL)
	log.Printf("Store Type: %s", cfg.Store.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	cacheRepo, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer closeCache()

	meals, err := storage.Open(cfg.Store, debug)
	if err != nil {
		log.Fatalf("Failed to open meal store: %v", err)
	}
	defer meals.Close()

	geminiClient, err := gemini.NewClient(ctx, gemini.ClientConfig{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
		MaxOutputTokens:   cfg.Gemini.MaxOutputTokens,
		JSONMode:          cfg.Gemini.JSONMode,
		Timeout:           cfg.Gemini.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer geminiClient.Close()

	if debug {
		geminiClient.SetDebug(true)
		log.Printf("Gemini client debug mode enabled")
	}
	log.Printf("Gemini configured: model=%s rpm=%d json=%v", cfg.Gemini.Model, cfg.Gemini.RequestsPerMinute, cfg.Gemini.JSONMode)

	// Initialize usecase layer
	analysisService := usecase.NewAnalysisService(cacheRepo, geminiClient, meals, usecase.AnalysisServiceConfig{
		CacheTTL:      cfg.Cache.TTL,
		MaxAttempts:   cfg.Analysis.MaxAttempts,
		MaxImageBytes: cfg.Analysis.MaxImageBytes,
		Sanitize: usecase.SanitizeOptions{
			StripMarkdown:        cfg.Analysis.StripMarkdown,
			BlindQuoteRepair:     cfg.Analysis.BlindQuoteRepair,
			RequireNumericMacros: cfg.Analysis.RequireNumericMacros,
		},
	})
	mealService := usecase.NewMealService(meals)
	migrationService := usecase.NewMigrationService(meals)

	log.Printf("Analysis: attempts=%d, strip markdown=%v, blind quotes=%v, numeric macros=%v",
		cfg.Analysis.MaxAttempts,
		cfg.Analysis.StripMarkdown,
		cfg.Analysis.BlindQuoteRepair,
		cfg.Analysis.RequireNumericMacros)

	handler := httpDelivery.NewHandler(analysisService, mealService, migrationService)
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

func newCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, func(), error) {
	if cfg.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, "mealscan:")
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() { redisCache.Close() }, nil
	}

	memoryCache := cache.NewMemoryCache()
	return memoryCache, func() { memoryCache.Close() }, nil
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
