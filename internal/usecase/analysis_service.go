package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mealscan/backend/internal/domain"
)

const (
	defaultAnalysisCacheTTL = 24 * time.Hour
	defaultMaxAttempts      = 2
	defaultMaxImageBytes    = 8 << 20
)

// AnalysisServiceConfig holds configuration for the analysis service
type AnalysisServiceConfig struct {
	CacheTTL      time.Duration
	MaxAttempts   int
	MaxImageBytes int64
	Sanitize      SanitizeOptions
}

// AnalysisService turns meal photos into stored meals with a validated nutrition record
type AnalysisService struct {
	cache         domain.CacheRepository
	model         domain.VisionModel
	meals         domain.MealRepository
	cacheTTL      time.Duration
	maxAttempts   int
	maxImageBytes int64
	sanitize      SanitizeOptions
	now           func() time.Time
}

// NewAnalysisService creates a new analysis service with dependencies
func NewAnalysisService(
	cache domain.CacheRepository,
	model domain.VisionModel,
	meals domain.MealRepository,
	config AnalysisServiceConfig,
) *AnalysisService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = defaultAnalysisCacheTTL
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	maxImageBytes := config.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}

	return &AnalysisService{
		cache:         cache,
		model:         model,
		meals:         meals,
		cacheTTL:      cacheTTL,
		maxAttempts:   maxAttempts,
		maxImageBytes: maxImageBytes,
		sanitize:      config.Sanitize,
		now:           time.Now,
	}
}

// AnalyzeMeal estimates the nutrition of a meal photo and stores the result.
// Flow: validate -> check cache -> ask model -> sanitize (retry on parse errors) -> persist -> cache
func (s *AnalysisService) AnalyzeMeal(ctx context.Context, request *domain.AnalyzeRequest) (*domain.Meal, error) {
	if err := s.validateRequest(request); err != nil {
		return nil, err
	}

	digest := imageDigest(request.Image)
	cacheKey := s.generateCacheKey(digest, request.Note)

	record, err := s.getFromCache(ctx, cacheKey)
	if err != nil {
		record, err = s.analyzeWithRetry(ctx, request)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, cacheKey, record, s.cacheTTL); err != nil {
			log.Printf("[Analysis] Failed to cache record for %s: %v", digest[:12], err)
		}
	} else {
		log.Printf("[Analysis] Cache hit for image %s", digest[:12])
	}

	analysis, err := encodeAnalysis(record)
	if err != nil {
		return nil, err
	}

	now := s.now()
	meal := &domain.Meal{
		ID:          uuid.NewString(),
		UserID:      request.UserID,
		MealName:    record.MealName(),
		Note:        request.Note,
		ImageDigest: digest,
		Analysis:    analysis,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.meals.Save(ctx, meal); err != nil {
		return nil, fmt.Errorf("failed to save meal: %w", err)
	}

	return meal, nil
}

// SanitizeText runs the sanitizer with the service's options
func (s *AnalysisService) SanitizeText(text string) (domain.NutritionRecord, error) {
	return SanitizeNutritionJSON(text, s.sanitize)
}

func (s *AnalysisService) validateRequest(request *domain.AnalyzeRequest) error {
	if request == nil || len(request.Image) == 0 {
		return fmt.Errorf("%w: image is required", domain.ErrInvalidRequest)
	}
	if !strings.HasPrefix(request.MimeType, "image/") {
		return fmt.Errorf("%w: unsupported content type %q", domain.ErrInvalidRequest, request.MimeType)
	}
	if int64(len(request.Image)) > s.maxImageBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidRequest, s.maxImageBytes)
	}
	return nil
}

// analyzeWithRetry asks the model again whenever its answer cannot be sanitized
func (s *AnalysisService) analyzeWithRetry(ctx context.Context, request *domain.AnalyzeRequest) (domain.NutritionRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		text, err := s.model.AnalyzeMealImage(ctx, request.Image, request.MimeType, request.Note)
		if err != nil {
			return nil, err
		}

		record, err := SanitizeNutritionJSON(text, s.sanitize)
		if err == nil {
			return record, nil
		}

		var parseErr *domain.ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		log.Printf("[Analysis] Unusable model response (attempt %d/%d): %s", attempt, s.maxAttempts, parseErr.Kind())
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", domain.ErrAnalysisFailed, lastErr)
}

// generateCacheKey creates the cache key for a photo and note.
// Format: "analysis:{sha256 of image}" or "analysis:{sha256 of image}:{sha256 of note}"
func (s *AnalysisService) generateCacheKey(digest, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return "analysis:" + digest
	}
	noteSum := sha256.Sum256([]byte(note))
	return "analysis:" + digest + ":" + hex.EncodeToString(noteSum[:8])
}

// getFromCache retrieves a nutrition record from cache
func (s *AnalysisService) getFromCache(ctx context.Context, key string) (domain.NutritionRecord, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case domain.NutritionRecord:
		return v, nil
	case map[string]interface{}:
		// JSON-backed caches hand back plain maps
		return domain.NutritionRecord(v), nil
	default:
		return nil, domain.ErrCacheMiss
	}
}

// encodeAnalysis serializes a record in the consolidated nutrient shape
func encodeAnalysis(record domain.NutritionRecord) (json.RawMessage, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	normalized, _, err := NormalizeMealJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize analysis: %w", err)
	}
	return normalized, nil
}

func imageDigest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
