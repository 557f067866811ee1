package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mealscan/backend/internal/domain"
)

const (
	maxUploadBytes   = 16 << 20
	maxSanitizeBytes = 1 << 20
)

// MealAnalyzer turns photos and raw model text into nutrition records
type MealAnalyzer interface {
	AnalyzeMeal(ctx context.Context, request *domain.AnalyzeRequest) (*domain.Meal, error)
	SanitizeText(text string) (domain.NutritionRecord, error)
}

// MealStore reads and removes stored meals
type MealStore interface {
	GetMeal(ctx context.Context, id string) (*domain.Meal, error)
	ListMeals(ctx context.Context, filter domain.MealFilter) ([]*domain.Meal, error)
	DeleteMeal(ctx context.Context, id string) error
}

// MealMigrator rewrites stored analyses into the current nutrient shape
type MealMigrator interface {
	NormalizeStoredMeals(ctx context.Context, dryRun bool) (*domain.MigrationReport, error)
}

// Handler holds dependencies for HTTP handlers. Any of them may be nil, in
// which case the matching endpoints answer 503.
type Handler struct {
	analyzer MealAnalyzer
	meals    MealStore
	migrator MealMigrator
}

// NewHandler creates a new HTTP handler
func NewHandler(analyzer MealAnalyzer, meals MealStore, migrator MealMigrator) *Handler {
	return &Handler{
		analyzer: analyzer,
		meals:    meals,
		migrator: migrator,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "mealscan-backend",
		"version": "1.0.0",
	})
}

// AnalyzeMeal handles multipart meal photo uploads
func (h *Handler) AnalyzeMeal(c *gin.Context) {
	if h.analyzer == nil {
		notConfigured(c, "meal analysis")
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}

	meal, err := h.analyzer.AnalyzeMeal(c.Request.Context(), &domain.AnalyzeRequest{
		UserID:   c.PostForm("userId"),
		Note:     c.PostForm("note"),
		Image:    image,
		MimeType: mimeType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, meal)
}

// SanitizeResponse runs raw model text through the sanitizer and returns the record
func (h *Handler) SanitizeResponse(c *gin.Context) {
	if h.analyzer == nil {
		notConfigured(c, "meal analysis")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSanitizeBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}
	if len(body) > maxSanitizeBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body is too large"})
		return
	}

	record, err := h.analyzer.SanitizeText(string(body))
	if err != nil {
		var parseErr *domain.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": parseErr.Error(),
				"kind":  parseErr.Kind(),
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListMeals returns stored meals, newest first
func (h *Handler) ListMeals(c *gin.Context) {
	if h.meals == nil {
		notConfigured(c, "meal storage")
		return
	}

	filter := domain.MealFilter{UserID: c.Query("userId")}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	meals, err := h.meals.ListMeals(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meals": meals,
		"count": len(meals),
	})
}

// GetMeal returns a single meal
func (h *Handler) GetMeal(c *gin.Context) {
	if h.meals == nil {
		notConfigured(c, "meal storage")
		return
	}

	meal, err := h.meals.GetMeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, meal)
}

// DeleteMeal removes a meal
func (h *Handler) DeleteMeal(c *gin.Context) {
	if h.meals == nil {
		notConfigured(c, "meal storage")
		return
	}

	if err := h.meals.DeleteMeal(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// NormalizeMeals rewrites every stored analysis into the consolidated nutrient shape
func (h *Handler) NormalizeMeals(c *gin.Context) {
	if h.migrator == nil {
		notConfigured(c, "meal migration")
		return
	}

	dryRun, _ := strconv.ParseBool(c.Query("dryRun"))

	report, err := h.migrator.NormalizeStoredMeals(c.Request.Context(), dryRun)
	if err != nil {
		log.Printf("[Migration] Run aborted: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "normalization did not finish",
			"report": report,
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

func notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": what + " is not configured",
	})
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrMealNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meal not found"})
	case errors.Is(err, domain.ErrAnalysisFailed):
		body := gin.H{"error": domain.ErrAnalysisFailed.Error()}
		var parseErr *domain.ParseError
		if errors.As(err, &parseErr) {
			body["kind"] = parseErr.Kind()
		}
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, domain.ErrModelFailure):
		log.Printf("[Analysis] Model failure: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "meal analysis service unavailable, please retry"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		log.Printf("[HTTP] Unhandled error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
