package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// VisionModel defines the interface for the model that estimates nutrition from a meal photo.
// It returns the raw response text; callers are expected to sanitize it.
type VisionModel interface {
	AnalyzeMealImage(ctx context.Context, image []byte, mimeType string, note string) (string, error)
}

// MealRepository defines the interface for meal persistence
type MealRepository interface {
	Save(ctx context.Context, meal *Meal) error
	GetByID(ctx context.Context, id string) (*Meal, error)
	List(ctx context.Context, filter MealFilter) ([]*Meal, error)
	ListIDs(ctx context.Context) ([]string, error)
	UpdateAnalysis(ctx context.Context, id string, analysis []byte) error
	Delete(ctx context.Context, id string) error
	Close() error
}
