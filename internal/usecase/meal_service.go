package usecase

import (
	"context"
	"fmt"

	"github.com/mealscan/backend/internal/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// MealService reads and removes stored meals
type MealService struct {
	meals domain.MealRepository
}

// NewMealService creates a new meal service
func NewMealService(meals domain.MealRepository) *MealService {
	return &MealService{meals: meals}
}

// GetMeal returns one meal or domain.ErrMealNotFound
func (s *MealService) GetMeal(ctx context.Context, id string) (*domain.Meal, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: meal id is required", domain.ErrInvalidRequest)
	}
	return s.meals.GetByID(ctx, id)
}

// ListMeals returns meals newest first. The limit defaults to 20 and is capped at 100.
func (s *MealService) ListMeals(ctx context.Context, filter domain.MealFilter) ([]*domain.Meal, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	return s.meals.List(ctx, filter)
}

// DeleteMeal removes a meal
func (s *MealService) DeleteMeal(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: meal id is required", domain.ErrInvalidRequest)
	}
	return s.meals.Delete(ctx, id)
}
