package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/mealscan/backend/internal/domain"
)

// MigrationService rewrites stored analyses into the consolidated nutrient shape
type MigrationService struct {
	meals domain.MealRepository
}

// NewMigrationService creates a new migration service
func NewMigrationService(meals domain.MealRepository) *MigrationService {
	return &MigrationService{meals: meals}
}

// NormalizeStoredMeals normalizes every stored analysis one meal at a time.
// Failures on a single meal are recorded in the report and the run continues.
// In dry-run mode nothing is written back.
func (s *MigrationService) NormalizeStoredMeals(ctx context.Context, dryRun bool) (*domain.MigrationReport, error) {
	report := &domain.MigrationReport{DryRun: dryRun}

	ids, err := s.meals.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list meals: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			log.Printf("[Migration] Stopped after %d of %d meals: %v", report.Scanned, len(ids), err)
			return report, err
		}
		report.Scanned++

		changed, err := s.normalizeMeal(ctx, id, dryRun)
		if err != nil {
			log.Printf("[Migration] Meal %s failed: %v", id, err)
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, id)
			continue
		}
		if changed {
			report.Updated++
		} else {
			report.Unchanged++
		}
	}

	log.Printf("[Migration] Done: scanned=%d updated=%d unchanged=%d failed=%d dryRun=%t",
		report.Scanned, report.Updated, report.Unchanged, report.Failed, dryRun)
	return report, nil
}

func (s *MigrationService) normalizeMeal(ctx context.Context, id string, dryRun bool) (bool, error) {
	meal, err := s.meals.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	normalized, changed, err := NormalizeMealJSON(meal.Analysis)
	if err != nil {
		return false, err
	}
	if !changed || dryRun {
		return changed, nil
	}

	if err := s.meals.UpdateAnalysis(ctx, id, normalized); err != nil {
		return false, err
	}
	return true, nil
}
