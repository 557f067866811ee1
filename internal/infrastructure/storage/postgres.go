package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mealscan/backend/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mealRow is the gorm model for the meals table; the analysis document is kept in a jsonb column
type mealRow struct {
	ID          string         `gorm:"primaryKey;type:text"`
	UserID      string         `gorm:"type:text;not null;default:'';index:idx_meals_user_created,priority:1"`
	MealName    string         `gorm:"type:text;not null"`
	Note        string         `gorm:"type:text;not null;default:''"`
	ImageDigest string         `gorm:"type:text;not null;default:''"`
	Analysis    datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time      `gorm:"index:idx_meals_user_created,priority:2"`
	UpdatedAt   time.Time
}

func (mealRow) TableName() string {
	return "meals"
}

func toMealRow(meal *domain.Meal) *mealRow {
	return &mealRow{
		ID:          meal.ID,
		UserID:      meal.UserID,
		MealName:    meal.MealName,
		Note:        meal.Note,
		ImageDigest: meal.ImageDigest,
		Analysis:    datatypes.JSON(meal.Analysis),
		CreatedAt:   meal.CreatedAt,
		UpdatedAt:   meal.UpdatedAt,
	}
}

func (r *mealRow) toDomain() *domain.Meal {
	return &domain.Meal{
		ID:          r.ID,
		UserID:      r.UserID,
		MealName:    r.MealName,
		Note:        r.Note,
		ImageDigest: r.ImageDigest,
		Analysis:    []byte(r.Analysis),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// PostgresStorage persists meals through gorm
type PostgresStorage struct {
	db *gorm.DB
}

// NewPostgresStorage connects with the given DSN and migrates the meals table
func NewPostgresStorage(dsn string, debug bool) (*PostgresStorage, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&mealRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate meals table: %w", err)
	}

	return &PostgresStorage{db: db}, nil
}

// Close closes the underlying connection pool
func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save inserts a new meal
func (s *PostgresStorage) Save(ctx context.Context, meal *domain.Meal) error {
	if err := s.db.WithContext(ctx).Create(toMealRow(meal)).Error; err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}
	return nil
}

// GetByID loads a single meal
func (s *PostgresStorage) GetByID(ctx context.Context, id string) (*domain.Meal, error) {
	var row mealRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meal %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// List returns meals newest first, optionally restricted to one user
func (s *PostgresStorage) List(ctx context.Context, filter domain.MealFilter) ([]*domain.Meal, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []mealRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}

	meals := make([]*domain.Meal, 0, len(rows))
	for i := range rows {
		meals = append(meals, rows[i].toDomain())
	}
	return meals, nil
}

// ListIDs returns every meal id sorted by id
func (s *PostgresStorage) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&mealRow{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to query meal ids: %w", err)
	}
	return ids, nil
}

// UpdateAnalysis replaces the stored analysis document of one meal
func (s *PostgresStorage) UpdateAnalysis(ctx context.Context, id string, analysis []byte) error {
	res := s.db.WithContext(ctx).Model(&mealRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"analysis":   datatypes.JSON(analysis),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update meal %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrMealNotFound
	}
	return nil
}

// Delete removes a meal
func (s *PostgresStorage) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&mealRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete meal %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrMealNotFound
	}
	return nil
}
