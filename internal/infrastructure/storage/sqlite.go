package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mealscan/backend/internal/domain"
)

// SQLiteStorage persists meals in a single SQLite table; the analysis document is stored as JSON text
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at dbPath and ensures the schema exists
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS meals (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL DEFAULT '',
        meal_name TEXT NOT NULL,
        note TEXT NOT NULL DEFAULT '',
        image_digest TEXT NOT NULL DEFAULT '',
        analysis TEXT NOT NULL,
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_meals_user_created ON meals(user_id, created_at);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Save inserts a new meal
func (s *SQLiteStorage) Save(ctx context.Context, meal *domain.Meal) error {
	query := `
        INSERT INTO meals (id, user_id, meal_name, note, image_digest, analysis, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		meal.ID, meal.UserID, meal.MealName, meal.Note, meal.ImageDigest, string(meal.Analysis),
		formatTime(meal.CreatedAt), formatTime(meal.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}
	return nil
}

// GetByID loads a single meal
func (s *SQLiteStorage) GetByID(ctx context.Context, id string) (*domain.Meal, error) {
	query := `
        SELECT id, user_id, meal_name, note, image_digest, analysis, created_at, updated_at
        FROM meals
        WHERE id = ?
    `
	meal, err := scanMeal(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meal %s: %w", id, err)
	}
	return meal, nil
}

// List returns meals newest first, optionally restricted to one user
func (s *SQLiteStorage) List(ctx context.Context, filter domain.MealFilter) ([]*domain.Meal, error) {
	query := `
        SELECT id, user_id, meal_name, note, image_digest, analysis, created_at, updated_at
        FROM meals
        WHERE 1=1
    `
	args := []interface{}{}

	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // no limit
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	meals := []*domain.Meal{}
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		meals = append(meals, meal)
	}

	return meals, rows.Err()
}

// ListIDs returns every meal id sorted by id
func (s *SQLiteStorage) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM meals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan meal id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// UpdateAnalysis replaces the stored analysis document of one meal
func (s *SQLiteStorage) UpdateAnalysis(ctx context.Context, id string, analysis []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meals SET analysis = ?, updated_at = ? WHERE id = ?`,
		string(analysis), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update meal %s: %w", id, err)
	}
	return requireAffected(res)
}

// Delete removes a meal
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meal %s: %w", id, err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeal(row rowScanner) (*domain.Meal, error) {
	meal := &domain.Meal{}
	var analysis, createdAtStr, updatedAtStr string

	err := row.Scan(&meal.ID, &meal.UserID, &meal.MealName, &meal.Note, &meal.ImageDigest,
		&analysis, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	meal.Analysis = []byte(analysis)
	if meal.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if meal.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return meal, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrMealNotFound
	}
	return nil
}

// formatTime stores UTC timestamps with fixed-width fractions so they sort lexically
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
