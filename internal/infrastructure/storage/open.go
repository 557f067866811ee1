package storage

import (
	"fmt"

	"github.com/mealscan/backend/config"
	"github.com/mealscan/backend/internal/domain"
)

// Open returns the meal repository selected by the store configuration
func Open(cfg config.StoreConfig, debug bool) (domain.MealRepository, error) {
	switch cfg.Type {
	case "sqlite":
		s, err := NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStorage(cfg.PostgresDSN, debug)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
