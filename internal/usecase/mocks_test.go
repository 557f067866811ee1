package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mealscan/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string]interface{}
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockVisionModel replays canned responses in order; the last one repeats
type MockVisionModel struct {
	responses []string
	err       error
	calls     int
	lastNote  string
}

func NewMockVisionModel(responses ...string) *MockVisionModel {
	return &MockVisionModel{responses: responses}
}

func (m *MockVisionModel) AnalyzeMealImage(ctx context.Context, image []byte, mimeType string, note string) (string, error) {
	m.calls++
	m.lastNote = note
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", errors.New("no canned response")
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// MockMealRepository is an in-memory domain.MealRepository
type MockMealRepository struct {
	mu          sync.Mutex
	meals       map[string]*domain.Meal
	saveError   error
	listError   error
	getErrors   map[string]error
	updateError error
	updates     int
	lastFilter  domain.MealFilter
}

func NewMockMealRepository(meals ...*domain.Meal) *MockMealRepository {
	m := &MockMealRepository{
		meals:     make(map[string]*domain.Meal),
		getErrors: make(map[string]error),
	}
	for _, meal := range meals {
		m.meals[meal.ID] = meal
	}
	return m
}

func (m *MockMealRepository) Save(ctx context.Context, meal *domain.Meal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.meals[meal.ID] = meal
	return nil
}

func (m *MockMealRepository) GetByID(ctx context.Context, id string) (*domain.Meal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getErrors[id]; err != nil {
		return nil, err
	}
	meal, ok := m.meals[id]
	if !ok {
		return nil, domain.ErrMealNotFound
	}
	return meal, nil
}

func (m *MockMealRepository) List(ctx context.Context, filter domain.MealFilter) ([]*domain.Meal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	if m.listError != nil {
		return nil, m.listError
	}
	meals := []*domain.Meal{}
	for _, meal := range m.meals {
		if filter.UserID == "" || meal.UserID == filter.UserID {
			meals = append(meals, meal)
		}
	}
	sort.Slice(meals, func(i, j int) bool { return meals[i].CreatedAt.After(meals[j].CreatedAt) })
	if filter.Limit > 0 && len(meals) > filter.Limit {
		meals = meals[:filter.Limit]
	}
	return meals, nil
}

func (m *MockMealRepository) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	ids := make([]string, 0, len(m.meals))
	for id := range m.meals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockMealRepository) UpdateAnalysis(ctx context.Context, id string, analysis []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return m.updateError
	}
	meal, ok := m.meals[id]
	if !ok {
		return domain.ErrMealNotFound
	}
	m.updates++
	meal.Analysis = append([]byte(nil), analysis...)
	return nil
}

func (m *MockMealRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meals[id]; !ok {
		return domain.ErrMealNotFound
	}
	delete(m.meals, id)
	return nil
}

func (m *MockMealRepository) Close() error {
	return nil
}
