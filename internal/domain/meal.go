package domain

import (
	"encoding/json"
	"time"
)

// RequiredNutritionFields lists the keys every sanitized model response must carry
var RequiredNutritionFields = []string{
	"mealName",
	"calories",
	"protein",
	"fat",
	"carbs",
	"macronutrients",
	"micronutrients",
	"benefits",
	"concerns",
}

// NutritionRecord is a validated nutrition estimate exactly as the model returned it.
// Values are not coerced: numbers decode as float64, arrays as []interface{}.
type NutritionRecord map[string]interface{}

// MealName returns the mealName field, or "" when it is not a string
func (r NutritionRecord) MealName() string {
	name, _ := r["mealName"].(string)
	return name
}

// Number returns a numeric field and whether it was a JSON number
func (r NutritionRecord) Number(key string) (float64, bool) {
	v, ok := r[key].(float64)
	return v, ok
}

// Nutrient represents a single named quantity within a macro or micronutrient list
type Nutrient struct {
	Name              string   `json:"name"`
	Amount            float64  `json:"amount"`
	Unit              string   `json:"unit"`
	PercentDailyValue *float64 `json:"percentDailyValue,omitempty"`
	Description       string   `json:"description,omitempty"`
}

// Meal is a logged meal with its stored nutrition analysis
type Meal struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId,omitempty"`
	MealName    string          `json:"mealName"`
	Note        string          `json:"note,omitempty"`
	ImageDigest string          `json:"imageDigest,omitempty"`
	Analysis    json.RawMessage `json:"analysis"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MealFilter narrows a meal listing
type MealFilter struct {
	UserID string
	Limit  int
}

// AnalyzeRequest represents a meal photo submitted for analysis
type AnalyzeRequest struct {
	UserID   string
	Note     string
	Image    []byte
	MimeType string
}

// MigrationReport summarizes one bulk normalization run over stored meals
type MigrationReport struct {
	Scanned   int      `json:"scanned"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds,omitempty"`
	DryRun    bool     `json:"dryRun"`
}
