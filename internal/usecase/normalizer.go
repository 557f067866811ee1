package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mealscan/backend/internal/domain"
)

// NormalizeMealDocument consolidates nutrient lists into the root of the document.
// Lists are merged root > analysis > nutrients, keeping the first entry seen for
// each name. Both legacy keys are removed from their containers, and "nutrients"
// is removed when nothing else is left in it. The input is never modified; nil
// is returned unchanged.
func NormalizeMealDocument(doc *domain.MealDocument) *domain.MealDocument {
	if doc == nil {
		return nil
	}

	out := doc.Clone()

	var analysisMacros, analysisMicros, nutrientsMacros, nutrientsMicros []domain.NutrientEntry
	if out.Analysis != nil {
		analysisMacros, analysisMicros = out.Analysis.Macronutrients, out.Analysis.Micronutrients
	}
	if out.Nutrients != nil {
		nutrientsMacros, nutrientsMicros = out.Nutrients.Macronutrients, out.Nutrients.Micronutrients
	}

	out.Macronutrients = mergeNutrientEntries(out.Macronutrients, analysisMacros, nutrientsMacros)
	out.Micronutrients = mergeNutrientEntries(out.Micronutrients, analysisMicros, nutrientsMicros)
	delete(out.Extra, domain.KeyMacronutrients)
	delete(out.Extra, domain.KeyMicronutrients)

	out.Analysis.DropNutrientLists()
	out.Nutrients.DropNutrientLists()
	if out.Nutrients != nil && out.Nutrients.Len() == 0 {
		out.Nutrients = nil
	}

	return out
}

// mergeNutrientEntries concatenates lists in priority order, skipping any
// entry whose name was already seen. The result is never nil.
func mergeNutrientEntries(lists ...[]domain.NutrientEntry) []domain.NutrientEntry {
	merged := make([]domain.NutrientEntry, 0)
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, entry := range list {
			key := entry.IdentityKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry)
		}
	}
	return merged
}

// NormalizeMealJSON normalizes a stored analysis document. changed reports
// whether the normalized encoding differs from the input's. A JSON null or
// empty input is returned as-is.
func NormalizeMealJSON(raw []byte) ([]byte, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return raw, false, nil
	}

	var doc domain.MealDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, false, fmt.Errorf("decode meal document: %w", err)
	}

	before, err := json.Marshal(&doc)
	if err != nil {
		return nil, false, fmt.Errorf("encode meal document: %w", err)
	}

	after, err := json.Marshal(NormalizeMealDocument(&doc))
	if err != nil {
		return nil, false, fmt.Errorf("encode normalized meal document: %w", err)
	}

	return after, !bytes.Equal(before, after), nil
}
