package gemini

import (
	"strings"
)

const systemInstruction = `You are a nutrition analyst. You look at photos of meals and estimate their nutritional content. You always answer with a single JSON object and nothing else.`

const analysisPromptTemplate = `Analyze the meal in this photo and estimate its nutrition for the whole portion shown.

Respond with one JSON object using exactly these keys:
{
  "mealName": string,
  "calories": number (kcal),
  "protein": number (grams),
  "fat": number (grams),
  "carbs": number (grams),
  "macronutrients": [{"name": string, "amount": number, "unit": string, "percentDailyValue": number, "description": string}],
  "micronutrients": [{"name": string, "amount": number, "unit": string, "percentDailyValue": number, "description": string}],
  "benefits": [string],
  "concerns": [string]
}

Use double quotes for all strings. Do not wrap the JSON in markdown. Keep descriptions short.`

// buildAnalysisPrompt appends the user's note, if any, to the analysis prompt
func buildAnalysisPrompt(note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return analysisPromptTemplate
	}
	return analysisPromptTemplate + "\n\nThe user added this note about the meal: " + note
}
