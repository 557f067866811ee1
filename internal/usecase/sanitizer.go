package usecase

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mealscan/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	trailingCommaRegex  = regexp.MustCompile(`,\s*([}\]])`)
	newlineRegex        = regexp.MustCompile(`\r?\n`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

const (
	// Responses shorter than this are never treated as truncated
	truncationThreshold = 100
	// Length of the response prefix quoted in parse errors
	diagnosticPrefixLen = 100
)

// numericNutritionFields must be JSON numbers when RequireNumericMacros is set
var numericNutritionFields = []string{"calories", "protein", "fat", "carbs"}

// SanitizeOptions controls the response repair pipeline
type SanitizeOptions struct {
	// StripMarkdown removes ``` and ```json fence markers before parsing
	StripMarkdown bool
	// BlindQuoteRepair converts every single quote to a double quote, including
	// apostrophes inside string values. When false only single quotes that
	// delimit strings are converted.
	BlindQuoteRepair bool
	// RequireNumericMacros rejects calories/protein/fat/carbs that are present but not numbers
	RequireNumericMacros bool
}

// DefaultSanitizeOptions returns the options used for model responses
func DefaultSanitizeOptions() SanitizeOptions {
	return SanitizeOptions{StripMarkdown: true}
}

// SanitizeNutritionJSON turns raw model output into a validated NutritionRecord.
// It never substitutes data: any stage that cannot proceed returns a *domain.ParseError.
func SanitizeNutritionJSON(text string, opts SanitizeOptions) (domain.NutritionRecord, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, &domain.ParseError{Err: domain.ErrInvalidInput, Detail: "empty response"}
	}

	if opts.StripMarkdown {
		cleaned = strings.TrimSpace(stripMarkdownFences(cleaned))
	}

	if looksTruncated(cleaned) {
		end := lastBalancedObjectEnd(cleaned)
		if end < 0 {
			return nil, &domain.ParseError{
				Err:    domain.ErrUnrecoverableTruncation,
				Detail: fmt.Sprintf("no complete object in %d bytes", len(cleaned)),
			}
		}
		log.Printf("[Sanitizer] Recovered truncated response: kept %d of %d bytes", end+1, len(cleaned))
		cleaned = cleaned[:end+1]
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, &domain.ParseError{Err: domain.ErrNoJSONStructure, Detail: diagnosticPrefix(cleaned)}
	}
	cleaned = cleaned[start : end+1]

	cleaned = repairJSON(cleaned, opts.BlindQuoteRepair)

	var record domain.NutritionRecord
	if err := json.Unmarshal([]byte(cleaned), &record); err != nil || record == nil {
		return nil, &domain.ParseError{Err: domain.ErrUnparseableJSON, Detail: diagnosticPrefix(cleaned)}
	}

	if err := validateNutritionRecord(record, opts.RequireNumericMacros); err != nil {
		return nil, err
	}

	return record, nil
}

// stripMarkdownFences removes code fence markers. A ```json fence is matched
// first so the language tag is not left behind by the plain-fence pass.
func stripMarkdownFences(s string) string {
	if strings.Contains(s, "```json") {
		s = strings.ReplaceAll(s, "```json", "")
		return strings.ReplaceAll(s, "```", "")
	}
	if strings.Contains(s, "```") {
		return strings.ReplaceAll(s, "```", "")
	}
	return s
}

// looksTruncated reports whether a response appears cut off by the output token limit
func looksTruncated(s string) bool {
	if utf8.RuneCountInString(s) <= truncationThreshold {
		return false
	}
	last := s[len(s)-1]
	return last != '}' && last != ']'
}

// lastBalancedObjectEnd returns the index of the last '}' that closes a
// top-level object, or -1. Braces inside double-quoted strings are ignored.
func lastBalancedObjectEnd(s string) int {
	inString := false
	escaped := false
	depth := 0
	last := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					last = i
				}
			}
		}
	}

	return last
}

// repairJSON applies the lexical fixes in order: trailing commas, quotes,
// newlines, whitespace runs. None of them are aware of JSON structure except
// the context-aware quote conversion.
func repairJSON(s string, blindQuotes bool) string {
	s = trailingCommaRegex.ReplaceAllString(s, "$1")
	if blindQuotes {
		s = strings.ReplaceAll(s, "'", `"`)
	} else {
		s = convertSingleQuotedStrings(s)
	}
	s = newlineRegex.ReplaceAllString(s, " ")
	return multipleSpacesRegex.ReplaceAllString(s, " ")
}

// convertSingleQuotedStrings rewrites 'single quoted' strings as JSON strings.
// Apostrophes inside double-quoted strings are left alone.
func convertSingleQuotedStrings(s string) string {
	const (
		outside = iota
		inDouble
		inSingle
	)

	var b strings.Builder
	b.Grow(len(s))
	state := outside
	escaped := false

	for _, r := range s {
		switch state {
		case inDouble:
			b.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				state = outside
			}
		case inSingle:
			if escaped {
				escaped = false
				// \' is not a JSON escape
				if r != '\'' {
					b.WriteRune('\\')
				}
				b.WriteRune(r)
				continue
			}
			switch r {
			case '\\':
				escaped = true
			case '\'':
				b.WriteRune('"')
				state = outside
			case '"':
				b.WriteString(`\"`)
			default:
				b.WriteRune(r)
			}
		default:
			switch r {
			case '\'':
				b.WriteRune('"')
				state = inSingle
			case '"':
				b.WriteRune(r)
				state = inDouble
			default:
				b.WriteRune(r)
			}
		}
	}
	if escaped && state == inSingle {
		b.WriteRune('\\')
	}

	return b.String()
}

// validateNutritionRecord checks the required-field contract. Validity is
// all-or-nothing, so the error lists the keys that were present.
func validateNutritionRecord(record domain.NutritionRecord, requireNumeric bool) error {
	valid := true
	for _, key := range domain.RequiredNutritionFields {
		if !hasValue(record[key]) {
			valid = false
			break
		}
	}
	if valid && requireNumeric {
		for _, key := range numericNutritionFields {
			if _, ok := record.Number(key); !ok {
				valid = false
				break
			}
		}
	}
	if valid {
		return nil
	}

	present := make([]string, 0, len(record))
	for key := range record {
		present = append(present, key)
	}
	sort.Strings(present)

	return &domain.ParseError{
		Err:    domain.ErrMissingRequiredFields,
		Detail: fmt.Sprintf("present keys: [%s]", strings.Join(present, ", ")),
	}
}

func hasValue(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func diagnosticPrefix(s string) string {
	runes := []rune(s)
	if len(runes) <= diagnosticPrefixLen {
		return s
	}
	return string(runes[:diagnosticPrefixLen]) + "..."
}
