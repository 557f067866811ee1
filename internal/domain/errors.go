package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when the model response is empty
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnrecoverableTruncation is returned when a truncated response holds no complete top-level object
	ErrUnrecoverableTruncation = errors.New("response truncated and unrecoverable")

	// ErrNoJSONStructure is returned when no {...} span can be found in the response
	ErrNoJSONStructure = errors.New("no JSON structure found")

	// ErrUnparseableJSON is returned when the repaired response still fails to parse
	ErrUnparseableJSON = errors.New("unparseable JSON")

	// ErrMissingRequiredFields is returned when the parsed object lacks a required nutrition field
	ErrMissingRequiredFields = errors.New("missing required fields")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrMealNotFound is returned when a meal id does not exist in the store
	ErrMealNotFound = errors.New("meal not found")

	// ErrAnalysisFailed is returned when no model attempt produced a valid nutrition record
	ErrAnalysisFailed = errors.New("analysis failed, please retry")

	// ErrModelFailure is returned when the vision model request fails
	ErrModelFailure = errors.New("vision model request failed")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

// ParseError reports why a model response could not be turned into a NutritionRecord.
// Err is always one of the sanitizer sentinels above.
type ParseError struct {
	Err    error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Kind returns a short machine-readable name for the failure
func (e *ParseError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(e.Err, ErrUnrecoverableTruncation):
		return "unrecoverable_truncation"
	case errors.Is(e.Err, ErrNoJSONStructure):
		return "no_json_structure"
	case errors.Is(e.Err, ErrUnparseableJSON):
		return "unparseable_json"
	case errors.Is(e.Err, ErrMissingRequiredFields):
		return "missing_required_fields"
	}
	return "unknown"
}
