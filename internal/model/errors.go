package model

import "errors"

// Sentinel errors shared across packages. Callers wrap them with context and
// the HTTP layer maps them to status codes with errors.Is.
var (
	// ErrDataUnavailable indicates the question bank source is missing or unparseable.
	ErrDataUnavailable = errors.New("question bank unavailable")

	// ErrInvalidCriteria indicates a filter parameter could not be interpreted.
	ErrInvalidCriteria = errors.New("invalid criteria")

	// ErrSessionNotFound indicates no active conversation exists for the identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrClassifier indicates the intent classifier call failed.
	ErrClassifier = errors.New("intent classifier failed")

	// ErrGeneration indicates the text generator returned an error.
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyGeneration indicates the generator succeeded but produced no text.
	ErrEmptyGeneration = errors.New("empty response from generator")

	// ErrGeneratorUnavailable indicates no generator is configured.
	ErrGeneratorUnavailable = errors.New("generator not configured")

	// ErrMissingField indicates a required request field was empty.
	ErrMissingField = errors.New("missing required field")
)
