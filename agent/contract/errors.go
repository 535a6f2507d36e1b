package contract

import "errors"

var (
	ErrModelUnavailable      = errors.New("language model unavailable")
	ErrSchemaViolation       = errors.New("model response violates schema")
	ErrPromptMissing         = errors.New("required prompt is missing")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidInput          = errors.New("invalid input")
	ErrToolNotFound          = errors.New("tool not found")
	ErrDuplicateTool         = errors.New("duplicate tool")
	ErrMaxIterationsExceeded = errors.New("max tool-call cycles exceeded")
	ErrCycleInProgress       = errors.New("a query cycle is already in progress")
)
