package models

import "errors"

// Error taxonomy shared by every layer. Callers match with errors.Is; the
// concrete error wraps one of these with context.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidWeight      = errors.New("invalid weight")
	ErrInvalidTargetRange = errors.New("invalid target range")
	ErrNotFound           = errors.New("not found")
	ErrStorageFailure     = errors.New("storage failure")
	ErrValidationFailure  = errors.New("validation failure")
)
