package domain

import "errors"

// Error categories. Specific errors wrap one of these so transports can map
// them to a status without knowing every sentinel.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)
