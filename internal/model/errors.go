package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateKey      = errors.New("duplicate key") // unique index violation, always joined with ErrConflict
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInactiveTenant    = errors.New("store is not active")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnavailable       = errors.New("dependency unavailable")
)

// ValidationError reports a rejected input field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
