// Package apperr holds the error kinds shared by every domain package.
// Domain sentinels wrap one of these so handlers can map them to a status code
// without importing each domain.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrDuplicateReview   = errors.New("product already reviewed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotEligible       = errors.New("not eligible")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// ValidationError lists the request fields that failed a business check.
type ValidationError struct {
	Fields  []string
	Message string
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: message}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Kind returns a machine readable name for err, or "INTERNAL" when err
// is not one of the known kinds.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrEmptyCart):
		return "EMPTY_CART"
	case errors.Is(err, ErrDuplicateReview):
		return "DUPLICATE_REVIEW"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrNotEligible):
		return "NOT_ELIGIBLE"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	default:
		return "INTERNAL"
	}
}
