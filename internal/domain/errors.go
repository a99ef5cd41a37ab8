package domain

import (
	"errors"
	"fmt"
)

var (
	ErrComplaintNotFound   = errors.New("complaint not found")
	ErrSubjectNotFound     = errors.New("subject not found in directory")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrForbidden           = errors.New("forbidden")
	ErrTenantNotConfigured = errors.New("tenant store not configured")
)

// ValidationError names the request field that failed validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// Required returns a ValidationError for a missing or blank field
func Required(field string) error {
	return &ValidationError{Field: field}
}

// Invalid returns a ValidationError with a custom message
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
