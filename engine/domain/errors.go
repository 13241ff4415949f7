package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrIncompleteContext   = errors.New("incomplete vehicle context")
	ErrInvalidRegistration = errors.New("invalid registration number")
	ErrInvalidGSTIN        = errors.New("invalid GSTIN")
	ErrInvalidVIN          = errors.New("invalid VIN")
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrYearOutOfRange      = errors.New("year out of range")
	ErrUnknownVehicleType  = errors.New("unknown vehicle type")
	ErrUnknownFuelType     = errors.New("unknown fuel type")
	ErrEVFieldsOnICE       = errors.New("EV fields set on a non-electric vehicle")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
