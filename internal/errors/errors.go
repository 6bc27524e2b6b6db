// Package errors provides structured error types for the delay-regression
// pipeline. Every failure surfaced to the run report carries a machine
// error code plus a human-readable message, so per-specification failures
// can be reported without aborting the whole run.
package errors

import (
	"errors"
	"fmt"
)

// PipelineError represents a structured pipeline error.
type PipelineError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	// Spec names the model specification the error belongs to, when the
	// failure is per-specification rather than global.
	Spec    string      `json:"spec,omitempty"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Spec != "" {
		return fmt.Sprintf("%s: spec %s: %s", e.ErrorCode, e.Spec, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *PipelineError) Unwrap() error {
	return e.cause
}

// Is matches on error code so sentinel comparisons survive wrapping.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.ErrorCode == pe.ErrorCode
	}
	return false
}

// New creates a new PipelineError with the given code and message.
func New(errorCode, message string) *PipelineError {
	return &PipelineError{
		ErrorCode: errorCode,
		Message:   message,
	}
}

// NewWithDetails creates a new PipelineError with additional details.
func NewWithDetails(errorCode, message string, details interface{}) *PipelineError {
	return &PipelineError{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	}
}

// Predefined error types for common scenarios
var (
	// Input and configuration failures; these abort the run.
	ErrInputNotFound  = New("INPUT_NOT_FOUND", "input file not found")
	ErrInputMalformed = New("INPUT_MALFORMED", "input file could not be parsed")
	ErrInvalidConfig  = New("INVALID_CONFIG", "configuration validation failed")

	// Per-specification estimation failures; the run continues.
	ErrCollinear           = New("COLLINEAR_DESIGN", "regressors are perfectly collinear after absorption")
	ErrNotConverged        = New("ABSORPTION_NOT_CONVERGED", "fixed-effect absorption did not converge")
	ErrNoDegreesOfFreedom  = New("NO_RESIDUAL_DOF", "fixed effects leave zero residual degrees of freedom")
	ErrUnderIdentified     = New("UNDER_IDENTIFIED", "fewer excluded instruments than endogenous regressors")
	ErrUnknownColumn       = New("UNKNOWN_COLUMN", "specification references a column absent from the dataset")
	ErrConstraintUnmatched = New("CONSTRAINT_UNMATCHED", "linear restriction references a regressor not in the model")

	// Export failures.
	ErrExportFailed = New("EXPORT_FAILED", "failed to write results")
)

// SpecError attaches a specification name and cause to a sentinel error.
func SpecError(sentinel *PipelineError, spec string, cause error) *PipelineError {
	e := &PipelineError{
		ErrorCode: sentinel.ErrorCode,
		Message:   sentinel.Message,
		Spec:      spec,
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// Wrap attaches a cause to a sentinel error.
func Wrap(sentinel *PipelineError, cause error) *PipelineError {
	return SpecError(sentinel, "", cause)
}

// WithDetails returns a copy of the sentinel carrying extra detail payload.
func WithDetails(sentinel *PipelineError, details interface{}) *PipelineError {
	return &PipelineError{
		ErrorCode: sentinel.ErrorCode,
		Message:   sentinel.Message,
		Details:   details,
	}
}
