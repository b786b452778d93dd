// Package apierrors contains the error types exchanged between services and
// HTTP handlers.
package apierrors

import "net/http"

// APIError represents an error that maps directly to an HTTP response.
type APIError struct {
	Detail     string `json:"detail"`
	statusCode int
}

// APIErrorOption determines the Functional Options used to create a new APIError.
type APIErrorOption func(err *APIError)

// WithDetail sets the user-visible detail of the error.
func WithDetail(detail string) APIErrorOption {
	return func(err *APIError) {
		err.Detail = detail
	}
}

// WithHTTPStatusCode sets the HTTP status code the error should be answered with.
func WithHTTPStatusCode(statusCode int) APIErrorOption {
	return func(err *APIError) {
		err.statusCode = statusCode
	}
}

// NewAPIError creates a new APIError using the given options.
func NewAPIError(opts ...APIErrorOption) *APIError {
	apiError := &APIError{statusCode: http.StatusInternalServerError}
	for _, opt := range opts {
		opt(apiError)
	}
	return apiError
}

func (e APIError) Error() string {
	return e.Detail
}

// HTTPStatusCode gets the HTTP status code associated to the error.
func (e APIError) HTTPStatusCode() int {
	return e.statusCode
}

// ValidationError represents an out-of-policy or malformed input. It is
// reported synchronously, never retried, and implies no side effects were
// performed.
type ValidationError struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// NewValidationError creates a new ValidationError for the given field.
func NewValidationError(field string, description string) *ValidationError {
	return &ValidationError{Field: field, Description: description}
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Description
}

// ConflictError represents a lost race or duplicate operation, as a booking
// slot taken by a concurrent request or a payment already settled. It is
// distinct from ValidationError so callers know to re-fetch fresh state.
type ConflictError struct {
	Detail string `json:"detail"`
}

// NewConflictError creates a new ConflictError.
func NewConflictError(detail string) *ConflictError {
	return &ConflictError{Detail: detail}
}

func (e ConflictError) Error() string {
	return e.Detail
}
