package errors

import "fmt"

// ErrorCode represents a Jot error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"    // 401
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrAmbiguousTitle ErrorCode = "AMBIGUOUS_TITLE" // 409
	ErrUnknownField   ErrorCode = "UNKNOWN_FIELD"   // 422
	ErrConfig         ErrorCode = "CONFIG"          // 500, fatal at startup
	ErrUpstream       ErrorCode = "UPSTREAM"        // 502
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// JotError represents a structured error with code, status, and details.
type JotError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *JotError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *JotError {
	return &JotError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for webhook signature failures.
func NewUnauthorized(msg string) *JotError {
	return &JotError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(category, identifier string) *JotError {
	return &JotError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("no record %s in %s", identifier, category),
		Details: map[string]any{"category": category, "identifier": identifier},
	}
}

// NewAmbiguousTitle creates a 409 error when more than one record matches a
// title being resolved. Every conflicting id is listed; a match is never
// picked silently.
func NewAmbiguousTitle(category, title string, ids []string) *JotError {
	return &JotError{
		Code:    ErrAmbiguousTitle,
		Status:  409,
		Message: fmt.Sprintf("multiple records match %q in %s: %v", title, category, ids),
		Details: map[string]any{"category": category, "title": title, "ids": ids},
	}
}

// NewUnknownField creates a 422 error for a field name outside the
// category's schema on a targeted update.
func NewUnknownField(category, field string) *JotError {
	return &JotError{
		Code:    ErrUnknownField,
		Status:  422,
		Message: fmt.Sprintf("unknown field %q for category %s", field, category),
		Details: map[string]any{"category": category, "field": field},
	}
}

// NewConfig creates a fatal configuration error (missing adapter kind,
// missing required credential).
func NewConfig(msg string) *JotError {
	return &JotError{
		Code:    ErrConfig,
		Status:  500,
		Message: msg,
	}
}

// NewUpstream creates a 502 error for a failed collaborator call after
// retries are exhausted.
func NewUpstream(service string, err error) *JotError {
	return &JotError{
		Code:    ErrUpstream,
		Status:  502,
		Message: fmt.Sprintf("%s: %v", service, err),
		Details: map[string]any{"service": service},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *JotError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &JotError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a JotError with the given code.
func Is(err error, code ErrorCode) bool {
	if jErr, ok := err.(*JotError); ok {
		return jErr.Code == code
	}
	return false
}
