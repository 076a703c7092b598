package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation_error"
	ErrorTypeBackend        ErrorType = "backend_error"
	ErrorTypeTransport      ErrorType = "transport_error"
	ErrorTypeProtocol       ErrorType = "protocol_error"
	ErrorTypeIterationLimit ErrorType = "iteration_limit_error"
	ErrorTypeNotFound       ErrorType = "not_found_error"
	ErrorTypeServer         ErrorType = "server_error"
	ErrorTypeAuth           ErrorType = "authentication_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"
)

// APIError represents a structured error with type, param, and message.
// All error types surface to a streaming consumer as an error event
// followed by done; before a stream starts they map to an HTTP status.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level
// error response on non-streaming paths.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewValidationError creates an APIError for bad request input.
func NewValidationError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeValidation,
		Param:   param,
		Message: message,
	}
}

// NewBackendError creates an APIError for a non-success status or malformed
// wire frame from the model backend.
func NewBackendError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeBackend,
		Message: message,
	}
}

// NewTransportError creates an APIError for a network failure mid-stream.
func NewTransportError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTransport,
		Message: message,
	}
}

// NewProtocolError creates an APIError for a backend reply that violates
// the provider contract.
func NewProtocolError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeProtocol,
		Message: message,
	}
}

// NewIterationLimitError creates an APIError for a loop that reached its
// iteration bound without producing a final text.
func NewIterationLimitError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeIterationLimit,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServer,
		Message: message,
	}
}

// NewAuthError creates an APIError for missing or invalid credentials.
func NewAuthError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAuth,
		Message: message,
	}
}

// NewRateLimitError creates an APIError for requests rejected by rate
// limiting.
func NewRateLimitError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeRateLimit,
		Message: message,
	}
}

// AsAPIError unwraps err to an *APIError, wrapping unknown errors as a
// server error so every failure has a wire representation.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewServerError(err.Error())
}
