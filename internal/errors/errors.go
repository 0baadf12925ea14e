// Package errors defines domain errors carrying an HTTP status so the API
// boundary can translate them without inspecting message text.
package errors

import (
	"fmt"
	"net/http"
)

// ServiceError is a business error with an explicit HTTP status.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    interface{}
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound signals a missing resource.
func NotFound(message string) *ServiceError {
	if message == "" {
		message = "Resource not found"
	}
	return &ServiceError{Code: "not_found", Message: message, HTTPStatus: http.StatusNotFound}
}

// BadRequest signals a malformed or semantically invalid request.
func BadRequest(message string) *ServiceError {
	return &ServiceError{Code: "bad_request", Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unauthorized signals a missing or invalid credential.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: "unauthorized", Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Conflict signals a state conflict with an existing resource.
func Conflict(message string) *ServiceError {
	return &ServiceError{Code: "conflict", Message: message, HTTPStatus: http.StatusConflict}
}

// Validation signals a request that failed payload validation. Details holds
// the structured field errors surfaced to the client.
func Validation(details interface{}) *ServiceError {
	return &ServiceError{
		Code:       "validation_failed",
		Message:    "Validation failed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

// RateLimitExceeded signals that the caller has been throttled.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       "rate_limit_exceeded",
		Message:    fmt.Sprintf("Rate limit of %d requests per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}
