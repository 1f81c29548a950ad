package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/validation"
)

// ErrNotImplemented marks endpoints that exist but have no backing feature.
var ErrNotImplemented = errors.New("not implemented")

// APIError is an error with the HTTP status and client-facing message it maps to.
// Err holds the underlying cause, which is logged but never sent to clients.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func BadRequest(message string, fields map[string]string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message, Fields: fields}
}

func Unauthorized() *APIError {
	return &APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
}

func Forbidden(message string) *APIError {
	if message == "" {
		message = "Forbidden"
	}
	return &APIError{Status: http.StatusForbidden, Message: message}
}

func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: message}
}

// Internal hides err behind the generic message.
func Internal(err error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Message: "Internal server error", Err: err}
}

func NotImplemented(feature string) *APIError {
	return &APIError{
		Status:  http.StatusNotImplemented,
		Message: feature + " is not implemented",
		Err:     ErrNotImplemented,
	}
}

// toAPIError classifies err. Unknown errors become 500s.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return BadRequest("Validation failed", verr.Fields)
	case errors.Is(err, repository.ErrNotFound):
		return NotFound("Not found")
	case errors.Is(err, ErrNotImplemented):
		return &APIError{Status: http.StatusNotImplemented, Message: "Not implemented", Err: err}
	default:
		return Internal(err)
	}
}
