// Package errs defines the error body returned by the REST API.
//
// Every non-2xx REST response carries an HTTPError serialized as JSON:
//
//	{"code": "BAD_REQUEST", "message": "Invalid email address", "status": 400}
//
// Validation failures add per-field entries under "errors".
package errs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// FieldError is a validation error for one request field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// HTTPError is an error with an HTTP status and a client-facing message.
type HTTPError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Status  int          `json:"status"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Is matches any *HTTPError.
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}

// WithMessage returns a copy with Message replaced.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	return &HTTPError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
		Errors:  e.Errors,
	}
}

// New builds an HTTPError whose code is derived from the status text,
// e.g. 404 -> "NOT_FOUND".
func New(status int, message string) *HTTPError {
	return &HTTPError{
		Code:    codeFor(status),
		Message: message,
		Status:  status,
	}
}

func NewBadRequestError(message string, fields []FieldError) *HTTPError {
	e := New(http.StatusBadRequest, message)
	e.Errors = fields
	return e
}

func NewUnauthorizedError(message string) *HTTPError {
	return New(http.StatusUnauthorized, message)
}

func NewForbiddenError(message string) *HTTPError {
	return New(http.StatusForbidden, message)
}

func NewNotFoundError(message string) *HTTPError {
	return New(http.StatusNotFound, message)
}

func NewConflictError(message string) *HTTPError {
	return New(http.StatusConflict, message)
}

func NewPayloadTooLargeError(message string) *HTTPError {
	return New(http.StatusRequestEntityTooLarge, message)
}

// NewInternalServerError never carries the underlying error; log it instead.
func NewInternalServerError() *HTTPError {
	return New(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// From returns err as an *HTTPError, or a generic 500 if it is not one.
func From(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return NewInternalServerError()
}

func codeFor(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// Write serializes e as the JSON response body with e.Status.
func Write(w http.ResponseWriter, e *HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}
