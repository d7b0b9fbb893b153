package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the response body. They mirror the failure taxonomy
// of the emulated backend rather than Postgres SQLSTATEs.
const (
	CodeMalformed      = "malformed_request"
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeSingleExpected = "single_row_expected"
	CodeMultipleRows   = "multiple_rows_returned"
	CodeHandlerFailure = "handler_failure"
	CodeInternal       = "internal_error"
)

// APIError is the structured error payload sent to clients. Status is carried
// out of band as the HTTP status code; Code and Message form the JSON body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an APIError with a caller-supplied status and code. Used by
// error-injection hooks to simulate arbitrary backend failures.
func Errorf(status int, code, format string, args ...any) *APIError {
	return &APIError{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Malformed reports an unparseable path, body or filter expression.
func Malformed(format string, args ...any) *APIError {
	return Errorf(http.StatusBadRequest, CodeMalformed, format, args...)
}

// Validation reports a missing payload or a missing required filter.
func Validation(format string, args ...any) *APIError {
	return Errorf(http.StatusBadRequest, CodeValidation, format, args...)
}

// NotFound reports an unknown function or an update that matched no rows.
func NotFound(format string, args ...any) *APIError {
	return Errorf(http.StatusNotFound, CodeNotFound, format, args...)
}

// SingleExpected reports a single-object response that did not resolve to
// exactly one row.
func SingleExpected(n int) *APIError {
	return Errorf(http.StatusNotAcceptable, CodeSingleExpected, "expected a single row, got %d", n)
}

// MultipleRows reports a maybe-single response that resolved to more than one row.
func MultipleRows(n int) *APIError {
	return Errorf(http.StatusNotAcceptable, CodeMultipleRows, "expected at most one row, got %d", n)
}

// HandlerFailure wraps an error raised inside a registered RPC or edge-function
// handler, preserving the underlying message.
func HandlerFailure(err error) *APIError {
	return Errorf(http.StatusInternalServerError, CodeHandlerFailure, "%v", err)
}

// WriteError sends err as a JSON error payload. Non-APIError values are
// reported as opaque internal errors.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = Errorf(http.StatusInternalServerError, CodeInternal, "%v", err)
	}
	JSON(w, apiErr.Status, apiErr)
}
