package errors

import (
	stderrors "errors"
	"net/http"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
	// Detail is shown to the client next to Message. Keep it free of internals.
	Detail string
}

func (e *ErrorWithStatusCode) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

func NotFound(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusNotFound}
}

func Unauthorized(message string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusUnauthorized}
}

// ValidationOrConflict is returned when the account directory rejects a write:
// duplicate email, empty field, value too long.
func ValidationOrConflict(message, detail string) error {
	return &ErrorWithStatusCode{Message: message, StatusCode: http.StatusBadRequest, Detail: detail}
}

// StatusCode reports the HTTP status carried by err, 500 for unclassified errors.
func StatusCode(err error) int {
	var e *ErrorWithStatusCode
	if stderrors.As(err, &e) {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool {
	return err != nil && StatusCode(err) == http.StatusNotFound
}

func IsValidationOrConflict(err error) bool {
	return err != nil && StatusCode(err) == http.StatusBadRequest
}
