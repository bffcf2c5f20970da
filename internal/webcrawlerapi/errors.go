package webcrawlerapi

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/webcrawlerapi-go/internal/jsonscan"
)

// Error codes produced by the client itself. Remote failures carry the
// service's own error_code instead, or CodeUnknown when it sent none.
const (
	CodeInvalidResponse = "invalid_response"
	CodeInterrupted     = "interrupted"
	CodeNetwork         = "network_error"
	CodeUnknown         = "unknown_error"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrInvalidResponse = &Error{Code: CodeInvalidResponse}
	ErrInterrupted     = &Error{Code: CodeInterrupted}
	ErrNetwork         = &Error{Code: CodeNetwork}
)

// Error is returned by every Client operation.
type Error struct {
	Code    string
	Message string
	// StatusCode is the HTTP status of a remote error response, 0 otherwise.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t.Message != "" || t.StatusCode != 0 {
		return false
	}
	return t.Code == e.Code
}

// Remote reports whether the error came from a non-2xx service response.
func (e *Error) Remote() bool {
	return e.StatusCode != 0
}

// remoteError builds an Error from a non-2xx response body. The body may be
// empty or not JSON at all; the HTTP status then becomes the message.
func remoteError(statusCode int, body string) *Error {
	code, ok := jsonscan.Value(body, "error_code")
	if !ok {
		code = CodeUnknown
	}
	message, ok := jsonscan.Value(body, "error_message")
	if !ok {
		message, ok = jsonscan.Value(body, "message")
	}
	if !ok {
		message = fmt.Sprintf("Request failed with status %d", statusCode)
	}
	return &Error{Code: code, Message: message, StatusCode: statusCode}
}

func networkError(err error) *Error {
	return &Error{Code: CodeNetwork, Message: "Network error: " + err.Error(), Err: err}
}

func interruptedError(err error) *Error {
	return &Error{Code: CodeInterrupted, Message: "Polling was interrupted", Err: err}
}
