package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransportMessage is shown for any connectivity failure.
const TransportMessage = "No internet connection. Check your network and try again."

// TransportError is a dial, timeout or I/O failure; the request may not have
// reached the server.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a response the server produced with status=false or a non-2xx code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsTransport reports whether err is a connectivity failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status carried by an APIError, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// IsNotFound reports an APIError with HTTP 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// UserMessage maps err to the text shown to the user. Server messages pass
// through; an APIError without one yields fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if IsTransport(err) {
		return TransportMessage
	}
	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		if fallback != "" {
			return fallback
		}
		return fmt.Sprintf("Request failed (HTTP %d)", ae.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return "Request cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportMessage
	}
	return "Something went wrong: " + err.Error()
}
