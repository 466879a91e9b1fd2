package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrBackend matches every failure talking to the marketplace API.
var ErrBackend = errors.New("backend request failed")

// Error is a non-2xx answer from the marketplace API.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"error,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

// Is lets errors.Is(err, ErrBackend) match.
func (e *Error) Is(target error) bool {
	return target == ErrBackend
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying. Transport failures are.
func IsRetryable(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Retryable()
	}
	return errors.Is(err, ErrBackend)
}
