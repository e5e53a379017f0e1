package discord

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is a non-2xx response from the Discord REST API.
type APIError struct {
	Method     string
	Path       string
	Status     int
	Body       string
	RetryAfter time.Duration // only set for 429 responses
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Retryable reports whether repeating the request may succeed.
// Rate limits and server errors are transient; other client errors are not.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsRateLimited reports whether err is a 429 from the API.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
