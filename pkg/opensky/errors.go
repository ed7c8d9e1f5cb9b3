package opensky

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// StatusError represents a non-200 response from the upstream API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("API returned status %d", e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
// Server errors and rate limits are transient; other client errors are not.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// RateLimitError represents an HTTP 429 rate limit error with retry
// information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// Retryable always reports true; a rate limit clears with time.
func (e *RateLimitError) Retryable() bool { return true }

// RetryAfterDelay returns the server-mandated wait, or 0 if none was given.
// The retry package uses it to override its own backoff schedule.
func (e *RateLimitError) RetryAfterDelay() time.Duration { return e.RetryAfter }

// parseRetryAfter extracts the Retry-After header value.
// Returns the duration to wait, or 0 if the header is not present.
// Supports both delay-seconds (integer) and HTTP-date formats.
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}

	return 0
}
