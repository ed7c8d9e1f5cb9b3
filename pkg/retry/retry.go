// Package retry provides bounded retry with backoff for upstream calls.
//
// The policy is deliberately explicit: each call produces an Outcome that
// records the value, the final error, and the number of attempts made, and
// the delay schedule is a pure function of the attempt number so it can be
// tested without waiting on a real clock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"time"
)

// ErrExhausted marks an error returned after every allowed attempt failed.
// The last underlying cause is wrapped alongside it.
var ErrExhausted = errors.New("max attempts exceeded")

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	// (default: 3)
	MaxAttempts int

	// Delay is the wait before the second attempt (default: 5 seconds)
	Delay time.Duration

	// Multiplier grows the delay between attempts. 1.0 keeps the delay
	// fixed, 2.0 doubles it each time (default: 1.0)
	Multiplier float64

	// MaxDelay caps the grown delay (default: 60 seconds)
	MaxDelay time.Duration

	// After waits out a backoff delay; nil uses time.After. Tests inject
	// an immediate timer here to run the schedule without real waits.
	After func(d time.Duration) <-chan time.Time
}

// DefaultConfig returns sensible defaults for retry behavior.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
		Multiplier:  1.0,
		MaxDelay:    60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Delay <= 0 {
		c.Delay = 5 * time.Second
	}
	if c.Multiplier < 1.0 {
		c.Multiplier = 1.0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.After == nil {
		c.After = time.After
	}
	return c
}

// DelayFor returns the wait before attempt n+1, given that attempt n
// (1-based) just failed. Pure function of the configuration and attempt
// number.
func (c Config) DelayFor(attempt int) time.Duration {
	c = c.withDefaults()
	d := time.Duration(float64(c.Delay) * math.Pow(c.Multiplier, float64(attempt-1)))
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Outcome records the result of a retried call.
type Outcome[T any] struct {
	// Value is the successful result, or the zero value on failure
	Value T

	// Err is nil on success. After exhausted retries it wraps both
	// ErrExhausted and the last underlying cause.
	Err error

	// Attempts is the number of attempts actually made
	Attempts int
}

// Ok reports whether the call eventually succeeded.
func (o Outcome[T]) Ok() bool { return o.Err == nil }

// Permanent marks an error as non-retryable. Wrap an error with it to make
// Do fail immediately instead of burning the remaining attempts.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }

func (p *Permanent) Unwrap() error { return p.Err }

// Retryable reports whether an error is worth another attempt.
//
// Transient network failures (timeouts, connection errors) and errors that
// advertise themselves as retryable are retried. Errors wrapped in
// Permanent, and errors that advertise Retryable() == false, fail fast.
// Unknown errors default to retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *Permanent
	if errors.As(err, &perm) {
		return false
	}

	// Errors can classify themselves (e.g. an HTTP status error that is
	// retryable for 5xx and rate limits but not for other 4xx).
	var classified interface{ Retryable() bool }
	if errors.As(err, &classified) {
		return classified.Retryable()
	}

	// Transport-level failures from net/http arrive as *url.Error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return true
}

// retryAfter extracts a server-mandated delay from the error chain, if any.
// Rate limit errors carry the upstream Retry-After value.
func retryAfter(err error) time.Duration {
	var ra interface{ RetryAfterDelay() time.Duration }
	if errors.As(err, &ra) {
		return ra.RetryAfterDelay()
	}
	return 0
}

// Do executes fn with bounded retries and backoff.
//
// fn is attempted up to cfg.MaxAttempts times. Between attempts Do waits
// cfg.DelayFor(attempt), honoring a server-supplied Retry-After when the
// failure carries one, and aborts promptly if the context is cancelled.
// Non-retryable failures stop immediately.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) Outcome[T] {
	cfg = cfg.withDefaults()

	var out Outcome[T]
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := cfg.DelayFor(attempt - 1)
			if ra := retryAfter(out.Err); ra > 0 {
				delay = ra
			}

			select {
			case <-ctx.Done():
				out.Err = fmt.Errorf("retry cancelled: %w", ctx.Err())
				return out
			case <-cfg.After(delay):
			}
		}

		value, err := fn(ctx)
		out.Attempts = attempt
		if err == nil {
			out.Value = value
			out.Err = nil
			return out
		}
		out.Err = err

		if !Retryable(err) {
			return out
		}
	}

	out.Err = fmt.Errorf("%w (%d): %w", ErrExhausted, cfg.MaxAttempts, out.Err)
	return out
}
