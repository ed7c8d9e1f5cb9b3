package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		Delay:       time.Millisecond,
		Multiplier:  1.0,
		MaxDelay:    10 * time.Millisecond,
	}
}

// TestDo tests the core retry loop.
func TestDo(t *testing.T) {
	t.Run("Success on first attempt", func(t *testing.T) {
		attempts := 0
		out := Do(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
			attempts++
			return "ok", nil
		})

		if !out.Ok() {
			t.Errorf("Expected success, got: %v", out.Err)
		}
		if out.Value != "ok" {
			t.Errorf("Expected value 'ok', got %q", out.Value)
		}
		if out.Attempts != 1 || attempts != 1 {
			t.Errorf("Expected 1 attempt, got %d (outcome %d)", attempts, out.Attempts)
		}
	})

	t.Run("Fails twice then succeeds", func(t *testing.T) {
		attempts := 0
		out := Do(context.Background(), fastConfig(3), func(ctx context.Context) (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("temporary error")
			}
			return 42, nil
		})

		if !out.Ok() {
			t.Errorf("Expected success, got: %v", out.Err)
		}
		if out.Value != 42 {
			t.Errorf("Expected value 42, got %d", out.Value)
		}
		if out.Attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", out.Attempts)
		}
	})

	t.Run("Exhausts after exactly MaxAttempts", func(t *testing.T) {
		attempts := 0
		out := Do(context.Background(), fastConfig(3), func(ctx context.Context) (int, error) {
			attempts++
			return 0, errors.New("persistent error")
		})

		if out.Ok() {
			t.Error("Expected failure after exhausted retries")
		}
		if attempts != 3 || out.Attempts != 3 {
			t.Errorf("Expected exactly 3 attempts, got %d (outcome %d)", attempts, out.Attempts)
		}
		if !errors.Is(out.Err, ErrExhausted) {
			t.Errorf("Expected ErrExhausted, got: %v", out.Err)
		}
	})

	t.Run("Last cause is preserved", func(t *testing.T) {
		cause := errors.New("specific cause")
		out := Do(context.Background(), fastConfig(2), func(ctx context.Context) (int, error) {
			return 0, cause
		})

		if !errors.Is(out.Err, cause) {
			t.Errorf("Expected cause to be preserved, got: %v", out.Err)
		}
	})

	t.Run("Permanent error fails immediately", func(t *testing.T) {
		attempts := 0
		out := Do(context.Background(), fastConfig(5), func(ctx context.Context) (int, error) {
			attempts++
			return 0, &Permanent{Err: errors.New("bad request")}
		})

		if out.Ok() {
			t.Error("Expected failure")
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt for permanent error, got %d", attempts)
		}
		if errors.Is(out.Err, ErrExhausted) {
			t.Error("Permanent failure should not report exhausted retries")
		}
	})

	t.Run("Context cancellation stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		cfg := Config{MaxAttempts: 5, Delay: time.Second, Multiplier: 1.0, MaxDelay: time.Second}
		out := Do(ctx, cfg, func(ctx context.Context) (int, error) {
			attempts++
			return 0, errors.New("error")
		})

		if out.Ok() {
			t.Error("Expected failure")
		}
		if !errors.Is(out.Err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got: %v", out.Err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
		}
	})

	t.Run("Zero value on failure", func(t *testing.T) {
		out := Do(context.Background(), fastConfig(2), func(ctx context.Context) (string, error) {
			return "partial", errors.New("error")
		})
		if out.Value != "" {
			t.Errorf("Expected zero value on failure, got %q", out.Value)
		}
	})
}

// classifiedError reports its own retryability, like an HTTP status error.
type classifiedError struct {
	retryable bool
}

func (e *classifiedError) Error() string   { return fmt.Sprintf("classified (retryable=%v)", e.retryable) }
func (e *classifiedError) Retryable() bool { return e.retryable }

// TestRetryable tests failure classification.
func TestRetryable(t *testing.T) {
	t.Run("Nil is not retryable", func(t *testing.T) {
		if Retryable(nil) {
			t.Error("Expected nil to be non-retryable")
		}
	})

	t.Run("Self-classified retryable", func(t *testing.T) {
		if !Retryable(&classifiedError{retryable: true}) {
			t.Error("Expected retryable classification to be honored")
		}
	})

	t.Run("Self-classified non-retryable", func(t *testing.T) {
		if Retryable(&classifiedError{retryable: false}) {
			t.Error("Expected non-retryable classification to be honored")
		}
	})

	t.Run("Wrapped classification is found", func(t *testing.T) {
		err := fmt.Errorf("fetch: %w", &classifiedError{retryable: false})
		if Retryable(err) {
			t.Error("Expected classification through wrapping to be honored")
		}
	})

	t.Run("Permanent wins over unknown", func(t *testing.T) {
		if Retryable(&Permanent{Err: errors.New("nope")}) {
			t.Error("Expected permanent error to be non-retryable")
		}
	})

	t.Run("Unknown errors default to retryable", func(t *testing.T) {
		if !Retryable(errors.New("mystery")) {
			t.Error("Expected unknown error to default to retryable")
		}
	})
}

// TestDelayFor tests the pure backoff schedule.
func TestDelayFor(t *testing.T) {
	t.Run("Fixed delay with multiplier 1", func(t *testing.T) {
		cfg := Config{MaxAttempts: 3, Delay: 5 * time.Second, Multiplier: 1.0, MaxDelay: time.Minute}
		for attempt := 1; attempt <= 3; attempt++ {
			if d := cfg.DelayFor(attempt); d != 5*time.Second {
				t.Errorf("Attempt %d: expected 5s, got %v", attempt, d)
			}
		}
	})

	t.Run("Exponential growth", func(t *testing.T) {
		cfg := Config{MaxAttempts: 5, Delay: time.Second, Multiplier: 2.0, MaxDelay: time.Minute}
		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
		for i, expected := range want {
			if d := cfg.DelayFor(i + 1); d != expected {
				t.Errorf("Attempt %d: expected %v, got %v", i+1, expected, d)
			}
		}
	})

	t.Run("Capped at MaxDelay", func(t *testing.T) {
		cfg := Config{MaxAttempts: 10, Delay: time.Second, Multiplier: 2.0, MaxDelay: 3 * time.Second}
		if d := cfg.DelayFor(5); d != 3*time.Second {
			t.Errorf("Expected cap at 3s, got %v", d)
		}
	})
}

// recordingTimer captures the delays Do asks for and fires immediately.
type recordingTimer struct {
	waited []time.Duration
}

func (r *recordingTimer) After(d time.Duration) <-chan time.Time {
	r.waited = append(r.waited, d)
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// TestDoBackoffSchedule tests that Do waits out the DelayFor schedule
// between attempts, using an injected timer instead of the wall clock.
func TestDoBackoffSchedule(t *testing.T) {
	timer := &recordingTimer{}
	cfg := Config{
		MaxAttempts: 4,
		Delay:       time.Second,
		Multiplier:  2.0,
		MaxDelay:    time.Minute,
		After:       timer.After,
	}

	out := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		return 0, errors.New("persistent error")
	})

	if out.Ok() {
		t.Fatal("Expected failure after exhausted retries")
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(timer.waited) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), timer.waited)
	}
	for i, expected := range want {
		if timer.waited[i] != expected {
			t.Errorf("Wait %d: expected %v, got %v", i, expected, timer.waited[i])
		}
	}
}

// rateLimitedError simulates an upstream 429 carrying a Retry-After value.
type rateLimitedError struct {
	after time.Duration
}

func (e *rateLimitedError) Error() string                  { return "rate limited" }
func (e *rateLimitedError) Retryable() bool                { return true }
func (e *rateLimitedError) RetryAfterDelay() time.Duration { return e.after }

// TestRetryAfterHonored tests that a server-mandated delay replaces backoff.
func TestRetryAfterHonored(t *testing.T) {
	timer := &recordingTimer{}
	attempts := 0

	cfg := Config{
		MaxAttempts: 2,
		Delay:       time.Millisecond,
		Multiplier:  1.0,
		MaxDelay:    time.Second,
		After:       timer.After,
	}
	out := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, &rateLimitedError{after: 50 * time.Millisecond}
		}
		return 1, nil
	})

	if !out.Ok() {
		t.Fatalf("Expected success, got: %v", out.Err)
	}
	// The wait before the second attempt follows Retry-After, not the
	// 1ms base delay
	if len(timer.waited) != 1 || timer.waited[0] != 50*time.Millisecond {
		t.Errorf("Expected a single 50ms wait, got %v", timer.waited)
	}
}
