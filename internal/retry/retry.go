package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Jitter          float64 // ±jitter fraction (e.g., 0.2 = ±20%)
}

// DefaultConfig returns the settings used for Bot API calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Jitter:          0.2,
	}
}

// PermanentError wraps an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks an error as permanent (non-retryable).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent returns true if the error is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Delayer is implemented by errors that carry a server-mandated wait,
// such as a Bot API 429 with parameters.retry_after.
type Delayer interface {
	RetryAfter() time.Duration
}

// Do executes fn with retry logic. It stops retrying when:
// - fn returns nil (success)
// - fn returns a PermanentError
// - MaxAttempts is exhausted
// - ctx is cancelled
//
// When the error implements Delayer with a positive duration, that duration
// replaces the computed backoff, capped at MaxInterval.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
		if attempt < attempts-1 {
			wait := Backoff(attempt, cfg)
			var d Delayer
			if errors.As(lastErr, &d) && d.RetryAfter() > 0 {
				wait = min(d.RetryAfter(), cfg.MaxInterval)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

// Backoff returns the exponential delay before retry number attempt+1.
func Backoff(attempt int, cfg Config) time.Duration {
	backoff := float64(cfg.InitialInterval) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxInterval) {
		backoff = float64(cfg.MaxInterval)
	}
	if cfg.Jitter > 0 {
		jitter := backoff * cfg.Jitter
		backoff = backoff - jitter + rand.Float64()*2*jitter
	}
	return time.Duration(backoff)
}
