package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxRetries wraps the last error once every attempt has failed.
var ErrMaxRetries = errors.New("max retries exceeded")

// RetryConfig configures retry behavior for external calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors func(error) bool // nil retries every error
	// OnRetry runs before each backoff sleep, e.g. to rotate an API key.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2.0,
	}
}

// NoRetry runs a call exactly once.
func NoRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 1}
}

// Retry calls fn until it succeeds, the error is not retryable, attempts run
// out or ctx is done. Delays grow by BackoffFactor up to MaxDelay.
func Retry[T any](ctx context.Context, cfg *RetryConfig, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	attempts := max(cfg.MaxAttempts, 1)
	delay := cfg.InitialDelay

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%s: retry cancelled: %w", name, lastErr)
			}
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.RetryableErrors != nil && !cfg.RetryableErrors(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		select {
		case <-time.After(delay):
			if cfg.BackoffFactor > 0 {
				delay = time.Duration(float64(delay) * cfg.BackoffFactor)
			}
			if cfg.MaxDelay > 0 {
				delay = min(delay, cfg.MaxDelay)
			}
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: retry cancelled during backoff: %w", name, lastErr)
		}
	}

	if attempts == 1 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w (%d) for %s: %w", ErrMaxRetries, attempts, name, lastErr)
}
