package reliability

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/riptide/core/rerrors"
)

// RetryConfig configures exponential backoff with jitter.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// JitterFraction is the proportion of the computed delay randomized
	// uniformly in [-frac, +frac], to avoid thundering-herd retries
	// across concurrent URLs.
	JitterFraction float64
	// Retryable overrides which errors are retried. Defaults to
	// rerrors.Retryable.
	Retryable func(error) bool
}

// DefaultRetryConfig returns the standard backoff used across the
// reliability layer.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		Retryable:      rerrors.Retryable,
	}
}

// Retry runs fn up to config.MaxAttempts times, sleeping with
// exponential backoff and jitter between attempts, stopping early if
// ctx is cancelled or fn's error is not retryable.
func Retry(ctx context.Context, config *RetryConfig, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.Retryable == nil {
		config.Retryable = rerrors.Retryable
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !config.Retryable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		sleep := jitter(delay, config.JitterFraction)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return rerrors.New("reliability.Retry", rerrors.KindTimeout, "", fmtMaxRetries(config.MaxAttempts, lastErr))
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac * (2*rand.Float64() - 1)
	out := time.Duration(float64(d) + delta)
	if out < 0 {
		return 0
	}
	return out
}

func fmtMaxRetries(attempts int, last error) error {
	return &maxRetriesError{attempts: attempts, last: last}
}

type maxRetriesError struct {
	attempts int
	last     error
}

func (e *maxRetriesError) Error() string {
	if e.last == nil {
		return "maximum retries exceeded"
	}
	return e.last.Error() + " (after " + strconv.Itoa(e.attempts) + " attempts)"
}

func (e *maxRetriesError) Unwrap() error {
	return e.last
}

// RetryWithBreaker composes Retry with a CircuitBreaker: each attempt
// runs through the breaker, so a tripped breaker short-circuits
// remaining retries instead of waiting out the backoff.
func RetryWithBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func(ctx context.Context) error) error {
	return Retry(ctx, config, func(ctx context.Context) error {
		return cb.Execute(ctx, fn)
	})
}
