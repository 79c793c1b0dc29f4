package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riptide/core/rerrors"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:    4,
		InitialDelay:   time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0,
		Retryable:      rerrors.Retryable,
	}

	attempts := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return rerrors.New("op", rerrors.KindTransport, "", errors.New("flaky"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	cfg := DefaultRetryConfig()
	attempts := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return rerrors.New("op", rerrors.KindInvalidRequest, "", errors.New("bad request"))
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryExhaustsMaxAttempts(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0,
		Retryable:      rerrors.Retryable,
	}
	attempts := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return rerrors.New("op", rerrors.KindTransport, "", errors.New("down"))
	})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBreakerShortCircuits(t *testing.T) {
	cfg := DefaultConfig("retry-breaker-test")
	cb := New(cfg)
	cb.ForceOpen()

	retryCfg := &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2, Retryable: rerrors.Retryable}
	calls := 0
	_ = RetryWithBreaker(context.Background(), retryCfg, cb, func(ctx context.Context) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("expected breaker to block all calls, got %d calls", calls)
	}
}
