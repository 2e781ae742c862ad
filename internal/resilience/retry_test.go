package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRetryable = errors.New("retryable")

func retryAll(err error) bool { return true }

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), RetryConfig{ShouldRetry: retryAll}, func(_ context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 7 {
		t.Errorf("expected 7, got %d", val)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxRetries:  2,
		Base:        time.Millisecond,
		ShouldRetry: retryAll,
	}

	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errRetryable
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected ok, got %q", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxRetries:  2,
		Base:        time.Millisecond,
		ShouldRetry: retryAll,
	}

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errRetryable
	})
	if !errors.Is(err, errRetryable) {
		t.Fatalf("expected errRetryable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
	}
}

func TestDoVal_NonRetryableFailsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	var calls int
	cfg := RetryConfig{
		MaxRetries: 5,
		Base:       time.Millisecond,
		ShouldRetry: func(err error) bool {
			return !errors.Is(err, permanent)
		},
	}

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_NilShouldRetryNeverRetries(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{MaxRetries: 5, Base: time.Millisecond}, func(_ context.Context) (int, error) {
		calls++
		return 0, errRetryable
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxRetries:  10,
		Base:        50 * time.Millisecond,
		ShouldRetry: retryAll,
	}

	_, err := DoVal(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, errRetryable
	})
	if !errors.Is(err, errRetryable) {
		t.Fatalf("expected errRetryable, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_OnRetryCalled(t *testing.T) {
	var retries []int
	cfg := RetryConfig{
		MaxRetries:  2,
		Base:        time.Millisecond,
		ShouldRetry: retryAll,
		OnRetry: func(attempt int, err error) {
			retries = append(retries, attempt)
		},
	}

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, errRetryable
	})
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("expected retries [1 2], got %v", retries)
	}
}
