package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AlibekovAA/lingo-cms/backend/internal/common/clock"
	commonerrors "github.com/AlibekovAA/lingo-cms/backend/internal/common/errors"
	"github.com/AlibekovAA/lingo-cms/backend/internal/common/resilience"
)

var errBoom = errors.New("boom")

func failing(ctx context.Context) error { return errBoom }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	mockClock := clock.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  2,
		ResetAfter: time.Minute,
		Clock:      mockClock,
	})

	for i := 0; i < 2; i++ {
		if err := cb.Call(context.Background(), failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected errBoom, got %v", i, err)
		}
	}

	called := false
	err := cb.Call(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, commonerrors.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("expected fn not to be called while open")
	}

	mockClock.Advance(2 * time.Minute)

	if err := cb.Call(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("expected circuit to close after reset window, got %v", err)
	}
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  1,
		ResetAfter: time.Minute,
		IsFailure:  func(err error) bool { return !errors.Is(err, errBoom) },
	})

	_ = cb.Call(context.Background(), failing)

	if cb.IsOpen() {
		t.Error("expected ignored error not to open the circuit")
	}
}

func TestCircuitBreaker_AppliesTimeout(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  5,
		Timeout:    10 * time.Millisecond,
		ResetAfter: time.Minute,
	})

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
