package hardware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skywatch/altaz-mount/internal/mounterr"
)

func TestRetryWithBackoffSucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return mounterr.New(mounterr.HardwareUnavailable, "not ready yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoffGivesUpOnNonHardwareError(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond

	attempts := 0
	wantErr := errors.New("bad command")
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		return mounterr.Wrap(mounterr.InvalidArgument, wantErr)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on non-hardware error)", attempts)
	}
}

func TestRetryWithBackoffExhausts(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		return mounterr.New(mounterr.HardwareUnavailable, "still down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != cfg.MaxRetries+1 {
		t.Errorf("attempts = %d, want %d", attempts, cfg.MaxRetries+1)
	}
}

func TestRetryWithBackoffRespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2.0}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := RetryWithBackoff(ctx, cfg, func() error {
		attempts++
		if attempts == 1 {
			cancel()
		}
		return mounterr.New(mounterr.HardwareUnavailable, "down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
