// Package hardware provides exponential-backoff retry helpers for
// attaching to motor, camera, and plate-solve backends, retrying only
// errors classified as mounterr.HardwareUnavailable.
package hardware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/skywatch/altaz-mount/internal/mounterr"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int

	// InitialDelay is the initial backoff delay (default: 1 second)
	InitialDelay time.Duration

	// MaxDelay is the maximum backoff delay (default: 30 seconds)
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (default: 2.0 for exponential)
	Multiplier float64
}

// DefaultRetryConfig returns sensible defaults for hardware-attach retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryableFunc is an attach/reconnect operation that can be retried.
type RetryableFunc func() error

// RetryWithBackoff executes fn with exponential backoff, retrying only
// errors mounterr classifies as HardwareUnavailable — a malformed
// command or a fatal condition is returned immediately since retrying
// it can never succeed.
//
// Example usage:
//
//	err := hardware.RetryWithBackoff(ctx, hardware.DefaultRetryConfig(), func() error {
//	    return axis.Connect(ctx)
//	})
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn RetryableFunc) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !mounterr.Is(err, mounterr.HardwareUnavailable) {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		nextDelay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		if nextDelay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		} else {
			delay = nextDelay
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
