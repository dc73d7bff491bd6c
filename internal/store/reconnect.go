package db

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/skywatch/altaz-mount/internal/config"
)

// ReconnectWithRetry attempts to reconnect to the database with exponential backoff.
// This provides resilience against temporary database outages.
//
// Parameters:
//   - cfg: Store configuration
//   - maxRetries: Maximum number of reconnection attempts (0 = infinite)
//   - initialDelay: Initial wait time between retries
//
// Returns: Connected database or error if all retries exhausted
func ReconnectWithRetry(cfg config.StoreConfig, maxRetries int, initialDelay time.Duration) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++

		log.Printf("Database connection attempt %d...", attempt)

		db, err := Connect(cfg)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			pingErr := db.PingContext(ctx)
			if pingErr == nil {
				log.Println("database reconnected successfully")
				return db, nil
			}

			db.Close()
			err = pingErr
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Printf("failed to reconnect after %d attempts", attempt)
			return nil, err
		}

		log.Printf("connection failed: %v (retry in %v)", err, delay)
		time.Sleep(delay)

		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// EnsureConnection checks if the database connection is alive and reconnects if needed.
// This should be called periodically or before critical operations.
func EnsureConnection(db *DB, cfg config.StoreConfig) (*DB, error) {
	if db == nil {
		log.Println("database connection is nil, attempting to reconnect...")
		return ReconnectWithRetry(cfg, 3, 1*time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Printf("database connection lost: %v", err)
		log.Println("attempting to reconnect...")

		db.Close()

		return ReconnectWithRetry(cfg, 3, 1*time.Second)
	}

	return db, nil
}

// HealthCheck performs a comprehensive health check on the database.
// Returns true if the database is healthy and ready for operations.
func HealthCheck(db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Printf("health check failed - ping error: %v", err)
		return false
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		log.Printf("health check failed - query error: %v", err)
		return false
	}

	if result != 1 {
		log.Printf("health check failed - unexpected result: %d", result)
		return false
	}

	return true
}

// connErrorPatterns are substrings of driver errors worth retrying, as
// opposed to e.g. a constraint violation that will never succeed on retry.
var connErrorPatterns = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
}

// WithRetry executes a database operation with automatic retry on connection failures.
// This provides transparent error recovery for transient database issues.
func WithRetry(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		errStr := strings.ToLower(err.Error())
		isConnError := false
		for _, pattern := range connErrorPatterns {
			if strings.Contains(errStr, pattern) {
				isConnError = true
				break
			}
		}

		if !isConnError {
			return err
		}

		if attempt < maxRetries {
			waitTime := time.Duration(attempt+1) * time.Second
			log.Printf("database operation failed (attempt %d/%d): %v (retry in %v)",
				attempt+1, maxRetries+1, err, waitTime)
			time.Sleep(waitTime)
		}
	}

	return lastErr
}
