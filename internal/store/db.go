package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/skywatch/altaz-mount/internal/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.StoreConfig
}

// Connect establishes a connection to the PostgreSQL database holding
// alignment-point history and session events.
func Connect(cfg config.StoreConfig) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		config: cfg,
	}

	return db, nil
}

// InitSchema creates or updates the database schema. Called once at
// daemon startup when store.enabled is true.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// PruneOldEvents deletes session events and superseded alignment points
// older than maxAge, keeping the history table from growing unbounded
// across long-running sessions.
func (db *DB) PruneOldEvents(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)

	if _, err := db.ExecContext(ctx,
		`DELETE FROM session_events WHERE occurred_at < $1`,
		cutoff,
	); err != nil {
		return fmt.Errorf("failed to delete old session events: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM alignment_points WHERE recorded_at < $1 AND NOT in_use`,
		cutoff,
	); err != nil {
		return fmt.Errorf("failed to delete old alignment points: %w", err)
	}

	return nil
}

// GetStats returns database statistics for the admin status surface.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var pointCount int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alignment_points WHERE in_use`,
	).Scan(&pointCount); err != nil {
		return nil, err
	}
	stats["active_alignment_points"] = pointCount

	var eventCount int64
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_events`,
	).Scan(&eventCount); err != nil {
		return nil, err
	}
	stats["session_events"] = eventCount

	var lastEvent sql.NullTime
	if err := db.QueryRowContext(ctx,
		`SELECT MAX(occurred_at) FROM session_events`,
	).Scan(&lastEvent); err != nil {
		return nil, err
	}
	if lastEvent.Valid {
		stats["last_event_at"] = lastEvent.Time
	}

	return stats, nil
}
