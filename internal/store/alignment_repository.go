package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/skywatch/altaz-mount/internal/alignment"
)

// AlignmentRepository persists alignment points and session events.
type AlignmentRepository struct {
	db *DB
}

// NewAlignmentRepository creates a new alignment repository.
func NewAlignmentRepository(db *DB) *AlignmentRepository {
	return &AlignmentRepository{db: db}
}

// InsertPoint records a new alignment point, marking it in_use.
func (r *AlignmentRepository) InsertPoint(ctx context.Context, p alignment.Point, recordedAt time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO alignment_points (
			sky_altitude_deg, sky_azimuth_deg,
			telescope_altitude_deg, telescope_azimuth_deg,
			recorded_at, in_use
		) VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id`,
		p.Sky.Altitude, p.Sky.Azimuth,
		p.Telescope.Altitude, p.Telescope.Azimuth,
		recordedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alignment point: %w", err)
	}
	return id, nil
}

// RetirePoint marks a stored alignment point as no longer in use,
// e.g. after an operator discards it for being an outlier.
func (r *AlignmentRepository) RetirePoint(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alignment_points SET in_use = FALSE WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to retire alignment point %d: %w", id, err)
	}
	return nil
}

// LoadActivePoints returns every alignment point still marked in_use,
// ordered by recording time.
func (r *AlignmentRepository) LoadActivePoints(ctx context.Context) ([]alignment.Point, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sky_altitude_deg, sky_azimuth_deg,
		        telescope_altitude_deg, telescope_azimuth_deg
		 FROM alignment_points
		 WHERE in_use
		 ORDER BY recorded_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []alignment.Point
	for rows.Next() {
		var p alignment.Point
		if err := rows.Scan(
			&p.Sky.Altitude, &p.Sky.Azimuth,
			&p.Telescope.Altitude, &p.Telescope.Azimuth,
		); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// CountActivePoints returns how many alignment points are currently in
// use, for the admin status surface.
func (r *AlignmentRepository) CountActivePoints(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alignment_points WHERE in_use`,
	).Scan(&count)
	return count, err
}

// EventKind identifies the kind of session_events row being recorded.
type EventKind string

// Event kinds recorded over the life of a session, following
// mount_controller's mode-degradation and slew-lifecycle transitions.
const (
	EventModeChange   EventKind = "mode_change"
	EventSlewStarted  EventKind = "slew_started"
	EventSlewStopped  EventKind = "slew_stopped"
	EventSlewBlocked  EventKind = "slew_blocked"
	EventHardwareLost EventKind = "hardware_lost"
)

// Event is one recorded session occurrence.
type Event struct {
	ID         int64
	Kind       EventKind
	Detail     string
	OccurredAt time.Time
}

// InsertEvent records a session event.
func (r *AlignmentRepository) InsertEvent(ctx context.Context, kind EventKind, detail string, occurredAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_events (kind, detail, occurred_at) VALUES ($1, $2, $3)`,
		string(kind), detail, occurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}
	return nil
}

// RecentEvents returns session events recorded since the given time,
// most recent first.
func (r *AlignmentRepository) RecentEvents(ctx context.Context, since time.Time) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, detail, occurred_at
		 FROM session_events
		 WHERE occurred_at >= $1
		 ORDER BY occurred_at DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Kind = EventKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

// MeanResidualDegrees reports the mean reprojection residual (sky AltAz
// transformed through the engine trained on all stored points, vs. the
// telescope AltAz each point actually recorded) for the admin status
// surface, without requiring the live Engine to expose its own
// residual. Returns sql.ErrNoRows if no points have been recorded yet.
func (r *AlignmentRepository) MeanResidualDegrees(ctx context.Context) (float64, error) {
	points, err := r.LoadActivePoints(ctx)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, sql.ErrNoRows
	}

	engine := alignment.NewEngine()
	for _, p := range points {
		engine.AddPointing(p.Sky, p.Telescope)
	}

	var total float64
	for _, p := range points {
		got := engine.Forward(p.Sky)
		dAlt := got.Altitude - p.Telescope.Altitude
		dAz := got.Azimuth - p.Telescope.Azimuth
		total += math.Hypot(dAlt, dAz)
	}
	return total / float64(len(points)), nil
}
