// Package metrics provides Prometheus instrumentation for the mount
// daemon: a sync.Once-guarded global registry of promauto collectors
// with helper record/update functions.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all mount-daemon Prometheus collectors.
type Metrics struct {
	ModeTransitions   *prometheus.CounterVec
	CurrentMode       *prometheus.GaugeVec
	PositionTicks     prometheus.Counter
	SlewsRequested    prometheus.Counter
	SlewsBlocked      *prometheus.CounterVec
	SlewDuration      prometheus.Histogram
	NudgesRequested   *prometheus.CounterVec
	AlignmentPoints   prometheus.Gauge
	PointingErrorDeg  prometheus.Gauge
	ProtocolCommands  *prometheus.CounterVec
	UnknownCommands   prometheus.Counter
	PlateSolveAttempt *prometheus.CounterVec
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Get returns the global mount-daemon metrics instance, creating and
// registering it on first use.
func Get() *Metrics {
	globalOnce.Do(func() {
		global = newMetrics()
	})
	return global
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.ModeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "controller",
			Name:      "mode_transitions_total",
			Help:      "Total controller mode transitions by destination mode",
		},
		[]string{"mode"},
	)

	m.CurrentMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "altaz_mount",
			Subsystem: "controller",
			Name:      "mode",
			Help:      "1 if the controller is currently in the given mode, else 0",
		},
		[]string{"mode"},
	)

	m.PositionTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "controller",
			Name:      "position_ticks_total",
			Help:      "Total position-loop ticks processed",
		},
	)

	m.SlewsRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "controller",
			Name:      "slews_requested_total",
			Help:      "Total slew_to requests accepted and sent to both motors",
		},
	)

	m.SlewsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "controller",
			Name:      "slews_blocked_total",
			Help:      "Total slew_to requests rejected, by reason",
		},
		[]string{"reason"},
	)

	m.SlewDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "altaz_mount",
			Subsystem: "controller",
			Name:      "slew_duration_seconds",
			Help:      "Estimated duration of accepted slews",
			Buckets:   []float64{.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	m.NudgesRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "controller",
			Name:      "nudges_requested_total",
			Help:      "Total slew_in_direction requests by direction",
		},
		[]string{"direction"},
	)

	m.AlignmentPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "altaz_mount",
			Subsystem: "alignment",
			Name:      "points",
			Help:      "Number of active alignment points in the store",
		},
	)

	m.PointingErrorDeg = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "altaz_mount",
			Subsystem: "alignment",
			Name:      "pointing_error_degrees",
			Help:      "Mean reprojection residual of the current alignment transform",
		},
	)

	m.ProtocolCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "protocol",
			Name:      "commands_total",
			Help:      "Total LX200 commands dispatched by verb",
		},
		[]string{"verb"},
	)

	m.UnknownCommands = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "protocol",
			Name:      "unknown_commands_total",
			Help:      "Total LX200 command lines with no matching verb",
		},
	)

	m.PlateSolveAttempt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "altaz_mount",
			Subsystem: "platesolve",
			Name:      "attempts_total",
			Help:      "Total plate-solve attempts by outcome",
		},
		[]string{"outcome"},
	)

	return m
}

// RecordModeChange updates the mode gauges and transition counter.
// all is the full set of known mode names, so the gauge for every
// other mode is explicitly zeroed rather than left stale.
func RecordModeChange(mode string, all []string) {
	m := Get()
	for _, name := range all {
		if name == mode {
			m.CurrentMode.WithLabelValues(name).Set(1)
		} else {
			m.CurrentMode.WithLabelValues(name).Set(0)
		}
	}
	m.ModeTransitions.WithLabelValues(mode).Inc()
}

// RecordPositionTick increments the position-loop tick counter.
func RecordPositionTick() {
	Get().PositionTicks.Inc()
}

// RecordSlewAccepted records an accepted slew_to and its estimated duration.
func RecordSlewAccepted(duration time.Duration) {
	m := Get()
	m.SlewsRequested.Inc()
	m.SlewDuration.Observe(duration.Seconds())
}

// RecordSlewBlocked records a rejected slew_to, by reason ("horizon" or "error").
func RecordSlewBlocked(reason string) {
	Get().SlewsBlocked.WithLabelValues(reason).Inc()
}

// RecordNudge records a slew_in_direction request.
func RecordNudge(direction string) {
	Get().NudgesRequested.WithLabelValues(direction).Inc()
}

// UpdateAlignment updates the alignment point count and pointing-error gauges.
func UpdateAlignment(pointCount int, errorDegrees float64) {
	m := Get()
	m.AlignmentPoints.Set(float64(pointCount))
	m.PointingErrorDeg.Set(errorDegrees)
}

// RecordProtocolCommand records one dispatched LX200 verb.
func RecordProtocolCommand(verb string) {
	Get().ProtocolCommands.WithLabelValues(verb).Inc()
}

// RecordUnknownCommand records an unrecognized LX200 command line.
func RecordUnknownCommand() {
	Get().UnknownCommands.Inc()
}

// RecordPlateSolveAttempt records a plate-solve attempt outcome
// ("success" or "failure").
func RecordPlateSolveAttempt(outcome string) {
	Get().PlateSolveAttempt.WithLabelValues(outcome).Inc()
}
