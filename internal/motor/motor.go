// Package motor implements the per-axis motor abstraction: unit
// conversion between step-space and angle-space, motion primitives
// (move, track, stop), and a registry of pluggable hardware backends
// keyed by string tag, mirroring how stock Go drivers register
// themselves with database/sql.
package motor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/skywatch/altaz-mount/internal/trajectory"
)

// State is the lifecycle of a single axis.
type State int

const (
	Stopped State = iota
	Slewing
	Stopping
	Tracking
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Slewing:
		return "SLEWING"
	case Stopping:
		return "STOPPING"
	case Tracking:
		return "TRACKING"
	default:
		return "UNKNOWN"
	}
}

// SlewRate is a discrete scale of slew speed, expressed as a fraction of
// the axis's max velocity (rate/High).
type SlewRate float64

const (
	Centering SlewRate = 0.17
	Guiding   SlewRate = 0.33
	Find      SlewRate = 0.67
	High      SlewRate = 1.00
)

// Wrap is the angular wrap convention for an axis.
type Wrap int

const (
	// WrapAltitude wraps into [-180, 180).
	WrapAltitude Wrap = iota
	// WrapAzimuth wraps into [0, 360).
	WrapAzimuth
)

// WrapAngle reduces a delta angle into the half-open interval [-w, +w).
func WrapAngle(angle, w float64) float64 {
	twoW := 2 * w
	wrapped := math.Mod(angle+w, twoW)
	if wrapped < 0 {
		wrapped += twoW
	}
	return wrapped - w
}

// Backend is the hardware abstraction a concrete stepper driver
// implements. Real implementations drive Phidgets/ZWO-class hardware;
// internal/motor/fake provides a simulated one for tests and the
// emulation mode.
type Backend interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SetTargetPositionAndVelocity(ctx context.Context, targetSteps, velocitySteps float64) error
	SetOnPositionChange(func(steps float64))
	SetOnVelocityChange(func(stepsPerSec float64))
}

// Factory constructs a Backend from a free-form configuration map. Each
// hardware driver registers one under a string tag.
type Factory func(config map[string]any) (Backend, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a backend factory under name. Panics on duplicate
// registration, matching the stdlib driver-registry convention.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic("motor: Register called twice for backend " + name)
	}
	registry[name] = factory
}

// New constructs a Backend previously registered under name.
func New(name string, config map[string]any) (Backend, error) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("motor: unknown backend %q", name)
	}
	return factory(config)
}

// attachDeadline bounds how long Connect waits for hardware to report
// readiness before HardwareUnavailable is raised.
const attachDeadline = 2 * time.Second

// Axis is a single alt or az motor, combining a hardware Backend with
// the step↔angle conversion and motion-planning logic.
type Axis struct {
	Name string

	backend Backend
	wrap    Wrap

	maxVelocitySteps     float64
	maxAccelerationSteps float64
	conversionFactor     float64 // degrees per step

	mu              sync.Mutex
	positionSteps   float64
	velocitySteps   float64
	positionOffset  float64
	state           State
	attached        bool
}

// NewAxis constructs an Axis. maxVelocity and maxAcceleration are in
// angle units per second (and per second squared); conversionFactor is
// degrees per step.
func NewAxis(name string, backend Backend, wrap Wrap, maxVelocity, maxAcceleration, conversionFactor float64) *Axis {
	a := &Axis{
		Name:                 name,
		backend:              backend,
		wrap:                 wrap,
		maxVelocitySteps:     maxVelocity / conversionFactor,
		maxAccelerationSteps: maxAcceleration / conversionFactor,
		conversionFactor:     conversionFactor,
		state:                Stopped,
	}
	backend.SetOnPositionChange(a.onPositionChange)
	backend.SetOnVelocityChange(a.onVelocityChange)
	return a
}

func (a *Axis) onPositionChange(steps float64) {
	a.mu.Lock()
	a.positionSteps = steps
	a.mu.Unlock()
}

func (a *Axis) onVelocityChange(stepsPerSec float64) {
	a.mu.Lock()
	a.velocitySteps = stepsPerSec
	wasStopping := a.state == Stopping
	promote := a.state != Stopped && isCloseToZero(stepsPerSec)
	a.mu.Unlock()

	if wasStopping && promote {
		a.mu.Lock()
		a.state = Tracking
		a.mu.Unlock()
	}
}

func isCloseToZero(v float64) bool {
	return math.Abs(v) <= 1e-9
}

// Connect attaches the underlying hardware, failing with a wrapped
// error if readiness isn't reported within attachDeadline.
func (a *Axis) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, attachDeadline)
	defer cancel()

	if err := a.backend.Connect(ctx); err != nil {
		return fmt.Errorf("motor %s: connect: %w", a.Name, err)
	}
	a.mu.Lock()
	a.attached = true
	a.mu.Unlock()
	return nil
}

// Disconnect detaches the underlying hardware.
func (a *Axis) Disconnect(ctx context.Context) error {
	if err := a.backend.Disconnect(ctx); err != nil {
		return fmt.Errorf("motor %s: disconnect: %w", a.Name, err)
	}
	a.mu.Lock()
	a.attached = false
	a.state = Stopped
	a.mu.Unlock()
	return nil
}

// PromoteIfIdle promotes a non-stopped axis whose velocity has settled
// to zero into Tracking. Idempotent. The onVelocityChange callback
// promotes only an axis that is Stopping; this check promotes any
// non-stopped axis, Slewing included, whose velocity reads zero.
func (a *Axis) PromoteIfIdle() {
	a.mu.Lock()
	if a.state != Stopped && isCloseToZero(a.velocitySteps) {
		a.state = Tracking
	}
	a.mu.Unlock()
}

// SetPosition overwrites the axis's position offset so Position()
// immediately reads angle, without moving the hardware. Used by the
// plate-solve loop to glue motor dead-reckoning back to camera-solved
// ground truth in CAMERA_AND_MOTORS mode.
func (a *Axis) SetPosition(angle float64) {
	a.mu.Lock()
	a.positionOffset = angle/a.conversionFactor - a.positionSteps
	a.mu.Unlock()
}

// Attached reports whether the hardware has been successfully connected.
func (a *Axis) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attached
}

// State returns the axis's current lifecycle state.
func (a *Axis) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Axis) wrapWidth() float64 {
	if a.wrap == WrapAzimuth {
		return 360
	}
	return 180
}

// Position returns the axis's current angle, wrapped per its
// convention: altitude axes read in [-180, 180), azimuth axes read in
// [0, 360).
func (a *Axis) Position() float64 {
	a.mu.Lock()
	pos, offset, factor := a.positionSteps, a.positionOffset, a.conversionFactor
	a.mu.Unlock()

	angle := (pos + offset) * factor
	if a.wrap == WrapAzimuth {
		return normalizeAzimuth(angle)
	}
	return WrapAngle(angle, 180)
}

func normalizeAzimuth(angle float64) float64 {
	az := math.Mod(angle, 360)
	if az < 0 {
		az += 360
	}
	return az
}

// Velocity returns the axis's current angular velocity in units/sec.
func (a *Axis) Velocity() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.velocitySteps * a.conversionFactor
}

// MaxVelocity returns the configured maximum angular velocity.
func (a *Axis) MaxVelocity() float64 {
	return a.maxVelocitySteps * a.conversionFactor
}

// MaxAcceleration returns the configured maximum angular acceleration.
func (a *Axis) MaxAcceleration() float64 {
	return a.maxAccelerationSteps * a.conversionFactor
}

// targetStepsShortestPath converts a target angle into step-space using
// the shortest-path policy: the delta from the current angle is wrapped
// at ±180° before being added to the current step count.
func (a *Axis) targetStepsShortestPath(targetAngle float64) float64 {
	a.mu.Lock()
	currentSteps, offset, factor := a.positionSteps, a.positionOffset, a.conversionFactor
	a.mu.Unlock()

	currentAngle := (currentSteps + offset) * factor
	delta := WrapAngle(targetAngle-currentAngle, 180)
	return currentSteps + delta/factor
}

// Move plans and executes a motion to targetAngle at the given slew
// rate, setting state to Slewing.
func (a *Axis) Move(ctx context.Context, targetAngle float64, rate SlewRate) error {
	targetSteps := a.targetStepsShortestPath(targetAngle)
	maxVelocityForMove := a.maxVelocitySteps * float64(rate) / float64(High)

	a.mu.Lock()
	a.state = Slewing
	a.mu.Unlock()

	if err := a.backend.SetTargetPositionAndVelocity(ctx, targetSteps, maxVelocityForMove); err != nil {
		return fmt.Errorf("motor %s: move: %w", a.Name, err)
	}
	return nil
}

// Track issues a constant-velocity motion whose end-step yields
// targetAngle after duration seconds, for sidereal-rate following.
func (a *Axis) Track(ctx context.Context, targetAngle, duration float64) error {
	targetSteps := a.targetStepsShortestPath(targetAngle)

	a.mu.Lock()
	currentSteps := a.positionSteps
	a.mu.Unlock()

	velocitySteps := (currentSteps - targetSteps) / duration
	if err := a.backend.SetTargetPositionAndVelocity(ctx, targetSteps, velocitySteps); err != nil {
		return fmt.Errorf("motor %s: track: %w", a.Name, err)
	}
	return nil
}

// StopMotion decelerates the axis to rest at max acceleration, setting
// state to Stopping. When the velocity callback subsequently reports
// zero, the axis promotes itself to Tracking (see the controller's
// position loop).
// If velocity is already zero this is a no-op that still promotes the
// axis directly to Tracking.
func (a *Axis) StopMotion(ctx context.Context) error {
	a.mu.Lock()
	currentSteps := a.positionSteps
	currentVelocity := a.velocitySteps
	a.mu.Unlock()

	if isCloseToZero(currentVelocity) {
		a.mu.Lock()
		a.state = Tracking
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	a.state = Stopping
	a.mu.Unlock()

	stopDistance := (currentVelocity * currentVelocity) / (2 * a.maxAccelerationSteps)
	if currentVelocity < 0 {
		stopDistance = -stopDistance
	}
	stopPosition := currentSteps + stopDistance

	if err := a.backend.SetTargetPositionAndVelocity(ctx, stopPosition, 0); err != nil {
		return fmt.Errorf("motor %s: stop motion: %w", a.Name, err)
	}
	return nil
}

// EstimateSlewTime builds (but does not execute) a trajectory to
// targetAngle and returns the final segment's start time in seconds.
func (a *Axis) EstimateSlewTime(targetAngle float64) (float64, error) {
	targetSteps := a.targetStepsShortestPath(targetAngle)

	a.mu.Lock()
	currentSteps := a.positionSteps
	currentVelocity := a.velocitySteps
	a.mu.Unlock()

	segments, err := trajectory.Plan(currentSteps, currentVelocity, targetSteps, a.maxVelocitySteps, a.maxAccelerationSteps)
	if err != nil {
		return 0, fmt.Errorf("motor %s: estimate slew time: %w", a.Name, err)
	}
	return trajectory.Duration(segments), nil
}
