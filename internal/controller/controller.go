// Package controller implements the mount controller state machine:
// the periodic position loop, the plate-solve loop, fused position
// reads, sync/alignment ingestion, and slew dispatch, following a
// ticker-driven Run(ctx) loop with panic recovery.
package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	timerate "golang.org/x/time/rate"

	"github.com/skywatch/altaz-mount/internal/alignment"
	"github.com/skywatch/altaz-mount/internal/camera"
	"github.com/skywatch/altaz-mount/internal/metrics"
	"github.com/skywatch/altaz-mount/internal/motor"
	"github.com/skywatch/altaz-mount/internal/mounterr"
	"github.com/skywatch/altaz-mount/internal/platesolve"
	"github.com/skywatch/altaz-mount/internal/skymath"
)

// maxSolveRate bounds plate-solve attempts so a fast or buggy solver
// backend can't peg a CPU core spinning on solve() back-to-back.
const maxSolveRate = 2 // attempts per second

// allModeNames is every Mode's string name, for zeroing the unselected
// mode gauges on each transition.
var allModeNames = []string{NoMode.String(), MotorsOnly.String(), CameraOnly.String(), CameraAndMotors.String()}

// PositionInterval is the position loop's non-drifting tick cadence.
const PositionInterval = 500 * time.Millisecond

// Mode is the controller's operating mode, degrading monotonically on
// hardware failure.
type Mode int

const (
	NoMode Mode = iota
	MotorsOnly
	CameraOnly
	CameraAndMotors
)

func (m Mode) String() string {
	switch m {
	case MotorsOnly:
		return "MOTORS_ONLY"
	case CameraOnly:
		return "CAMERA_ONLY"
	case CameraAndMotors:
		return "CAMERA_AND_MOTORS"
	default:
		return "NONE"
	}
}

// Direction is a nudge direction for slew_in_direction.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// PositionEvent is published once per position-loop tick, for
// observers and tests.
type PositionEvent struct {
	MotorAltAz  skymath.HorizontalCoordinates
	CameraAltAz skymath.HorizontalCoordinates
	IsSlewing   bool
	Mode        Mode
	Time        time.Time
}

// Controller ties together the per-axis motors, the plate-solve
// camera, and the two alignment handlers (camera-frame and
// motor-frame) into one fused mount model.
type Controller struct {
	alt, az *motor.Axis
	cam     camera.Camera
	solver  platesolve.Solver

	cameraHandler *alignment.Engine
	motorHandler  *alignment.Engine

	observer skymath.Observer
	limits   skymath.TrackingLimits

	now func() time.Time

	mu             sync.Mutex
	mode           Mode
	rate           motor.SlewRate
	motorAltAz     skymath.HorizontalCoordinates
	cameraAltAz    skymath.HorizontalCoordinates
	prevSampleTime time.Time
	isSlewing      bool

	events chan PositionEvent

	solveLimiter *timerate.Limiter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures optional Controller behavior at construction.
type Option func(*Controller)

// WithClock substitutes a fake clock, per the Environment pattern:
// unit tests must be able to drive time deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTrackingLimits overrides the default tracking limits. SlewTo acts
// only on a BelowHorizon result (altitude under MinAltitude); MaxAltitude
// and AzimuthWrapLimit are not enforced.
func WithTrackingLimits(limits skymath.TrackingLimits) Option {
	return func(c *Controller) { c.limits = limits }
}

// New constructs a Controller. alt/az may be nil (no motors
// configured); cam/solver may be nil (no camera configured). The
// initial mode is derived from which are non-nil.
func New(alt, az *motor.Axis, cam camera.Camera, solver platesolve.Solver, observer skymath.Observer, opts ...Option) *Controller {
	c := &Controller{
		alt:           alt,
		az:            az,
		cam:           cam,
		solver:        solver,
		cameraHandler: alignment.NewEngine(),
		motorHandler:  alignment.NewEngine(),
		observer:      observer,
		limits:        skymath.DefaultTrackingLimits(),
		now:           func() time.Time { return time.Now().UTC() },
		rate:          motor.High,
		events:        make(chan PositionEvent, 8),
		solveLimiter:  timerate.NewLimiter(timerate.Limit(maxSolveRate), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mode = c.initialMode()
	metrics.RecordModeChange(c.mode.String(), allModeNames)
	return c
}

func (c *Controller) initialMode() Mode {
	hasMotors := c.alt != nil && c.az != nil
	hasCamera := c.cam != nil && c.solver != nil
	switch {
	case hasMotors && hasCamera:
		return CameraAndMotors
	case hasMotors:
		return MotorsOnly
	case hasCamera:
		return CameraOnly
	default:
		return NoMode
	}
}

// Mode returns the controller's current operating mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Events returns the channel position-loop ticks are published on.
// Sends are non-blocking; a slow or absent consumer drops events
// rather than stalling the loop.
func (c *Controller) Events() <-chan PositionEvent {
	return c.events
}

// SetSlewRate sets the rate used by subsequent slew_in_direction calls.
func (c *Controller) SetSlewRate(rate motor.SlewRate) {
	c.mu.Lock()
	c.rate = rate
	c.mu.Unlock()
}

// ObserverLocation returns the observer location used for RaDec<->AltAz
// conversion.
func (c *Controller) ObserverLocation() skymath.Geographic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observer.Location
}

// SetObserverLocation updates the latitude and/or longitude used for
// RaDec<->AltAz conversion (LX200 Sg/St site commands), keeping the
// mount pointed at the same AltAz the motors were already holding.
func (c *Controller) SetObserverLocation(latitude, longitude *float64) {
	c.mu.Lock()
	if latitude != nil {
		c.observer.Location.Latitude = *latitude
	}
	if longitude != nil {
		c.observer.Location.Longitude = *longitude
	}
	c.mu.Unlock()
}

// Start attaches configured hardware and launches the position loop
// and (if a camera is configured) the plate-solve loop. Hardware
// attach failure degrades the mode rather than aborting.
func (c *Controller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()

	if mode == MotorsOnly || mode == CameraAndMotors {
		if err := c.connectMotor(ctx, c.alt); err != nil {
			c.degradeMotors()
		} else if err := c.connectMotor(ctx, c.az); err != nil {
			c.degradeMotors()
		}
	}

	c.mu.Lock()
	mode = c.mode
	c.mu.Unlock()

	if mode == CameraOnly || mode == CameraAndMotors {
		if err := c.cam.Connect(ctx); err != nil {
			log.Printf("controller: camera connect failed, degrading mode: %v", err)
			c.degradeCamera()
		}
	}

	c.wg.Add(1)
	go c.positionLoop(ctx)

	c.mu.Lock()
	mode = c.mode
	c.mu.Unlock()
	if mode == CameraOnly || mode == CameraAndMotors {
		c.wg.Add(1)
		go c.plateSolveLoop(ctx)
	}

	return nil
}

func (c *Controller) connectMotor(ctx context.Context, axis *motor.Axis) error {
	if err := axis.Connect(ctx); err != nil {
		log.Printf("controller: motor %s attach failed, degrading mode: %v", axis.Name, err)
		return mounterr.Wrap(mounterr.HardwareUnavailable, err)
	}
	return nil
}

func (c *Controller) degradeMotors() {
	c.mu.Lock()
	switch c.mode {
	case CameraAndMotors:
		c.mode = CameraOnly
	case MotorsOnly:
		c.mode = NoMode
	}
	mode := c.mode
	c.mu.Unlock()
	metrics.RecordModeChange(mode.String(), allModeNames)
}

func (c *Controller) degradeCamera() {
	c.mu.Lock()
	switch c.mode {
	case CameraAndMotors:
		c.mode = MotorsOnly
	case CameraOnly:
		c.mode = NoMode
	}
	mode := c.mode
	c.mu.Unlock()
	metrics.RecordModeChange(mode.String(), allModeNames)
}

// Stop cancels the position and plate-solve loops and waits for them
// to exit, then detaches hardware.
func (c *Controller) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if c.alt != nil && c.alt.Attached() {
		c.alt.Disconnect(ctx)
	}
	if c.az != nil && c.az.Attached() {
		c.az.Disconnect(ctx)
	}
	if c.cam != nil {
		c.cam.Disconnect(ctx)
	}
}

// positionLoop fires every PositionInterval with non-drifting cadence:
// sleep_duration = PositionInterval - (now - loopStart) mod PositionInterval.
func (c *Controller) positionLoop(ctx context.Context) {
	defer c.wg.Done()
	loopStart := c.now()

	for {
		elapsed := c.now().Sub(loopStart)
		sleepFor := PositionInterval - (elapsed % PositionInterval)

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepFor):
		}

		c.tick(ctx)
	}
}

func (c *Controller) tick(ctx context.Context) {
	if c.alt == nil || c.az == nil {
		return
	}

	c.alt.PromoteIfIdle()
	c.az.PromoteIfIdle()

	motorAltAz := skymath.HorizontalCoordinates{
		Altitude: c.alt.Position(),
		Azimuth:  c.az.Position(),
	}
	isSlewing := c.alt.State() == motor.Slewing || c.az.State() == motor.Slewing
	bothTracking := c.alt.State() == motor.Tracking && c.az.State() == motor.Tracking

	now := c.now()

	c.mu.Lock()
	c.motorAltAz = motorAltAz
	c.isSlewing = isSlewing
	prevTime := c.prevSampleTime
	cameraAltAz := c.cameraAltAz
	mode := c.mode
	c.prevSampleTime = now
	c.mu.Unlock()

	c.publish(PositionEvent{MotorAltAz: motorAltAz, CameraAltAz: cameraAltAz, IsSlewing: isSlewing, Mode: mode, Time: now})
	metrics.RecordPositionTick()

	if !bothTracking || prevTime.IsZero() {
		return
	}

	lookahead := 2 * PositionInterval.Seconds()
	raDec := skymath.HorizontalToEquatorial(motorAltAz, c.observer, now)
	target := skymath.EquatorialToHorizontal(raDec, c.observer, now.Add(time.Duration(lookahead*float64(time.Second))))

	if err := c.alt.Track(ctx, target.Altitude, lookahead); err != nil {
		log.Printf("controller: alt track: %v", err)
	}
	if err := c.az.Track(ctx, target.Azimuth, lookahead); err != nil {
		log.Printf("controller: az track: %v", err)
	}
}

func (c *Controller) publish(ev PositionEvent) {
	select {
	case c.events <- ev:
	default:
	}
}

// plateSolveLoop runs solve() serialized with itself, paced by
// solveLimiter so a fast backend can't spin faster than maxSolveRate.
func (c *Controller) plateSolveLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.solveLimiter.Wait(ctx); err != nil {
			return
		}

		now := c.now()
		raDec, err := c.solver.Solve(ctx)
		if err != nil {
			metrics.RecordPlateSolveAttempt("failure")
			log.Printf("controller: plate solve failed, retaining previous position: %v", err)
			continue
		}
		metrics.RecordPlateSolveAttempt("success")

		altAz := skymath.EquatorialToHorizontal(raDec, c.observer, now)

		c.mu.Lock()
		c.cameraAltAz = altAz
		mode := c.mode
		c.mu.Unlock()

		if mode == CameraAndMotors {
			if c.alt != nil {
				c.alt.SetPosition(altAz.Altitude)
			}
			if c.az != nil {
				c.az.SetPosition(altAz.Azimuth)
			}
		}
	}
}

// selectHandler implements the mode-dispatch table, shared by
// GetRaDec's fused read and SlewTo's forward mapping.
func (c *Controller) selectHandler(mode Mode, isSlewing bool) (skymath.HorizontalCoordinates, *alignment.Engine) {
	switch mode {
	case CameraOnly:
		return c.cameraAltAz, c.cameraHandler
	case MotorsOnly:
		return c.motorAltAz, c.motorHandler
	case CameraAndMotors:
		if isSlewing {
			return c.motorAltAz, c.cameraHandler
		}
		return c.cameraAltAz, c.motorHandler
	default:
		return skymath.HorizontalCoordinates{}, nil
	}
}

// GetRaDec returns the fused, alignment-corrected sky position.
func (c *Controller) GetRaDec() skymath.EquatorialCoordinates {
	c.mu.Lock()
	mode, isSlewing := c.mode, c.isSlewing
	c.mu.Unlock()

	telescopeAltAz, handler := c.selectHandler(mode, isSlewing)
	skyAltAz := telescopeAltAz
	if handler != nil {
		skyAltAz = handler.Inverse(telescopeAltAz)
	}
	return skymath.HorizontalToEquatorial(skyAltAz, c.observer, c.now())
}

// SetRaDec implements sync (CM): computes the sky-frame AltAz for the
// given RaDec and appends an alignment point to the handler(s) whose
// capability is active in the current mode.
func (c *Controller) SetRaDec(target skymath.EquatorialCoordinates) {
	now := c.now()
	skyAltAz := skymath.EquatorialToHorizontal(target, c.observer, now)

	c.mu.Lock()
	mode := c.mode
	cameraAltAz := c.cameraAltAz
	c.mu.Unlock()

	hasCamera := mode == CameraOnly || mode == CameraAndMotors
	hasMotors := mode == MotorsOnly || mode == CameraAndMotors

	if hasCamera {
		c.cameraHandler.AddPointing(skyAltAz, cameraAltAz)
	}
	if hasMotors && c.alt != nil && c.az != nil {
		motorAltAz := skymath.HorizontalCoordinates{Altitude: c.alt.Position(), Azimuth: c.az.Position()}
		c.motorHandler.AddPointing(skyAltAz, motorAltAz)
	}
}

// SlewTo maps target to the telescope frame, estimates the slew
// duration, and re-maps the predicted arrival-time sky position to
// check it remains above the horizon before committing to the move.
// Returns false when the target is unreachable.
func (c *Controller) SlewTo(ctx context.Context, target skymath.EquatorialCoordinates) (bool, error) {
	if c.alt == nil || c.az == nil {
		return false, mounterr.New(mounterr.HardwareUnavailable, "no motors configured")
	}

	now := c.now()
	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()

	skyAltAzNow := skymath.EquatorialToHorizontal(target, c.observer, now)
	_, handler := c.selectHandler(mode, false)
	telescopeAltAz := skyAltAzNow
	if handler != nil {
		telescopeAltAz = handler.Forward(skyAltAzNow)
	}

	altTime, err := c.alt.EstimateSlewTime(telescopeAltAz.Altitude)
	if err != nil {
		return false, fmt.Errorf("controller: estimate alt slew time: %w", err)
	}
	azTime, err := c.az.EstimateSlewTime(telescopeAltAz.Azimuth)
	if err != nil {
		return false, fmt.Errorf("controller: estimate az slew time: %w", err)
	}
	slewTime := altTime
	if azTime > slewTime {
		slewTime = azTime
	}

	arrival := now.Add(time.Duration(slewTime * float64(time.Second)))
	skyAltAzArrival := skymath.EquatorialToHorizontal(target, c.observer, arrival)
	remapped := skyAltAzArrival
	if handler != nil {
		remapped = handler.Forward(skyAltAzArrival)
	}

	if event, _ := skymath.CheckHorizonEvent(c.az.Position(), remapped, c.limits); event == skymath.BelowHorizon {
		metrics.RecordSlewBlocked("horizon")
		return false, nil
	}
	if remapped.Altitude <= 0 {
		metrics.RecordSlewBlocked("horizon")
		return false, nil
	}

	if err := c.alt.Move(ctx, telescopeAltAz.Altitude, motor.High); err != nil {
		metrics.RecordSlewBlocked("error")
		return false, fmt.Errorf("controller: move alt: %w", err)
	}
	if err := c.az.Move(ctx, telescopeAltAz.Azimuth, motor.High); err != nil {
		metrics.RecordSlewBlocked("error")
		return false, fmt.Errorf("controller: move az: %w", err)
	}
	metrics.RecordSlewAccepted(time.Duration(slewTime * float64(time.Second)))
	return true, nil
}

// SlewInDirection issues an open-ended move to the respective axis
// limit in dir, at the current slew rate.
func (c *Controller) SlewInDirection(ctx context.Context, dir Direction) error {
	if c.alt == nil || c.az == nil {
		return mounterr.New(mounterr.HardwareUnavailable, "no motors configured")
	}

	c.mu.Lock()
	rate := c.rate
	c.mu.Unlock()

	metrics.RecordNudge(dir.String())

	switch dir {
	case North:
		return c.alt.Move(ctx, 90, rate)
	case South:
		return c.alt.Move(ctx, 0, rate)
	case East:
		return c.az.Move(ctx, c.az.Position()+90, rate)
	case West:
		return c.az.Move(ctx, c.az.Position()-90, rate)
	default:
		return mounterr.ErrInvalidDirection
	}
}

// StopSlew stops both motors concurrently.
func (c *Controller) StopSlew(ctx context.Context) error {
	if c.alt == nil || c.az == nil {
		return mounterr.New(mounterr.HardwareUnavailable, "no motors configured")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs <- c.alt.StopMotion(ctx) }()
	go func() { defer wg.Done(); errs <- c.az.StopMotion(ctx) }()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return fmt.Errorf("controller: stop slew: %w", err)
		}
	}
	return nil
}
