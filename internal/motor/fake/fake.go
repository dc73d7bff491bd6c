// Package fake provides a simulated stepper backend used for tests and
// for running the controller without physical hardware attached, driven
// by an explicit goroutine on a time.Ticker matching the position-loop
// idiom used elsewhere in this repo.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/skywatch/altaz-mount/internal/motor"
	"github.com/skywatch/altaz-mount/internal/trajectory"
)

// simulationInterval is how often the simulated stepper recomputes its
// position along the active trajectory.
const simulationInterval = 10 * time.Millisecond

// Backend is a simulated motor that executes trajectory.Plan segments
// against a wall-clock timer instead of real hardware.
type Backend struct {
	maxAccelerationSteps float64

	mu            sync.Mutex
	segments      []trajectory.Segment
	segmentStart  time.Time
	onPosition    func(float64)
	onVelocity    func(float64)

	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures a simulated backend. MaxAccelerationSteps bounds the
// acceleration used whenever a new target is set.
type Config struct {
	MaxAccelerationSteps float64
}

// New constructs a simulated stepper backend.
func New(cfg Config) *Backend {
	return &Backend{maxAccelerationSteps: cfg.MaxAccelerationSteps}
}

// Register installs this backend under tag "fake" in the motor
// registry, so config files can select it by name like any other
// driver.
func Register() {
	motor.Register("fake", func(config map[string]any) (motor.Backend, error) {
		maxAccel, _ := config["max_acceleration_steps"].(float64)
		if maxAccel <= 0 {
			maxAccel = 50000
		}
		return New(Config{MaxAccelerationSteps: maxAccel}), nil
	})
}

func (b *Backend) SetOnPositionChange(f func(float64)) {
	b.mu.Lock()
	b.onPosition = f
	b.mu.Unlock()
}

func (b *Backend) SetOnVelocityChange(f func(float64)) {
	b.mu.Lock()
	b.onVelocity = f
	b.mu.Unlock()
}

// Connect starts the internal simulation loop.
func (b *Backend) Connect(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancel = cancel
	b.done = make(chan struct{})
	b.segments = []trajectory.Segment{{StartTime: 0, StartPosition: 0, StartVelocity: 0, Acceleration: 0}}
	b.segmentStart = time.Now()
	b.mu.Unlock()

	go b.runLoop(loopCtx)
	return nil
}

// Disconnect stops the internal simulation loop.
func (b *Backend) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if done != nil {
		<-done
	}
	return nil
}

// SetTargetPositionAndVelocity replans the simulated trajectory from the
// stepper's current position/velocity toward targetSteps, bounded by
// velocitySteps as the move's maximum velocity.
func (b *Backend) SetTargetPositionAndVelocity(ctx context.Context, targetSteps, velocitySteps float64) error {
	now := time.Now()

	b.mu.Lock()
	currentPos, currentVel := b.evaluateLocked(now)
	maxVel := math.Abs(velocitySteps)
	if maxVel <= 0 {
		maxVel = math.Abs(currentVel)
	}
	if maxVel <= 0 {
		maxVel = 1
	}
	b.mu.Unlock()

	segments, err := trajectory.Plan(currentPos, currentVel, targetSteps, maxVel, b.maxAccelerationSteps)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.segments = segments
	b.segmentStart = now
	b.mu.Unlock()
	return nil
}

// evaluateLocked must be called with b.mu held.
func (b *Backend) evaluateLocked(now time.Time) (position, velocity float64) {
	elapsed := now.Sub(b.segmentStart).Seconds()
	seg := b.segments[0]
	for _, s := range b.segments {
		if s.StartTime <= elapsed {
			seg = s
		}
	}
	return trajectory.AtTime(seg, elapsed-seg.StartTime)
}

func (b *Backend) runLoop(ctx context.Context) {
	ticker := time.NewTicker(simulationInterval)
	defer ticker.Stop()
	defer func() {
		b.mu.Lock()
		done := b.done
		b.mu.Unlock()
		if done != nil {
			close(done)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.mu.Lock()
			pos, vel := b.evaluateLocked(now)
			onPosition, onVelocity := b.onPosition, b.onVelocity
			b.mu.Unlock()

			if onPosition != nil {
				onPosition(pos)
			}
			if onVelocity != nil {
				onVelocity(vel)
			}
		}
	}
}
