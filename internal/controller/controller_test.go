package controller

import (
	"context"
	"testing"
	"time"

	fakemotor "github.com/skywatch/altaz-mount/internal/motor/fake"
	"github.com/skywatch/altaz-mount/internal/motor"
	"github.com/skywatch/altaz-mount/internal/skymath"
)

func newTestAxis(name string, wrap motor.Wrap) *motor.Axis {
	backend := fakemotor.New(fakemotor.Config{MaxAccelerationSteps: 50000})
	return motor.NewAxis(name, backend, wrap, 1440.0, 720.0, 0.001)
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	alt := newTestAxis("alt", motor.WrapAltitude)
	az := newTestAxis("az", motor.WrapAzimuth)
	observer := skymath.Observer{Location: skymath.Geographic{Latitude: 40.0, Longitude: -105.0}}
	c := New(alt, az, nil, nil, observer)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { c.Stop(context.Background()) })
	return c
}

func TestInitialModeMotorsOnly(t *testing.T) {
	c := newTestController(t)
	if c.Mode() != MotorsOnly {
		t.Errorf("Mode() = %v, want MotorsOnly", c.Mode())
	}
}

func TestNoModeWithoutHardware(t *testing.T) {
	observer := skymath.Observer{}
	c := New(nil, nil, nil, nil, observer)
	if c.Mode() != NoMode {
		t.Errorf("Mode() = %v, want NoMode", c.Mode())
	}
}

func TestSlewToAndStop(t *testing.T) {
	c := newTestController(t)
	target := skymath.EquatorialCoordinates{RightAscension: 10.0, Declination: 20.0}

	reachable, err := c.SlewTo(context.Background(), target)
	if err != nil {
		t.Fatalf("SlewTo: %v", err)
	}
	if !reachable {
		t.Fatal("expected target to be reachable")
	}

	if err := c.StopSlew(context.Background()); err != nil {
		t.Fatalf("StopSlew: %v", err)
	}
}

func TestSlewToBelowHorizonUnreachable(t *testing.T) {
	c := newTestController(t)
	// A declination of -89° never rises above the horizon at this
	// observer's northern latitude, whatever the sidereal time, so the
	// slew is refused.
	target := skymath.EquatorialCoordinates{RightAscension: 180.0, Declination: -89.0}
	reachable, err := c.SlewTo(context.Background(), target)
	if err != nil {
		t.Fatalf("SlewTo: %v", err)
	}
	if reachable {
		t.Error("expected a below-horizon target to be unreachable")
	}
}

func TestGetSetRaDecRoundTrip(t *testing.T) {
	c := newTestController(t)
	target := skymath.EquatorialCoordinates{RightAscension: 45.0, Declination: 30.0}
	c.SetRaDec(target)

	got := c.GetRaDec()
	if diff := got.RightAscension - target.RightAscension; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("RightAscension = %f, want %f", got.RightAscension, target.RightAscension)
	}
	if diff := got.Declination - target.Declination; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Declination = %f, want %f", got.Declination, target.Declination)
	}
}

func TestSlewInDirectionAndStop(t *testing.T) {
	c := newTestController(t)
	if err := c.SlewInDirection(context.Background(), North); err != nil {
		t.Fatalf("SlewInDirection: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := c.StopSlew(context.Background()); err != nil {
		t.Fatalf("StopSlew: %v", err)
	}
}

func TestPositionLoopPublishesEvents(t *testing.T) {
	c := newTestController(t)
	select {
	case ev := <-c.Events():
		if ev.Mode != MotorsOnly {
			t.Errorf("event mode = %v, want MotorsOnly", ev.Mode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a position event")
	}
}

func TestSlewInDirectionWithoutMotorsFails(t *testing.T) {
	c := New(nil, nil, nil, nil, skymath.Observer{})
	if err := c.SlewInDirection(context.Background(), East); err == nil {
		t.Error("expected error when no motors are configured")
	}
}
