package protocol

import (
	"context"
	"strings"
	"testing"

	"github.com/skywatch/altaz-mount/internal/controller"
	fakemotor "github.com/skywatch/altaz-mount/internal/motor/fake"
	"github.com/skywatch/altaz-mount/internal/motor"
	"github.com/skywatch/altaz-mount/internal/skymath"
)

func newTestController(t *testing.T) *controller.Controller {
	t.Helper()
	altBackend := fakemotor.New(fakemotor.Config{MaxAccelerationSteps: 50000})
	azBackend := fakemotor.New(fakemotor.Config{MaxAccelerationSteps: 50000})
	alt := motor.NewAxis("alt", altBackend, motor.WrapAltitude, 1440.0, 720.0, 0.001)
	az := motor.NewAxis("az", azBackend, motor.WrapAzimuth, 1440.0, 720.0, 0.001)
	observer := skymath.Observer{Location: skymath.Geographic{Latitude: 40.0, Longitude: -105.0}}
	c := controller.New(alt, az, nil, nil, observer)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { c.Stop(context.Background()) })
	return c
}

func TestDispatchSetSiteAndSync(t *testing.T) {
	c := newTestController(t)
	r := NewResponder(c)
	ctx := context.Background()

	if got := r.Dispatch(ctx, "St+40*30#"); got != "1" {
		t.Errorf("St reply = %q, want 1", got)
	}
	if got := r.Dispatch(ctx, "Sg003*53#"); got != "1" {
		t.Errorf("Sg reply = %q, want 1", got)
	}

	if got := r.Dispatch(ctx, "Sr10:00:00#"); got != defaultReply {
		t.Errorf("Sr reply = %q, want %s", got, defaultReply)
	}
	if got := r.Dispatch(ctx, "Sd+20*00:00#"); got != defaultReply {
		t.Errorf("Sd reply = %q, want %s", got, defaultReply)
	}
	if got := r.Dispatch(ctx, "CM#"); !strings.HasSuffix(got, "#") {
		t.Errorf("CM reply = %q, expected to end in #", got)
	}
}

func TestDispatchUnknownVerbReturnsEmpty(t *testing.T) {
	c := newTestController(t)
	r := NewResponder(c)
	if got := r.Dispatch(context.Background(), "ZZtop#"); got != "" {
		t.Errorf("unknown verb reply = %q, want empty", got)
	}
}

func TestDispatchGetRAandDec(t *testing.T) {
	c := newTestController(t)
	r := NewResponder(c)
	ctx := context.Background()

	ra := r.Dispatch(ctx, "GR#")
	if !strings.HasSuffix(ra, "#") {
		t.Errorf("GR reply = %q, expected to end in #", ra)
	}
	dec := r.Dispatch(ctx, "GD#")
	if !strings.HasSuffix(dec, "#") {
		t.Errorf("GD reply = %q, expected to end in #", dec)
	}
}

func TestDispatchStopSlewReturnsEmpty(t *testing.T) {
	c := newTestController(t)
	r := NewResponder(c)
	ctx := context.Background()

	r.Dispatch(ctx, "Mn#")
	if got := r.Dispatch(ctx, "Q#"); got != "" {
		t.Errorf("Q# reply = %q, want empty", got)
	}
}

func TestDispatchMoveSlew(t *testing.T) {
	c := newTestController(t)
	r := NewResponder(c)
	ctx := context.Background()

	r.Dispatch(ctx, "Sr10:00:00#")
	r.Dispatch(ctx, "Sd+20*00:00#")
	got := r.Dispatch(ctx, "MS#")
	if got != slewPossible && got != slewImpossible {
		t.Errorf("MS reply = %q, want 0 or 1", got)
	}
}
