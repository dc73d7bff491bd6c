package trajectory

import (
	"math"
	"testing"
)

const testTolerance = 1e-6

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= testTolerance
}

func TestPlanAtRestZeroTarget(t *testing.T) {
	segments, err := Plan(0, 0, 0, 1e5, 5e4)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d: %+v", len(segments), segments)
	}
	s := segments[0]
	if s.StartTime != 0 || s.StartPosition != 0 || s.StartVelocity != 0 || s.Acceleration != 0 {
		t.Errorf("expected zero segment, got %+v", s)
	}
}

func TestPlanCruiseReachable(t *testing.T) {
	segments, err := Plan(0, 0, 1e6, 1e5, 5e4)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("expected 4 segments, got %d: %+v", len(segments), segments)
	}

	checkAt(t, segments, 1, 25000, 50000)
	checkAt(t, segments, 2, 100000, 100000)
	checkAt(t, segments, 10, 900000, 100000)
	checkAt(t, segments, 11, 975000, 50000)
	checkAt(t, segments, 12, 1000000, 0)

	last := segments[len(segments)-1]
	if !approxEqual(last.StartVelocity, 0) || !approxEqual(last.Acceleration, 0) {
		t.Errorf("final segment must be at rest, got %+v", last)
	}
	if !approxEqual(last.StartPosition, 1e6) {
		t.Errorf("final segment must be at target, got %+v", last)
	}
}

func TestPlanCruiseUnreachableTriangular(t *testing.T) {
	segments, err := Plan(0, 0, 100000, 1e5, 5e4)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segments), segments)
	}

	apex := segments[1]
	if !approxEqual(apex.StartTime, math.Sqrt(2)) {
		t.Errorf("expected apex around t=1.414, got %v", apex.StartTime)
	}

	last := segments[len(segments)-1]
	if !approxEqual(last.StartTime, 2*math.Sqrt(2)) {
		t.Errorf("expected target reached around t=2.83, got %v", last.StartTime)
	}
	if !approxEqual(last.StartVelocity, 0) || !approxEqual(last.StartPosition, 100000) {
		t.Errorf("final segment must be at rest at target, got %+v", last)
	}
}

func TestPlanRetargetMidCruise(t *testing.T) {
	segments, err := Plan(0, 0, 1e6, 1e5, 5e4)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}

	seg := activeSegment(segments, 3)
	pos, vel := AtTime(seg, 3-seg.StartTime)

	reSegments, err := Plan(pos, vel, 100000, 1e5, 5e4)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	last := reSegments[len(reSegments)-1]
	if !approxEqual(last.StartPosition, 100000) || !approxEqual(last.StartVelocity, 0) {
		t.Errorf("expected retarget to settle at 100000, got %+v", last)
	}
	if last.StartTime <= 0 {
		t.Errorf("expected positive settling time, got %v", last.StartTime)
	}
}

func TestPlanStopDuringCruise(t *testing.T) {
	segments, err := Plan(0, 0, 1e6, 1e5, 5e4)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	seg := activeSegment(segments, 3)
	pos, vel := AtTime(seg, 3-seg.StartTime)
	if !approxEqual(pos, 200000) || !approxEqual(vel, 100000) {
		t.Fatalf("precondition failed: pos=%v vel=%v", pos, vel)
	}

	stopPos := vel * vel / (2 * 5e4)
	stopSegments, err := Plan(pos, vel, pos+stopPos, 1e5, 5e4)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	last := stopSegments[len(stopSegments)-1]
	if !approxEqual(last.StartVelocity, 0) {
		t.Errorf("expected zero velocity at stop, got %v", last.StartVelocity)
	}
	if !approxEqual(last.StartPosition, 200000+stopPos) {
		t.Errorf("expected stop position around %v, got %v", 200000+stopPos, last.StartPosition)
	}
}

func TestPlanRejectsNonPositiveLimits(t *testing.T) {
	if _, err := Plan(0, 0, 1, 0, 1); err == nil {
		t.Errorf("expected error for zero max velocity")
	}
	if _, err := Plan(0, 0, 1, 1, 0); err == nil {
		t.Errorf("expected error for zero max acceleration")
	}
	if _, err := Plan(0, 0, 1, 1, -1); err == nil {
		t.Errorf("expected error for negative max acceleration")
	}
}

func TestPlanContinuity(t *testing.T) {
	segments, err := Plan(-500, 120, 900000, 2e4, 9e3)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	for i := 1; i < len(segments); i++ {
		prev := segments[i-1]
		cur := segments[i]
		pos, vel := AtTime(prev, cur.StartTime-prev.StartTime)
		if !approxEqual(pos, cur.StartPosition) {
			t.Errorf("segment %d discontinuous in position: %v != %v", i, pos, cur.StartPosition)
		}
		if !approxEqual(vel, cur.StartVelocity) {
			t.Errorf("segment %d discontinuous in velocity: %v != %v", i, vel, cur.StartVelocity)
		}
	}
}

func checkAt(t *testing.T, segments []Segment, at, wantPos, wantVel float64) {
	t.Helper()
	seg := activeSegment(segments, at)
	pos, vel := AtTime(seg, at-seg.StartTime)
	if !approxEqual(pos, wantPos) {
		t.Errorf("at t=%v: expected position %v, got %v", at, wantPos, pos)
	}
	if !approxEqual(vel, wantVel) {
		t.Errorf("at t=%v: expected velocity %v, got %v", at, wantVel, vel)
	}
}

// activeSegment returns the last segment whose StartTime <= at.
func activeSegment(segments []Segment, at float64) Segment {
	chosen := segments[0]
	for _, s := range segments {
		if s.StartTime <= at {
			chosen = s
		}
	}
	return chosen
}
