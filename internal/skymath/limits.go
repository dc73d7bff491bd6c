package skymath

import "math"

// HorizonEvent describes what a target's position implies for tracking
// safety against an alt/az mount's altitude/azimuth guard rails.
type HorizonEvent int

const (
	// NoHorizonEvent means tracking or slewing can continue normally.
	NoHorizonEvent HorizonEvent = iota

	// BelowHorizon means the target is below the configured minimum
	// altitude and is unreachable.
	BelowHorizon

	// NearZenith means the target is above the configured maximum
	// altitude, where azimuth tracking rate becomes singular.
	NearZenith

	// AzimuthWrapLimit means the move would cross a physical azimuth
	// stop some mounts are built with.
	AzimuthWrapLimit
)

// TrackingLimits bounds the altitude (and, optionally, azimuth) range a
// mount is willing to track or slew into.
type TrackingLimits struct {
	// MinAltitude in degrees; below this a target is Unreachable.
	MinAltitude float64

	// MaxAltitude in degrees; near-zenith tracking becomes unstable.
	MaxAltitude float64

	// AzimuthWrapLimit in degrees of travel per move; 0 means no limit
	// (full 360° rotation is permitted).
	AzimuthWrapLimit float64
}

// DefaultTrackingLimits returns conservative limits suitable for most
// alt/az mounts.
func DefaultTrackingLimits() TrackingLimits {
	return TrackingLimits{
		MinAltitude:      0.0,
		MaxAltitude:      89.0,
		AzimuthWrapLimit: 0.0,
	}
}

// CheckHorizonEvent classifies a target position against limits. A
// target's azimuth is only checked against AzimuthWrapLimit when moving
// there from currentAz would exceed it.
func CheckHorizonEvent(currentAz float64, target HorizontalCoordinates, limits TrackingLimits) (HorizonEvent, string) {
	if target.Altitude < limits.MinAltitude {
		return BelowHorizon, "target is below the minimum tracking altitude"
	}
	if target.Altitude > limits.MaxAltitude {
		return NearZenith, "target is within the near-zenith exclusion zone"
	}
	if limits.AzimuthWrapLimit > 0 && azimuthDifference(currentAz, target.Azimuth) > limits.AzimuthWrapLimit {
		return AzimuthWrapLimit, "move would cross the configured azimuth wrap limit"
	}
	return NoHorizonEvent, "within tracking limits"
}

// azimuthDifference returns the smallest angle between two azimuths,
// handling wrap-around (359° to 1° is 2°, not 358°).
func azimuthDifference(az1, az2 float64) float64 {
	diff := math.Abs(az2 - az1)
	if diff > 180.0 {
		diff = 360.0 - diff
	}
	return diff
}
