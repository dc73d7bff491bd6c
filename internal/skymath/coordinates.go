// Package skymath is the AltAz⇄RaDec coordinate-math collaborator the
// controller delegates to — every timestamped position read in this
// repository flows through it.
package skymath

import (
	"math"
)

const (
	DegreesToRadians = math.Pi / 180.0
	RadiansToDegrees = 180.0 / math.Pi
)

// Geographic is a position on Earth's surface (WGS84).
type Geographic struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// HorizontalCoordinates is a local AltAz position: altitude above the
// horizon and azimuth from north, both in degrees.
type HorizontalCoordinates struct {
	Altitude float64
	Azimuth  float64
}

// EquatorialCoordinates is a sky-fixed RaDec position: right ascension
// in decimal hours, declination in decimal degrees.
type EquatorialCoordinates struct {
	RightAscension float64
	Declination    float64
}

// Observer is the geographic location all AltAz⇄RaDec conversions are
// relative to.
type Observer struct {
	Location Geographic
}

// ToRadians converts Geographic to (latRad, lonRad, altMeters).
func (g Geographic) ToRadians() (float64, float64, float64) {
	return g.Latitude * DegreesToRadians, g.Longitude * DegreesToRadians, g.Altitude
}

// ToRadians converts HorizontalCoordinates to (altRad, azRad).
func (h HorizontalCoordinates) ToRadians() (float64, float64) {
	return h.Altitude * DegreesToRadians, h.Azimuth * DegreesToRadians
}

// ToHorizontalDegrees converts radians to HorizontalCoordinates degrees.
func ToHorizontalDegrees(altRad, azRad float64) HorizontalCoordinates {
	return HorizontalCoordinates{
		Altitude: altRad * RadiansToDegrees,
		Azimuth:  azRad * RadiansToDegrees,
	}
}

// ToRadians converts EquatorialCoordinates to (raRad, decRad). RA is
// converted from hours to radians (1 hour = 15 degrees).
func (e EquatorialCoordinates) ToRadians() (float64, float64) {
	raRad := e.RightAscension * 15.0 * DegreesToRadians
	decRad := e.Declination * DegreesToRadians
	return raRad, decRad
}

// ToEquatorialDegrees converts radians to EquatorialCoordinates, with RA
// in hours and Dec in degrees.
func ToEquatorialDegrees(raRad, decRad float64) EquatorialCoordinates {
	return EquatorialCoordinates{
		RightAscension: (raRad * RadiansToDegrees) / 15.0,
		Declination:    decRad * RadiansToDegrees,
	}
}

// NormalizeAzimuth reduces azimuth into [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// NormalizeRA reduces right ascension into [0, 24).
func NormalizeRA(ra float64) float64 {
	raHours := math.Mod(ra, 24.0)
	if raHours < 0 {
		raHours += 24.0
	}
	return raHours
}

// WrapAltitude reduces a general delta angle into [-180, 180).
func WrapAltitude(angle float64) float64 {
	wrapped := math.Mod(angle+180, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped - 180
}
