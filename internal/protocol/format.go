// Package protocol implements the LX200 ASCII command protocol: RA/Dec
// and longitude/latitude string formats, the verb dispatch table, and
// the TCP server loop with byte-at-a-time line framing.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skywatch/altaz-mount/internal/mounterr"
)

// ParseRA parses an "HH:MM:SS" right ascension string into degrees
// (0-360).
func ParseRA(s string) (float64, error) {
	h, m, sec, err := parseHMS(s)
	if err != nil {
		return 0, fmt.Errorf("protocol: parse RA %q: %w", s, err)
	}
	hours := h + m/60 + sec/3600
	return hours * 15.0, nil
}

// FormatRA renders degrees (0-360) as "HH:MM:SS".
func FormatRA(degrees float64) string {
	hours := normalizeHours(degrees / 15.0)
	h, m, s := splitHMS(hours)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseDec parses a "sDD*MM:SS" (or "sDD:MM:SS") declination string
// into degrees (-90 to 90). Either '*' or ':' is accepted as the
// degree/minute separator, per spec.
func ParseDec(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("protocol: empty declination")
	}
	sign := 1.0
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1.0
		s = s[1:]
	}
	s = strings.ReplaceAll(s, "*", ":")
	d, m, sec, err := parseHMS(s)
	if err != nil {
		return 0, fmt.Errorf("protocol: parse declination %q: %w", s, err)
	}
	return sign * (d + m/60 + sec/3600), nil
}

// FormatDec renders degrees (-90 to 90) as "sDD*MM:SS".
func FormatDec(degrees float64) string {
	sign := "+"
	if degrees < 0 {
		sign = "-"
		degrees = -degrees
	}
	d, m, s := splitHMS(degrees)
	return fmt.Sprintf("%s%02d*%02d:%02d", sign, d, m, s)
}

// ParseLongitude parses an LX200 longitude string (west-positive) into
// an ISO-convention (east-positive) degree value.
func ParseLongitude(s string) (float64, error) {
	lx200, err := parseSignedDegMin(s)
	if err != nil {
		return 0, fmt.Errorf("protocol: parse longitude %q: %w", s, err)
	}
	return -lx200, nil
}

// FormatLongitude renders an ISO-convention (east-positive) degree
// value as an LX200 longitude string (west-positive).
func FormatLongitude(degrees float64) string {
	return formatSignedDegMin(-degrees)
}

// ParseLatitude parses an LX200 latitude string "sDD*MM".
func ParseLatitude(s string) (float64, error) {
	lat, err := parseSignedDegMin(s)
	if err != nil {
		return 0, fmt.Errorf("protocol: parse latitude %q: %w", s, err)
	}
	return lat, nil
}

// FormatLatitude renders a degree value as an LX200 latitude string
// "sDD*MM".
func FormatLatitude(degrees float64) string {
	return formatSignedDegMin(degrees)
}

func parseSignedDegMin(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	sign := 1.0
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1.0
		s = s[1:]
	}
	s = strings.ReplaceAll(s, "*", ":")
	parts := strings.Split(s, ":")
	deg, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	min := 0.0
	if len(parts) > 1 {
		min, err = strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, err
		}
	}
	return sign * (deg + min/60), nil
}

func formatSignedDegMin(degrees float64) string {
	sign := "+"
	if degrees < 0 {
		sign = "-"
		degrees = -degrees
	}
	d := int(degrees)
	m := int((degrees - float64(d)) * 60)
	return fmt.Sprintf("%s%02d*%02d", sign, d, m)
}

// parseHMS parses a "H:M:S" (or "D:M:S") triplet, tolerating a missing
// seconds field.
func parseHMS(s string) (h, m, sec float64, err error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, 0, fmt.Errorf("expected at least H:M")
	}
	if h, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return 0, 0, 0, err
	}
	if m, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return 0, 0, 0, err
	}
	if len(parts) > 2 {
		if sec, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0, 0, 0, err
		}
	}
	return h, m, sec, nil
}

func splitHMS(value float64) (h, m, s int) {
	h = int(value)
	remMin := (value - float64(h)) * 60
	m = int(remMin)
	s = int((remMin - float64(m)) * 60)
	return h, m, s
}

func normalizeHours(hours float64) float64 {
	for hours < 0 {
		hours += 24
	}
	for hours >= 24 {
		hours -= 24
	}
	return hours
}

// errInvalidArgument wraps a parse failure as the protocol's
// InvalidArgument error kind.
func errInvalidArgument(verb string, err error) error {
	return mounterr.Wrap(mounterr.InvalidArgument, fmt.Errorf("%s: %w", verb, err))
}
