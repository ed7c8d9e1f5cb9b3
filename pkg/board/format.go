package board

import (
	"fmt"
	"strings"
)

// Flight carries the fields shown on a notification frame.
// Zero values render as "N/A" or are omitted.
type Flight struct {
	// Callsign is the flight identifier (e.g. "BAW123")
	Callsign string

	// Registration is the tail number, when known
	Registration string

	// Operator is the airline or registered owner, when known
	Operator string

	// Country is the aircraft's country of registration
	Country string

	// AircraftType is the human-readable airframe description
	AircraftType string

	// AltitudeFt is the altitude in feet (0 renders as N/A)
	AltitudeFt float64

	// GroundSpeedKt is the ground speed in knots (0 renders as N/A)
	GroundSpeedKt float64

	// HeadingDeg is the true track in degrees (0 renders as N/A)
	HeadingDeg float64
}

// FormatFlight lays out a flight notification as six display lines:
// callsign and registration, operator and country, airframe type,
// then altitude, speed, and heading.
func FormatFlight(f Flight) []string {
	callsign := f.Callsign
	if callsign == "" {
		callsign = "UNKNOWN"
	}

	aircraftType := f.AircraftType
	if aircraftType == "" {
		aircraftType = "Unknown"
	}

	altitude := "N/A"
	if f.AltitudeFt != 0 {
		altitude = fmt.Sprintf("%s ft", groupThousands(int(f.AltitudeFt)))
	}
	speed := "N/A"
	if f.GroundSpeedKt != 0 {
		speed = fmt.Sprintf("%d knots", int(f.GroundSpeedKt))
	}
	heading := "N/A"
	if f.HeadingDeg != 0 {
		heading = fmt.Sprintf("%d°", int(f.HeadingDeg))
	}

	lines := []string{
		joinFields(callsign, f.Registration, "   "),
		joinFields(f.Operator, f.Country, "  "),
		aircraftType,
		altitude,
		speed,
		heading,
	}
	for i, line := range lines {
		lines[i] = truncate(line, Columns)
	}
	return lines
}

// FlightFrame encodes a flight notification into a display frame.
func FlightFrame(f Flight) Frame {
	return Encode(strings.Join(FormatFlight(f), "\n"))
}

// joinFields concatenates two fields with a separator, dropping the
// separator when either side is empty.
func joinFields(a, b, sep string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + sep + b
	}
}

// truncate clips a string to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// groupThousands formats an integer with comma grouping (e.g. 22750
// becomes "22,750").
func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
