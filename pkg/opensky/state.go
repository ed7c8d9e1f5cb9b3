package opensky

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/acollins/skyboard/pkg/geo"
)

// StateVector is a single timestamped snapshot of an aircraft's position
// and kinematics. Altitudes are in feet, speeds in knots, vertical rates
// in feet per minute.
type StateVector struct {
	// ICAO24 is the unique 24-bit ICAO aircraft address, lower-case hex
	// (e.g. "4ca1fc")
	ICAO24 string

	// Callsign is the flight number or registration, trimmed of padding
	Callsign string

	// OriginCountry is the country of registration
	OriginCountry string

	// Position is the reported WGS84 position
	Position geo.Position

	// AltitudeFt is the altitude in feet MSL (barometric, falling back
	// to geometric)
	AltitudeFt float64

	// GroundSpeedKt is the ground speed in knots
	GroundSpeedKt float64

	// HeadingDeg is the true track in degrees (0-360, 0 = North)
	HeadingDeg float64

	// VerticalRateFpm is the climb/descent rate in feet per minute
	// (positive = climbing)
	VerticalRateFpm float64

	// OnGround reports whether the aircraft is on the surface
	OnGround bool

	// Squawk is the transponder code, if broadcast
	Squawk string

	// ObservedAt is when this state was valid (UTC)
	ObservedAt time.Time
}

// State vector array indices per the OpenSky REST API.
const (
	fieldICAO24        = 0
	fieldCallsign      = 1
	fieldOriginCountry = 2
	fieldLongitude     = 5
	fieldLatitude      = 6
	fieldBaroAltitude  = 7
	fieldOnGround      = 8
	fieldVelocity      = 9
	fieldTrueTrack     = 10
	fieldVerticalRate  = 11
	fieldGeoAltitude   = 13
	fieldSquawk        = 14
)

// parseStateVector decodes one positional array from the states response.
// Returns ok=false when the record has no usable position.
func parseStateVector(raw []json.RawMessage, observed time.Time) (StateVector, bool) {
	lat, latOK := rawFloat(raw, fieldLatitude)
	lon, lonOK := rawFloat(raw, fieldLongitude)
	if !latOK || !lonOK {
		return StateVector{}, false
	}

	sv := StateVector{
		ICAO24:        strings.ToLower(rawString(raw, fieldICAO24)),
		Callsign:      strings.TrimSpace(rawString(raw, fieldCallsign)),
		OriginCountry: rawString(raw, fieldOriginCountry),
		Position:      geo.Position{Latitude: lat, Longitude: lon},
		Squawk:        rawString(raw, fieldSquawk),
		ObservedAt:    observed,
	}

	if sv.ICAO24 == "" {
		return StateVector{}, false
	}

	// Prefer barometric altitude, fall back to geometric
	if alt, ok := rawFloat(raw, fieldBaroAltitude); ok {
		sv.AltitudeFt = alt * metersToFeet
	} else if alt, ok := rawFloat(raw, fieldGeoAltitude); ok {
		sv.AltitudeFt = alt * metersToFeet
	}

	if v, ok := rawFloat(raw, fieldVelocity); ok {
		sv.GroundSpeedKt = v * metersPerSecToKnots
	}
	if track, ok := rawFloat(raw, fieldTrueTrack); ok {
		sv.HeadingDeg = track
	}
	if vr, ok := rawFloat(raw, fieldVerticalRate); ok {
		sv.VerticalRateFpm = vr * metersPerSecToFpm
	}
	if og, ok := rawBool(raw, fieldOnGround); ok {
		sv.OnGround = og
	}

	return sv, true
}

// rawString extracts a string field, tolerating null and absent values.
func rawString(raw []json.RawMessage, idx int) string {
	if idx >= len(raw) || raw[idx] == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw[idx], &s); err != nil {
		return ""
	}
	return s
}

// rawFloat extracts a numeric field, tolerating null and absent values.
func rawFloat(raw []json.RawMessage, idx int) (float64, bool) {
	if idx >= len(raw) || raw[idx] == nil {
		return 0, false
	}
	var f *float64
	if err := json.Unmarshal(raw[idx], &f); err != nil || f == nil {
		return 0, false
	}
	return *f, true
}

// rawBool extracts a boolean field, tolerating null and absent values.
func rawBool(raw []json.RawMessage, idx int) (bool, bool) {
	if idx >= len(raw) || raw[idx] == nil {
		return false, false
	}
	var b *bool
	if err := json.Unmarshal(raw[idx], &b); err != nil || b == nil {
		return false, false
	}
	return *b, true
}
