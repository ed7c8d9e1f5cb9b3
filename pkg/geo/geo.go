// Package geo provides the geographic primitives for geofenced aircraft
// detection: WGS84 positions, a circular fence, great-circle distance, and
// the rectangular bounding box used to narrow upstream queries.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// Constants for geographic calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmPerDegreeLat is the approximate north-south extent of one degree of
	// latitude. Used for bounding box estimation only.
	KmPerDegreeLat = 111.32
)

// ErrInvalidInput marks a coordinate or radius that is out of range.
// Callers can detect it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// Position represents a point on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Position struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// Validate checks that the position is within WGS84 bounds.
func (p Position) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %.4f out of range [-90, 90]: %w", p.Latitude, ErrInvalidInput)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %.4f out of range [-180, 180]: %w", p.Longitude, ErrInvalidInput)
	}
	return nil
}

// Fence is a circular geographic region defined by a center and a radius.
// A fence is immutable for the lifetime of a monitoring session.
type Fence struct {
	// Center is the fence center point
	Center Position

	// RadiusKm is the fence radius in kilometers (must be > 0)
	RadiusKm float64
}

// NewFence validates the center and radius and returns a fence.
func NewFence(center Position, radiusKm float64) (Fence, error) {
	if err := center.Validate(); err != nil {
		return Fence{}, fmt.Errorf("fence center: %w", err)
	}
	if radiusKm <= 0 {
		return Fence{}, fmt.Errorf("fence radius %.2f must be positive: %w", radiusKm, ErrInvalidInput)
	}
	return Fence{Center: center, RadiusKm: radiusKm}, nil
}

// Contains reports whether the position lies inside the fence.
// The boundary is inclusive: a point exactly RadiusKm from the center is
// considered inside.
func (f Fence) Contains(p Position) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	return DistanceKm(f.Center, p) <= f.RadiusKm, nil
}

// BoundingBox is the rectangular region enclosing a circular fence.
// Upstream position APIs take rectangular queries, so the circle is
// widened to its enclosing box and re-narrowed locally with Contains.
type BoundingBox struct {
	// MinLatitude is the southern edge in decimal degrees
	MinLatitude float64

	// MaxLatitude is the northern edge in decimal degrees
	MaxLatitude float64

	// MinLongitude is the western edge in decimal degrees
	MinLongitude float64

	// MaxLongitude is the eastern edge in decimal degrees
	MaxLongitude float64
}

// BoundingBox returns the smallest box that encloses the fence circle.
// One degree of longitude shrinks with the cosine of the latitude, so the
// east-west extent is widened accordingly. Edges are clamped to WGS84
// bounds near the poles and the antimeridian.
func (f Fence) BoundingBox() BoundingBox {
	latDelta := f.RadiusKm / KmPerDegreeLat

	kmPerDegreeLon := KmPerDegreeLat * math.Cos(f.Center.Latitude*DegreesToRadians)
	lonDelta := 180.0
	if kmPerDegreeLon > 0 {
		lonDelta = f.RadiusKm / kmPerDegreeLon
	}

	return BoundingBox{
		MinLatitude:  math.Max(f.Center.Latitude-latDelta, -90),
		MaxLatitude:  math.Min(f.Center.Latitude+latDelta, 90),
		MinLongitude: math.Max(f.Center.Longitude-lonDelta, -180),
		MaxLongitude: math.Min(f.Center.Longitude+lonDelta, 180),
	}
}

// DistanceKm calculates the great-circle distance between two points.
// Uses the Haversine formula for accuracy over short and long distances.
// Returns distance in kilometers.
func DistanceKm(from, to Position) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lon1Rad := from.Longitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians
	lon2Rad := to.Longitude * DegreesToRadians

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	// Haversine formula
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}
