// Package metadata resolves static aircraft attributes (registration, type,
// operator) by ICAO24 address and caches them, since the upstream lookup
// services are rate-limited and the attributes almost never change.
package metadata

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound reports that no metadata exists for an aircraft.
// It is a permanent miss for the current tick: the caller skips enrichment
// and tries again on a later sighting.
var ErrNotFound = errors.New("aircraft metadata not found")

// Aircraft holds the static attributes of one airframe.
// Immutable once cached, until the cache entry expires and is refreshed.
type Aircraft struct {
	// ICAO24 is the lower-case hex aircraft address this record describes
	ICAO24 string

	// Registration is the tail number (e.g. "G-EUYV")
	Registration string

	// Manufacturer is the airframe manufacturer (e.g. "Airbus")
	Manufacturer string

	// Type is the model or ICAO type designator (e.g. "A319-131")
	Type string

	// Operator is the operating airline or registered owner
	Operator string

	// FetchedAt is when the record was retrieved (UTC)
	FetchedAt time.Time
}

// Description returns the human-readable airframe type, combining
// manufacturer and model when both are known.
func (a Aircraft) Description() string {
	switch {
	case a.Manufacturer != "" && a.Type != "":
		return a.Manufacturer + " " + a.Type
	case a.Manufacturer != "":
		return a.Manufacturer
	default:
		return a.Type
	}
}

// Source looks up metadata for a single aircraft.
// Implementations return ErrNotFound when the aircraft is unknown.
type Source interface {
	Lookup(ctx context.Context, icao24 string) (Aircraft, error)
}

// NormalizeICAO canonicalizes an ICAO24 address for use as a key.
// Addresses are case-insensitive; lower-case hex is the canonical form.
func NormalizeICAO(icao24 string) string {
	return strings.ToLower(strings.TrimSpace(icao24))
}

// ChainSource tries several sources in order, returning the first hit.
// A source returning ErrNotFound falls through to the next; other errors
// also fall through but are remembered, so a transient failure in one
// source does not mask a hit in another.
type ChainSource struct {
	sources []Source
}

// NewChainSource creates a source that consults the given sources in order.
func NewChainSource(sources ...Source) *ChainSource {
	return &ChainSource{sources: sources}
}

// Lookup consults each source in order. If every source misses, the result
// is ErrNotFound; if any source failed for another reason, that error is
// returned instead so the caller can retry.
func (c *ChainSource) Lookup(ctx context.Context, icao24 string) (Aircraft, error) {
	var lastErr error
	for _, src := range c.sources {
		meta, err := src.Lookup(ctx, icao24)
		if err == nil {
			return meta, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return Aircraft{}, lastErr
	}
	return Aircraft{}, ErrNotFound
}
