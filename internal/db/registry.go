package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/acollins/skyboard/pkg/detector"
	"github.com/acollins/skyboard/pkg/metadata"
)

// Registry serves aircraft metadata from the local mirror and records
// detections. It implements metadata.Source and detector.DetectionSink.
type Registry struct {
	db *DB
}

// NewRegistry creates a registry over an open database.
func NewRegistry(db *DB) *Registry {
	return &Registry{db: db}
}

// Lookup returns the mirrored registry record for an aircraft.
// Returns metadata.ErrNotFound when the aircraft has never been stored.
func (r *Registry) Lookup(ctx context.Context, icao24 string) (metadata.Aircraft, error) {
	icao := metadata.NormalizeICAO(icao24)

	var meta metadata.Aircraft
	err := r.db.QueryRowContext(ctx,
		`SELECT icao24, registration, manufacturer, type, operator, fetched_at
		 FROM aircraft_registry
		 WHERE icao24 = $1`,
		icao,
	).Scan(&meta.ICAO24, &meta.Registration, &meta.Manufacturer, &meta.Type,
		&meta.Operator, &meta.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return metadata.Aircraft{}, fmt.Errorf("registry %s: %w", icao, metadata.ErrNotFound)
	}
	if err != nil {
		return metadata.Aircraft{}, fmt.Errorf("failed to query registry: %w", err)
	}
	return meta, nil
}

// Store upserts a registry record, keeping the mirror current with
// whatever the public registries returned.
func (r *Registry) Store(ctx context.Context, meta metadata.Aircraft) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO aircraft_registry (
			icao24, registration, manufacturer, type, operator, fetched_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (icao24) DO UPDATE SET
			registration = EXCLUDED.registration,
			manufacturer = EXCLUDED.manufacturer,
			type = EXCLUDED.type,
			operator = EXCLUDED.operator,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = NOW()`,
		metadata.NormalizeICAO(meta.ICAO24), meta.Registration, meta.Manufacturer,
		meta.Type, meta.Operator, meta.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store registry record: %w", err)
	}
	return nil
}

// RecordDetection appends one announced detection to the history.
func (r *Registry) RecordDetection(ctx context.Context, det detector.Detection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sightings (
			icao24, callsign, latitude, longitude, altitude_ft, distance_km, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		metadata.NormalizeICAO(det.State.ICAO24), det.State.Callsign,
		det.State.Position.Latitude, det.State.Position.Longitude,
		det.State.AltitudeFt, det.DistanceKm, det.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record sighting: %w", err)
	}
	return nil
}

// SightingCount returns how many detections were recorded since the
// cutoff.
func (r *Registry) SightingCount(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sightings WHERE detected_at >= $1`, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}
	return count, nil
}

// MirroringSource wraps an upstream metadata source and writes every hit
// into the local mirror. Lookup goes to the mirror first; an upstream
// store failure is ignored so a broken database never blocks enrichment.
type MirroringSource struct {
	registry *Registry
	upstream metadata.Source
}

// NewMirroringSource creates a mirror-through source.
func NewMirroringSource(registry *Registry, upstream metadata.Source) *MirroringSource {
	return &MirroringSource{registry: registry, upstream: upstream}
}

// Lookup consults the mirror, then the upstream source, storing upstream
// hits for next time. Mirror errors fall through to the upstream.
func (s *MirroringSource) Lookup(ctx context.Context, icao24 string) (metadata.Aircraft, error) {
	meta, err := s.registry.Lookup(ctx, icao24)
	if err == nil {
		return meta, nil
	}

	meta, err = s.upstream.Lookup(ctx, icao24)
	if err != nil {
		return metadata.Aircraft{}, err
	}
	_ = s.registry.Store(ctx, meta)
	return meta, nil
}
