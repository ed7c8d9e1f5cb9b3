package detector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acollins/skyboard/pkg/board"
	"github.com/acollins/skyboard/pkg/geo"
	"github.com/acollins/skyboard/pkg/metadata"
	"github.com/acollins/skyboard/pkg/opensky"
	"github.com/acollins/skyboard/pkg/retry"
)

// DefaultSummaryEvery is how many ticks pass between periodic stats
// summaries in the log.
const DefaultSummaryEvery = 100

// PositionSource supplies live aircraft state vectors for a bounding box.
type PositionSource interface {
	StatesInBox(ctx context.Context, box geo.BoundingBox) ([]opensky.StateVector, error)
}

// DetectionSink receives announced detections for persistence. Sink
// failures are logged but never stop the loop.
type DetectionSink interface {
	RecordDetection(ctx context.Context, det Detection) error
}

// Detection is one aircraft observed inside the fence, enriched with
// whatever registry metadata was available.
type Detection struct {
	// State is the live position report
	State opensky.StateVector `json:"state"`

	// Meta is the registry record; zero when no registry knows the aircraft
	Meta metadata.Aircraft `json:"meta"`

	// DistanceKm is the great-circle distance from the fence center
	DistanceKm float64 `json:"distance_km"`

	// DetectedAt is when this sighting was processed (UTC)
	DetectedAt time.Time `json:"detected_at"`
}

// Config holds the watch loop parameters.
type Config struct {
	// Fence is the region to watch
	Fence geo.Fence

	// Interval is the pause between polling ticks
	Interval time.Duration

	// Retry governs polling and metadata lookup attempts
	Retry retry.Config

	// SummaryEvery is how many ticks between logged stats summaries;
	// zero means DefaultSummaryEvery
	SummaryEvery int
}

// Detector polls a position source, announces new arrivals on the
// display, and keeps session stats. Create one with New and drive it
// with Run.
type Detector struct {
	cfg     Config
	source  PositionSource
	fetcher *metadata.Fetcher
	cache   *metadata.Cache
	display board.Displayer
	sink    DetectionSink
	tracker *Tracker
	stats   *Stats
	clock   Clock
	log     zerolog.Logger

	mu           sync.RWMutex
	current      []Detection
	lastNotified *Detection
}

// Options carries the collaborators a detector needs. Clock defaults to
// the wall clock; Display may be nil to run detection without a board.
type Options struct {
	Source  PositionSource
	Fetcher *metadata.Fetcher
	Cache   *metadata.Cache
	Display board.Displayer
	Sink    DetectionSink
	Tracker *Tracker
	Stats   *Stats
	Clock   Clock
	Logger  zerolog.Logger
}

// New assembles a detector from its collaborators.
func New(cfg Config, opts Options) (*Detector, error) {
	if opts.Source == nil {
		return nil, errors.New("detector: position source is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("detector: metadata fetcher is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("detector: interval %v must be positive", cfg.Interval)
	}
	if cfg.SummaryEvery <= 0 {
		cfg.SummaryEvery = DefaultSummaryEvery
	}
	if opts.Cache == nil {
		opts.Cache = metadata.NewCache(0)
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker(0)
	}
	if opts.Stats == nil {
		opts.Stats = NewStats(nil)
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	return &Detector{
		cfg:     cfg,
		source:  opts.Source,
		fetcher: opts.Fetcher,
		cache:   opts.Cache,
		display: opts.Display,
		sink:    opts.Sink,
		tracker: opts.Tracker,
		stats:   opts.Stats,
		clock:   opts.Clock,
		log:     opts.Logger,
	}, nil
}

// Run executes the watch loop until ctx is canceled. Ticks are strictly
// sequential: a slow poll delays the next tick rather than overlapping
// it. Returns nil on clean shutdown.
func (d *Detector) Run(ctx context.Context) error {
	d.log.Info().
		Str("session_id", d.stats.SessionID()).
		Float64("center_lat", d.cfg.Fence.Center.Latitude).
		Float64("center_lon", d.cfg.Fence.Center.Longitude).
		Float64("radius_km", d.cfg.Fence.RadiusKm).
		Dur("interval", d.cfg.Interval).
		Msg("Starting aircraft detection")

	for {
		d.tick(ctx)

		if snap := d.stats.Snapshot(); snap.Checks > 0 && snap.Checks%int64(d.cfg.SummaryEvery) == 0 {
			d.logSummary(snap)
		}

		select {
		case <-ctx.Done():
			d.logSummary(d.stats.Snapshot())
			d.log.Info().Msg("Detection stopped")
			return nil
		case <-d.clock.After(d.cfg.Interval):
		}
	}
}

// tick runs one poll-filter-notify cycle. The check counter advances
// whether or not the poll succeeds.
func (d *Detector) tick(ctx context.Context) {
	d.stats.RecordCheck()

	box := d.cfg.Fence.BoundingBox()

	out := retry.Do(ctx, d.cfg.Retry, func(ctx context.Context) ([]opensky.StateVector, error) {
		return d.source.StatesInBox(ctx, box)
	})
	if !out.Ok() {
		if errors.Is(out.Err, context.Canceled) {
			return
		}
		d.stats.RecordError()
		d.log.Warn().Err(out.Err).Int("attempts", out.Attempts).Msg("Position poll failed")
		return
	}

	now := d.clock.Now().UTC()
	inside := d.filterInside(out.Value, now)

	sort.Slice(inside, func(i, j int) bool {
		return inside[i].DistanceKm < inside[j].DistanceKm
	})

	d.stats.SetCurrent(len(inside))
	d.setCurrent(inside)

	for _, det := range inside {
		if !d.tracker.ShouldNotify(det.State.ICAO24, now) {
			continue
		}
		d.announce(ctx, det)
	}
}

// filterInside narrows bounding-box results to the fence circle.
func (d *Detector) filterInside(states []opensky.StateVector, now time.Time) []Detection {
	var inside []Detection
	for _, state := range states {
		ok, err := d.cfg.Fence.Contains(state.Position)
		if err != nil || !ok {
			continue
		}
		inside = append(inside, Detection{
			State:      state,
			DistanceKm: geo.DistanceKm(d.cfg.Fence.Center, state.Position),
			DetectedAt: now,
		})
	}
	return inside
}

// announce enriches a new arrival and pushes it to the display. Metadata
// failures degrade to a basic notification; only the display send
// decides whether the board shows anything.
func (d *Detector) announce(ctx context.Context, det Detection) {
	det.Meta = d.lookupMeta(ctx, det.State.ICAO24)
	d.stats.RecordDetection()

	d.log.Info().
		Str("icao24", det.State.ICAO24).
		Str("callsign", det.State.Callsign).
		Str("registration", det.Meta.Registration).
		Str("type", det.Meta.Description()).
		Float64("distance_km", det.DistanceKm).
		Float64("altitude_ft", det.State.AltitudeFt).
		Msg("New aircraft in fence")

	d.setLastNotified(det)

	if d.sink != nil {
		if err := d.sink.RecordDetection(ctx, det); err != nil {
			d.log.Warn().Err(err).Str("icao24", det.State.ICAO24).Msg("Detection record failed")
		}
	}

	if d.display == nil {
		return
	}
	frame := board.FlightFrame(board.Flight{
		Callsign:      strings.TrimSpace(det.State.Callsign),
		Registration:  det.Meta.Registration,
		Operator:      det.Meta.Operator,
		Country:       det.State.OriginCountry,
		AircraftType:  det.Meta.Description(),
		AltitudeFt:    det.State.AltitudeFt,
		GroundSpeedKt: det.State.GroundSpeedKt,
		HeadingDeg:    det.State.HeadingDeg,
	})
	if err := d.display.Send(ctx, frame); err != nil {
		d.stats.RecordError()
		d.log.Error().Err(err).Str("icao24", det.State.ICAO24).Msg("Display send failed")
	}
}

// lookupMeta resolves registry metadata through the cache, falling back
// to an empty record when every source fails or misses.
func (d *Detector) lookupMeta(ctx context.Context, icao24 string) metadata.Aircraft {
	if meta, ok := d.cache.Get(icao24); ok {
		return meta
	}

	out := d.fetcher.Fetch(ctx, icao24)
	if out.Ok() {
		d.cache.Put(out.Value)
		return out.Value
	}

	if errors.Is(out.Err, metadata.ErrNotFound) {
		d.log.Debug().Str("icao24", icao24).Msg("No registry record")
		return metadata.Aircraft{ICAO24: metadata.NormalizeICAO(icao24)}
	}

	d.stats.RecordError()
	d.log.Warn().Err(out.Err).
		Str("icao24", icao24).
		Int("attempts", out.Attempts).
		Msg("Metadata lookup failed")
	return metadata.Aircraft{ICAO24: metadata.NormalizeICAO(icao24)}
}

// logSummary writes the periodic stats banner.
func (d *Detector) logSummary(snap Snapshot) {
	d.log.Info().
		Int64("checks", snap.Checks).
		Int64("total_detected", snap.TotalDetected).
		Int64("errors", snap.Errors).
		Int("current", snap.Current).
		Time("started_at", snap.StartedAt).
		Msg("Session statistics")
}

// Stats returns the session stats collector.
func (d *Detector) Stats() *Stats {
	return d.stats
}

// Tracker returns the seen-aircraft tracker.
func (d *Detector) Tracker() *Tracker {
	return d.tracker
}

// Current returns the aircraft inside the fence at the last completed
// tick, nearest first.
func (d *Detector) Current() []Detection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Detection, len(d.current))
	copy(out, d.current)
	return out
}

// LastNotified returns the most recently announced aircraft, or nil when
// nothing has been announced yet.
func (d *Detector) LastNotified() *Detection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastNotified == nil {
		return nil
	}
	det := *d.lastNotified
	return &det
}

func (d *Detector) setCurrent(dets []Detection) {
	d.mu.Lock()
	d.current = dets
	d.mu.Unlock()
}

func (d *Detector) setLastNotified(det Detection) {
	d.mu.Lock()
	d.lastNotified = &det
	d.mu.Unlock()
}
