package detector

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats accumulates session counters for the watch loop and mirrors them
// into Prometheus metrics.
type Stats struct {
	mu sync.Mutex

	sessionID string
	startedAt time.Time

	checks        int64
	totalDetected int64
	errors        int64
	current       int

	promChecks   prometheus.Counter
	promDetected prometheus.Counter
	promErrors   prometheus.Counter
	promCurrent  prometheus.Gauge
}

// Snapshot is a point-in-time copy of the session counters.
type Snapshot struct {
	// SessionID identifies this detector run
	SessionID string `json:"session_id"`

	// StartedAt is when the session began (UTC)
	StartedAt time.Time `json:"started_at"`

	// Checks is the number of polling ticks completed
	Checks int64 `json:"checks"`

	// TotalDetected is the number of distinct aircraft announced
	TotalDetected int64 `json:"total_detected"`

	// Errors counts failed polls, lookups, and display sends
	Errors int64 `json:"errors"`

	// Current is the aircraft count inside the fence at the last tick
	Current int `json:"current"`
}

// NewStats creates session stats and registers its metrics with reg.
// A nil registerer skips Prometheus registration, which tests use.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		sessionID: uuid.NewString(),
		startedAt: time.Now().UTC(),
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	s.promChecks = factory.NewCounter(prometheus.CounterOpts{
		Name: "skyboard_checks_total",
		Help: "Number of geofence polling ticks completed.",
	})
	s.promDetected = factory.NewCounter(prometheus.CounterOpts{
		Name: "skyboard_aircraft_detected_total",
		Help: "Number of distinct aircraft announced this session.",
	})
	s.promErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "skyboard_errors_total",
		Help: "Number of failed polls, metadata lookups, and display sends.",
	})
	s.promCurrent = factory.NewGauge(prometheus.GaugeOpts{
		Name: "skyboard_aircraft_in_fence",
		Help: "Aircraft inside the geofence at the last tick.",
	})
	return s
}

// SessionID returns the unique identifier for this run.
func (s *Stats) SessionID() string {
	return s.sessionID
}

// RecordCheck counts one polling tick. Every tick counts, including
// ones whose poll failed.
func (s *Stats) RecordCheck() {
	s.mu.Lock()
	s.checks++
	s.mu.Unlock()

	s.promChecks.Inc()
}

// SetCurrent replaces the in-fence aircraft count after a successful
// poll. A failed poll keeps the last observed count.
func (s *Stats) SetCurrent(current int) {
	s.mu.Lock()
	s.current = current
	s.mu.Unlock()

	s.promCurrent.Set(float64(current))
}

// RecordDetection counts one newly announced aircraft.
func (s *Stats) RecordDetection() {
	s.mu.Lock()
	s.totalDetected++
	s.mu.Unlock()

	s.promDetected.Inc()
}

// RecordError counts one failed poll, lookup, or display send.
func (s *Stats) RecordError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()

	s.promErrors.Inc()
}

// Snapshot returns a copy of the counters, safe to hand to other
// goroutines.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionID:     s.sessionID,
		StartedAt:     s.startedAt,
		Checks:        s.checks,
		TotalDetected: s.totalDetected,
		Errors:        s.errors,
		Current:       s.current,
	}
}
