// Package detector runs the geofence watch loop: polling live positions,
// deciding which aircraft are new arrivals, enriching them with registry
// metadata, and pushing one notification per aircraft to the display.
package detector

import (
	"sync"
	"time"

	"github.com/acollins/skyboard/pkg/metadata"
)

// Tracker remembers which aircraft have already been announced, so each
// one is notified at most once per session.
//
// An optional re-arm window lets an aircraft notify again after it has
// been absent long enough (a training flight doing circuits, a helicopter
// returning later in the day). Zero disables re-arming, which matches the
// one-shot behavior most installs want.
type Tracker struct {
	mu sync.Mutex

	// rearmAfter is how long since the last sighting before an aircraft
	// may notify again; zero means never
	rearmAfter time.Duration

	notified map[string]*trackedAircraft
}

// trackedAircraft records the notification and sighting times for one
// airframe.
type trackedAircraft struct {
	notifiedAt time.Time
	lastSeen   time.Time
}

// NewTracker creates a tracker. rearmAfter of zero means an aircraft is
// never announced twice in one session.
func NewTracker(rearmAfter time.Duration) *Tracker {
	return &Tracker{
		rearmAfter: rearmAfter,
		notified:   make(map[string]*trackedAircraft),
	}
}

// ShouldNotify reports whether an aircraft seen at now is a new arrival,
// and marks it notified when it is. The first call for an address returns
// true; later calls return false until the re-arm window (if any) has
// elapsed since the aircraft was last seen.
func (t *Tracker) ShouldNotify(icao24 string, now time.Time) bool {
	key := metadata.NormalizeICAO(icao24)

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.notified[key]
	if !ok {
		t.notified[key] = &trackedAircraft{notifiedAt: now, lastSeen: now}
		return true
	}

	if t.rearmAfter > 0 && now.Sub(rec.lastSeen) >= t.rearmAfter {
		rec.notifiedAt = now
		rec.lastSeen = now
		return true
	}

	rec.lastSeen = now
	return false
}

// Count returns how many distinct aircraft have been announced this
// session.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.notified)
}

// Reset forgets all announced aircraft, re-arming every address.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notified = make(map[string]*trackedAircraft)
}
