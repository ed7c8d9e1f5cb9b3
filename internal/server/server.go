// Package server exposes the daemon's status over HTTP: health, session
// stats, the aircraft currently in the fence, the last notification, and
// Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/acollins/skyboard/pkg/board"
	"github.com/acollins/skyboard/pkg/detector"
	"github.com/acollins/skyboard/pkg/metadata"
)

// SightingSource reports how many detections a registry has on record.
type SightingSource interface {
	SightingCount(ctx context.Context, since time.Time) (int, error)
}

// Server serves the status API for a running detector.
type Server struct {
	detector  *detector.Detector
	cache     *metadata.Cache
	gatherer  prometheus.Gatherer
	sightings SightingSource
	log       zerolog.Logger

	httpServer *http.Server
}

// New creates a status server. gatherer may be nil to disable /metrics.
func New(listen string, det *detector.Detector, cache *metadata.Cache, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	s := &Server{
		detector: det,
		cache:    cache,
		gatherer: gatherer,
		log:      log,
	}
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/aircraft", s.handleAircraft)
	r.Get("/api/board", s.handleBoard)
	r.Post("/api/tracker/reset", s.handleTrackerReset)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.httpServer.Addr).Msg("Status API listening")
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// SetSightingSource wires a detection-history registry into the status
// payload. Optional; without it the sighting count is omitted.
func (s *Server) SetSightingSource(src SightingSource) {
	s.sightings = src
}

// Handler returns the HTTP handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Stats          detector.Snapshot   `json:"stats"`
	TrackedCount   int                 `json:"tracked_count"`
	CachedRecords  int                 `json:"cached_records"`
	LastNotified   *detector.Detection `json:"last_notified,omitempty"`
	CurrentInFence int                 `json:"current_in_fence"`
	Sightings24h   *int                `json:"sightings_24h,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.detector.Stats().Snapshot()
	resp := statusResponse{
		Stats:          snap,
		TrackedCount:   s.detector.Tracker().Count(),
		CachedRecords:  s.cache.Len(),
		LastNotified:   s.detector.LastNotified(),
		CurrentInFence: snap.Current,
	}
	if s.sightings != nil {
		count, err := s.sightings.SightingCount(r.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			s.log.Warn().Err(err).Msg("Sighting count failed")
		} else {
			resp.Sightings24h = &count
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAircraft(w http.ResponseWriter, r *http.Request) {
	current := s.detector.Current()
	if current == nil {
		current = []detector.Detection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(current),
		"aircraft": current,
	})
}

// handleBoard renders the last notification as the six display lines,
// letting clients preview the board without talking to the hardware.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	last := s.detector.LastNotified()
	if last == nil {
		writeJSON(w, http.StatusOK, map[string]any{"lines": []string{}})
		return
	}
	lines := board.FormatFlight(boardFlight(*last))
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (s *Server) handleTrackerReset(w http.ResponseWriter, r *http.Request) {
	s.detector.Tracker().Reset()
	s.log.Info().Msg("Tracker reset via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// boardFlight maps a detection onto the display layout fields.
func boardFlight(det detector.Detection) board.Flight {
	return board.Flight{
		Callsign:      strings.TrimSpace(det.State.Callsign),
		Registration:  det.Meta.Registration,
		Operator:      det.Meta.Operator,
		Country:       det.State.OriginCountry,
		AircraftType:  det.Meta.Description(),
		AltitudeFt:    det.State.AltitudeFt,
		GroundSpeedKt: det.State.GroundSpeedKt,
		HeadingDeg:    det.State.HeadingDeg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
