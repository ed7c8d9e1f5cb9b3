// skyboard watches a circular geofence for aircraft and announces new
// arrivals on a Vestaboard split-flap display, with a status API and
// Prometheus metrics on the side.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/acollins/skyboard/internal/db"
	"github.com/acollins/skyboard/internal/logging"
	"github.com/acollins/skyboard/internal/server"
	"github.com/acollins/skyboard/pkg/board"
	"github.com/acollins/skyboard/pkg/config"
	"github.com/acollins/skyboard/pkg/detector"
	"github.com/acollins/skyboard/pkg/geo"
	"github.com/acollins/skyboard/pkg/metadata"
	"github.com/acollins/skyboard/pkg/opensky"
	"github.com/acollins/skyboard/pkg/retry"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default: search standard locations)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "skyboard: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fence, err := geo.NewFence(geo.Position{
		Latitude:  cfg.Fence.Latitude,
		Longitude: cfg.Fence.Longitude,
	}, cfg.Fence.RadiusKm)
	if err != nil {
		return err
	}

	source := opensky.NewClient(opensky.Config{
		BaseURL:           cfg.OpenSky.BaseURL,
		AuthURL:           cfg.OpenSky.AuthURL,
		ClientID:          cfg.OpenSky.ClientID,
		ClientSecret:      cfg.OpenSky.ClientSecret,
		Timeout:           cfg.OpenSky.Timeout,
		RequestsPerSecond: cfg.OpenSky.RequestsPerSecond,
	})
	defer source.Close()

	var metaSource metadata.Source = metadata.NewHexDBClient(cfg.Metadata.HexDBURL)

	var sink detector.DetectionSink
	var registry *db.Registry
	if cfg.Database.Enabled {
		database, err := db.Connect(cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.InitSchema(ctx); err != nil {
			return err
		}
		registry = db.NewRegistry(database)
		metaSource = db.NewMirroringSource(registry, metaSource)
		sink = registry
		if cfg.Database.Retention > 0 {
			go cleanupSightings(ctx, database, cfg.Database.Retention,
				log.With().Str("component", "db").Logger())
		}
		log.Info().Msg("Local aircraft registry enabled")
	}

	retryCfg := retry.Config{
		MaxAttempts: cfg.Detector.MaxAttempts,
		Delay:       cfg.Detector.RetryDelay,
	}
	cache := metadata.NewCache(cfg.Metadata.CacheTTL)
	fetcher := metadata.NewFetcher(metaSource, retryCfg)

	var display board.Displayer
	if cfg.Board.Enabled {
		client := board.NewClient(cfg.Board.BaseURL, cfg.Board.APIKey)
		if err := probeBoard(ctx, client, cfg.Board.ClearOnStart); err != nil {
			log.Warn().Err(err).Msg("Board not reachable, notifications will be retried per aircraft")
		} else {
			log.Info().Str("board", cfg.Board.BaseURL).Msg("Board connected")
		}
		display = client
	} else {
		log.Info().Msg("Board disabled, running detection only")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stats := detector.NewStats(promRegistry)

	det, err := detector.New(detector.Config{
		Fence:        fence,
		Interval:     cfg.Detector.Interval,
		Retry:        retryCfg,
		SummaryEvery: cfg.Detector.SummaryEvery,
	}, detector.Options{
		Source:  source,
		Fetcher: fetcher,
		Cache:   cache,
		Display: display,
		Sink:    sink,
		Tracker: detector.NewTracker(cfg.Detector.RearmAfter),
		Stats:   stats,
		Logger:  log.With().Str("component", "detector").Logger(),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Listen, det, cache, promRegistry,
			log.With().Str("component", "server").Logger())
		if registry != nil {
			srv.SetSightingSource(registry)
		}
		go func() {
			errCh <- srv.Run(ctx)
		}()
	}

	if err := det.Run(ctx); err != nil {
		return err
	}
	stop()

	if cfg.Server.Enabled {
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			return nil
		}
	}
	return nil
}

// cleanupSightings prunes detection history past the retention window,
// once at startup and then daily.
func cleanupSightings(ctx context.Context, database *db.DB, retention time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if err := database.CleanupOldSightings(ctx, retention); err != nil {
			log.Warn().Err(err).Msg("Sighting cleanup failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// probeBoard checks board connectivity at startup and optionally blanks
// the display.
func probeBoard(ctx context.Context, client *board.Client, clear bool) error {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := client.TestConnection(probeCtx); err != nil {
		return err
	}
	if clear {
		return client.Clear(probeCtx)
	}
	return nil
}
