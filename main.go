package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skywatch-data/skywatch/internal/api"
	"github.com/skywatch-data/skywatch/internal/config"
	"github.com/skywatch-data/skywatch/internal/sensors"
	"github.com/skywatch-data/skywatch/internal/store"
	"github.com/skywatch-data/skywatch/internal/tracker"
)

var (
	configPath = flag.String("config", "", "Path to JSON config file (optional)")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
)

// Main
func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	listenAddr := cfg.GetListenAddr()
	if *listen != "" {
		listenAddr = *listen
	}

	db, err := store.Open(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	files, err := store.NewFileStore(cfg.GetExportDir())
	if err != nil {
		log.Fatalf("failed to create export directory: %v", err)
	}

	metrics := tracker.NewMetrics(prometheus.DefaultRegisterer)
	registry := tracker.NewRegistry(cfg.TrackerConfig())
	ingestor := tracker.NewIngestor(registry, metrics, cfg.TrackerConfig())
	exporter := tracker.NewExporter(tracker.ExporterConfig{
		Registry:       registry,
		Store:          store.Multi(db, files),
		Metrics:        metrics,
		ExportInterval: cfg.GetExportInterval(),
		StatsInterval:  cfg.GetStatsInterval(),
	})

	// Create a wait group for the HTTP server, sensor, consumer and
	// exporter routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the consumer routine that applies queued detections to the registry
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ingestor.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("ingest consumer error: %v", err)
		}
		log.Print("ingest consumer terminated")
	}()

	// run the exporter routine for periodic persistence and idle sweeps
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := exporter.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("exporter error: %v", err)
		}
		log.Print("exporter terminated")
	}()

	// Wi-Fi beacon sensor. A missing capture capability (no pcap build
	// tag, no monitor-mode interface) degrades to an ingest-only node.
	source, decoder, closeSource, err := sensors.OpenLiveBeaconSource(cfg.GetWiFiInterface())
	if err != nil {
		if errors.Is(err, sensors.ErrSensorUnavailable) {
			log.Printf("wifi beacon sensor unavailable: %v", err)
		} else {
			log.Fatalf("failed to open wifi capture: %v", err)
		}
	} else {
		defer closeSource()
		wifi := sensors.NewBeaconSensor(source, decoder, ingestor, nil, cfg.GetSignalThresholdDBm())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := wifi.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("wifi sensor error: %v", err)
			}
			log.Print("wifi sensor terminated")
		}()
	}

	// RF sweep sensor, only when a serial port is configured.
	if portName := cfg.GetRFPort(); portName != "" {
		port, err := sensors.OpenRFPort(portName)
		if err != nil {
			log.Printf("rf sweep sensor unavailable: %v", err)
		} else {
			defer port.Close()
			rf := sensors.NewRFSensor(port, ingestor, nil, cfg.GetSignalThresholdDBm())
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rf.Run(ctx); err != nil && err != context.Canceled {
					log.Printf("rf sensor error: %v", err)
				}
				log.Print("rf sensor terminated")
			}()
		}
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the read API and the Prometheus scrape endpoint
		apiMux := api.NewServer(registry).ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:    listenAddr,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	log.Printf("skywatch listening on %s", listenAddr)

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
