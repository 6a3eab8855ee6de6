package tracker

import (
	"context"
	"log"
	"sync"
	"time"
)

// ExportStore is the durable-storage contract: it persists one export
// document as an atomic unit.
type ExportStore interface {
	SaveExport(doc *ExportDocument) error
}

// Exporter periodically writes full export documents to durable storage and
// drives the registry's idle sweep on a lighter stats tick. I/O failures are
// logged, counted and retried next interval; they never stop ingestion. On
// shutdown the exporter performs one final export so no accepted detection is
// lost silently.
type Exporter struct {
	registry *Registry
	store    ExportStore
	metrics  *Metrics

	exportInterval time.Duration
	statsInterval  time.Duration
	logger         *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// ExporterConfig contains configuration for Exporter.
type ExporterConfig struct {
	// Registry is the source of snapshots and history.
	Registry *Registry
	// Store receives export documents. May be nil to disable exports while
	// keeping the sweep and stats ticks running.
	Store ExportStore
	// Metrics receives export failure/success counters; nil creates
	// unregistered ones.
	Metrics *Metrics
	// ExportInterval is how often a full export runs (default 60s).
	ExportInterval time.Duration
	// StatsInterval is how often the sweep runs and a stats line is
	// logged (default 10s).
	StatsInterval time.Duration
	// Logger is optional; if nil, uses log.Default().
	Logger *log.Logger
}

// NewExporter creates a new Exporter.
func NewExporter(cfg ExporterConfig) *Exporter {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = DefaultConfig().ExportInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultConfig().StatsInterval
	}
	return &Exporter{
		registry:       cfg.Registry,
		store:          cfg.Store,
		metrics:        metrics,
		exportInterval: cfg.ExportInterval,
		statsInterval:  cfg.StatsInterval,
		logger:         logger,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Run starts the export and sweep loops. It blocks until the context is
// cancelled or Stop() is called, performing a final export before returning.
func (x *Exporter) Run(ctx context.Context) error {
	x.mu.Lock()
	if x.running {
		x.mu.Unlock()
		return nil // already running
	}
	x.running = true
	x.stopCh = make(chan struct{})
	x.doneCh = make(chan struct{})
	x.mu.Unlock()

	defer func() {
		close(x.doneCh)
		x.mu.Lock()
		x.running = false
		x.mu.Unlock()
	}()

	exportTicker := time.NewTicker(x.exportInterval)
	defer exportTicker.Stop()
	statsTicker := time.NewTicker(x.statsInterval)
	defer statsTicker.Stop()

	x.logger.Printf("exporter started: export every %v, stats every %v", x.exportInterval, x.statsInterval)

	for {
		select {
		case <-ctx.Done():
			x.logger.Printf("exporter stopping due to context cancellation")
			x.exportFinal()
			return nil
		case <-x.stopCh:
			x.logger.Printf("exporter stopping due to Stop() call")
			x.exportFinal()
			return nil
		case <-exportTicker.C:
			x.export()
		case <-statsTicker.C:
			x.tick()
		}
	}
}

// Stop requests the exporter to stop and waits for the final export to
// complete. It is safe to call multiple times.
func (x *Exporter) Stop() {
	x.mu.Lock()
	if !x.running {
		x.mu.Unlock()
		return
	}
	select {
	case <-x.stopCh:
		// already closed
	default:
		close(x.stopCh)
	}
	x.mu.Unlock()

	<-x.doneCh
}

// ExportNow triggers an immediate export outside the regular interval.
func (x *Exporter) ExportNow() error {
	return x.export()
}

// tick runs the idle sweep and logs a lightweight stats line.
func (x *Exporter) tick() {
	_, evicted := x.registry.Sweep(time.Now())
	if evicted > 0 {
		x.metrics.TracksEvicted.Add(float64(evicted))
	}
	stats := x.registry.Stats()
	x.metrics.TracksLive.Set(float64(stats.LiveTracks))
	x.logger.Printf("stats: %d live tracks, %d unique emitters, %d total detections",
		stats.LiveTracks, stats.UniqueEmitters, stats.TotalDetections)
}

func (x *Exporter) export() error {
	if x.store == nil {
		return nil
	}
	doc := x.registry.Export()
	if err := x.store.SaveExport(doc); err != nil {
		x.metrics.ExportFailures.Inc()
		x.logger.Printf("exporter: export %s failed (will retry next interval): %v", doc.ExportID, err)
		return err
	}
	x.metrics.ExportsTotal.Inc()
	x.logger.Printf("exporter: wrote export %s (%d emitters, %d history entries)",
		doc.ExportID, len(doc.DetectedEmitters), len(doc.History))
	return nil
}

// exportFinal performs the shutdown export.
func (x *Exporter) exportFinal() {
	if x.store == nil {
		return
	}
	if err := x.export(); err != nil {
		x.logger.Printf("exporter: final export failed: %v", err)
	}
}
