package tracker

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters the core exposes to the observability
// collaborator. Every failure mode surfaces here rather than as a fault
// visible to read consumers.
type Metrics struct {
	EventsApplied   prometheus.Counter
	RejectedEvents  prometheus.Counter
	Backpressure    prometheus.Counter
	DroppedOldest   prometheus.Counter
	ExportFailures  prometheus.Counter
	ExportsTotal    prometheus.Counter
	TracksLive      prometheus.Gauge
	TracksEvicted   prometheus.Counter
	QueueDepth      prometheus.Gauge
}

// NewMetrics registers and returns the core metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_events_applied_total",
			Help: "Detection events applied to the registry.",
		}),
		RejectedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_events_rejected_total",
			Help: "Malformed detection events rejected by the ingestor.",
		}),
		Backpressure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_backpressure_total",
			Help: "Enqueue attempts that failed because the queue was full.",
		}),
		DroppedOldest: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_dropped_oldest_total",
			Help: "Queued events evicted by the drop-oldest policy.",
		}),
		ExportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_export_failures_total",
			Help: "Export attempts that failed and will be retried next interval.",
		}),
		ExportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_exports_total",
			Help: "Export documents written to durable storage.",
		}),
		TracksLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skywatch_tracks_live",
			Help: "Tracks currently in the live registry map.",
		}),
		TracksEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skywatch_tracks_evicted_total",
			Help: "Tracks removed from the live map by the idle sweep.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skywatch_queue_depth",
			Help: "Detection events waiting in the ingestion queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.EventsApplied, m.RejectedEvents, m.Backpressure, m.DroppedOldest,
			m.ExportFailures, m.ExportsTotal, m.TracksLive, m.TracksEvicted,
			m.QueueDepth,
		)
	}
	return m
}
