package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/skywatch-data/skywatch/internal/monitoring"
)

// Ingestor owns the bounded ingestion queue and the single consumer loop
// that applies events to the registry. Any number of producers may call
// Enqueue concurrently; nothing but the consumer goroutine ever mutates the
// registry, which eliminates the lost-update races of a shared-map design.
type Ingestor struct {
	registry *Registry
	metrics  *Metrics
	queue    chan DetectionEvent
	policy   DropPolicy
	grace    time.Duration

	rejected atomic.Int64
	applied  atomic.Int64
}

// NewIngestor creates an ingestor feeding the given registry. A nil metrics
// creates unregistered counters so call sites never need nil checks.
func NewIngestor(registry *Registry, metrics *Metrics, cfg Config) *Ingestor {
	cfg = cfg.normalize()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Ingestor{
		registry: registry,
		metrics:  metrics,
		queue:    make(chan DetectionEvent, cfg.QueueCapacity),
		policy:   cfg.DropPolicy,
		grace:    cfg.DrainGracePeriod,
	}
}

// Enqueue offers an event to the ingestion queue. It never blocks the
// producer: when the queue is full it either fails immediately with
// ErrBackpressure (drop-newest, the default) or evicts the oldest queued
// event and retries once (drop-oldest).
func (in *Ingestor) Enqueue(e DetectionEvent) error {
	select {
	case in.queue <- e:
		return nil
	default:
	}

	if in.policy == DropOldest {
		// Evicting and re-offering race benignly with the consumer: a
		// concurrent dequeue just means a slot was freed for us.
		select {
		case <-in.queue:
			in.metrics.DroppedOldest.Inc()
		default:
		}
		select {
		case in.queue <- e:
			return nil
		default:
		}
	}

	in.metrics.Backpressure.Inc()
	return ErrBackpressure
}

// Run drains the queue until ctx is cancelled, applying each event to the
// registry as one logical unit. On shutdown it keeps draining already-queued
// events for up to the drain grace period, then returns. Malformed events are
// rejected, counted and skipped; they never stop the loop.
func (in *Ingestor) Run(ctx context.Context) error {
	monitoring.Logf("ingestor started: queue capacity %d, drop policy %s", cap(in.queue), in.policy)
	for {
		select {
		case e := <-in.queue:
			in.apply(e)
		case <-ctx.Done():
			drained := in.drain()
			monitoring.Logf("ingestor stopped: %d events drained on shutdown", drained)
			return nil
		}
		in.metrics.QueueDepth.Set(float64(len(in.queue)))
	}
}

// drain consumes remaining queued events up to the grace period.
func (in *Ingestor) drain() int {
	deadline := time.Now().Add(in.grace)
	drained := 0
	for time.Now().Before(deadline) {
		select {
		case e := <-in.queue:
			in.apply(e)
			drained++
		default:
			return drained
		}
	}
	return drained
}

func (in *Ingestor) apply(e DetectionEvent) {
	if err := e.Validate(); err != nil {
		in.rejected.Add(1)
		in.metrics.RejectedEvents.Inc()
		monitoring.Logf("rejected detection event: %v", err)
		return
	}
	in.registry.Apply(e)
	in.applied.Add(1)
	in.metrics.EventsApplied.Inc()
	in.metrics.TracksLive.Set(float64(in.registry.Len()))
}

// Rejected returns the number of malformed events rejected so far.
func (in *Ingestor) Rejected() int64 { return in.rejected.Load() }

// Applied returns the number of events applied to the registry so far.
func (in *Ingestor) Applied() int64 { return in.applied.Load() }
