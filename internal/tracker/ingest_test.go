package tracker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywatch-data/skywatch/internal/monitoring"
)

func TestMain(m *testing.M) {
	// Mute core diagnostics; they are noisy under concurrent tests.
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// TestConcurrentProducersLoseNothing floods the ingestor from many
// goroutines and verifies every accepted event is counted exactly once.
func TestConcurrentProducersLoseNothing(t *testing.T) {
	t.Parallel()

	const producers = 8
	const perProducer = 250

	r := NewRegistry(Config{QueueCapacity: producers * perProducer})
	in := NewIngestor(r, nil, Config{QueueCapacity: producers * perProducer})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		in.Run(ctx)
	}()

	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				e := rfEvent(fmt.Sprintf("RF_%d_%d", 2400+p, i), base.Add(time.Duration(i)*time.Millisecond), -50)
				assert.NoError(t, in.Enqueue(e))
			}
		}(p)
	}
	wg.Wait()

	// Wait for the consumer to drain the queue.
	deadline := time.Now().Add(5 * time.Second)
	for in.Applied() < producers*perProducer && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	assert.Equal(t, int64(producers*perProducer), in.Applied())
	assert.Equal(t, producers*perProducer, r.Len(), "every distinct emitter gets exactly one track")
	assert.Equal(t, producers*perProducer, r.Stats().UniqueEmitters)
	assert.Equal(t, int64(producers*perProducer), r.Stats().TotalDetections)
	assert.Zero(t, in.Rejected())
}

// TestEnqueueBackpressureNeverBlocks fills the queue with no consumer
// running and verifies producers fail fast instead of blocking.
func TestEnqueueBackpressureNeverBlocks(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	in := NewIngestor(r, nil, Config{QueueCapacity: 4})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, in.Enqueue(rfEvent(fmt.Sprintf("RF_%d_1", i), base, -50)))
	}

	start := time.Now()
	err := in.Enqueue(rfEvent("RF_9999_1", base, -50))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrBackpressure)
	assert.Less(t, elapsed, 100*time.Millisecond, "Enqueue must not block on a full queue")
}

func TestEnqueueDropOldestPolicy(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	in := NewIngestor(r, nil, Config{QueueCapacity: 2, DropPolicy: DropOldest})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	require.NoError(t, in.Enqueue(rfEvent("RF_1_1", base, -50)))
	require.NoError(t, in.Enqueue(rfEvent("RF_2_1", base, -50)))
	// Full queue: the oldest is evicted to admit the new event.
	require.NoError(t, in.Enqueue(rfEvent("RF_3_1", base, -50)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // run only the shutdown drain
	done := make(chan struct{})
	go func() {
		defer close(done)
		in.Run(ctx)
	}()
	<-done

	snap := r.Snapshot()
	assert.NotContains(t, snap.Tracks, "RF_1_1")
	assert.Contains(t, snap.Tracks, "RF_2_1")
	assert.Contains(t, snap.Tracks, "RF_3_1")
}

func TestRunRejectsMalformedEvents(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	in := NewIngestor(r, nil, Config{QueueCapacity: 8})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	require.NoError(t, in.Enqueue(DetectionEvent{SourceKind: SourceRF, Timestamp: base}))       // no id
	require.NoError(t, in.Enqueue(DetectionEvent{SourceKind: "sonar", EmitterID: "X", Timestamp: base})) // bad source
	require.NoError(t, in.Enqueue(rfEvent("RF_2400_1000", base, -50)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		in.Run(ctx)
	}()
	<-done

	assert.Equal(t, int64(2), in.Rejected())
	assert.Equal(t, int64(1), in.Applied())
	assert.Equal(t, 1, r.Len())
}

// TestShutdownDrainsQueuedEvents verifies accepted events survive a
// graceful stop.
func TestShutdownDrainsQueuedEvents(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	in := NewIngestor(r, nil, Config{QueueCapacity: 64, DrainGracePeriod: time.Second})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		require.NoError(t, in.Enqueue(rfEvent(fmt.Sprintf("RF_%d_1000", 2400+i), base, -50)))
	}

	// Cancel before the consumer starts: everything must drain on the way out.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, in.Run(ctx))

	assert.Equal(t, int64(20), in.Applied())
	assert.Equal(t, 20, r.Len())
}
