package tracker

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore records every export document it receives. fail makes every
// SaveExport call return an error.
type memStore struct {
	mu   sync.Mutex
	docs []*ExportDocument
	fail bool
}

func (s *memStore) SaveExport(doc *ExportDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *memStore) last() *ExportDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.docs) == 0 {
		return nil
	}
	return s.docs[len(s.docs)-1]
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestExportNowWritesFullDocument(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	r.Apply(rfEvent("RF_2400_1000", base, -55))
	r.Apply(rfEvent("RF_2400_1000", base.Add(time.Second), -54))
	r.Apply(rfEvent("RF_5800_1000", base.Add(2*time.Second), -60))

	store := &memStore{}
	x := NewExporter(ExporterConfig{Registry: r, Store: store, Logger: quietLogger()})

	require.NoError(t, x.ExportNow())
	require.Equal(t, 1, store.count())

	doc := store.last()
	assert.Len(t, doc.DetectedEmitters, 2)
	assert.Len(t, doc.History, 3)
	assert.Equal(t, int64(3), doc.Stats.TotalDetections)
	assert.Equal(t, 2, doc.Stats.UniqueEmitters)
}

func TestExportFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	r.Apply(rfEvent("RF_2400_1000", base, -55))

	store := &memStore{fail: true}
	x := NewExporter(ExporterConfig{Registry: r, Store: store, Logger: quietLogger()})

	require.Error(t, x.ExportNow())

	// Ingestion keeps working and a later export succeeds.
	r.Apply(rfEvent("RF_5800_1000", base.Add(time.Second), -60))
	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	require.NoError(t, x.ExportNow())
	require.Equal(t, 1, store.count())
	assert.Len(t, store.last().DetectedEmitters, 2)
}

// TestRunPerformsFinalExportOnShutdown verifies the shutdown path writes one
// last document even when no interval has elapsed.
func TestRunPerformsFinalExportOnShutdown(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	r.Apply(rfEvent("RF_2400_1000", base, -55))

	store := &memStore{}
	x := NewExporter(ExporterConfig{
		Registry:       r,
		Store:          store,
		ExportInterval: time.Hour,
		StatsInterval:  time.Hour,
		Logger:         quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		x.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exporter did not stop after context cancellation")
	}

	require.Equal(t, 1, store.count())
	assert.Len(t, store.last().DetectedEmitters, 1)
}

func TestRunPeriodicExportAndSweep(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{IdleTimeout: time.Millisecond, RetentionWindow: 2 * time.Millisecond})
	base := time.Now().Add(-time.Minute)
	r.Apply(rfEvent("RF_2400_1000", base, -55))

	store := &memStore{}
	x := NewExporter(ExporterConfig{
		Registry:       r,
		Store:          store,
		ExportInterval: 20 * time.Millisecond,
		StatsInterval:  10 * time.Millisecond,
		Logger:         quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		x.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for store.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	x.Stop()
	<-done

	// At least two interval exports plus the final one.
	assert.GreaterOrEqual(t, store.count(), 3)

	// The stats tick swept the long-idle track out of the live map while
	// the cumulative counters survived.
	assert.Zero(t, r.Len())
	assert.Equal(t, 1, r.Stats().UniqueEmitters)
	assert.Equal(t, int64(1), r.Stats().TotalDetections)
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{})
	x := NewExporter(ExporterConfig{Registry: r, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		x.Run(ctx)
	}()

	// Give Run a moment to mark itself running.
	time.Sleep(10 * time.Millisecond)
	x.Stop()
	x.Stop()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exporter did not stop")
	}
}
