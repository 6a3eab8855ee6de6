package sensors

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywatch-data/skywatch/internal/tracker"
)

func TestEventFromLine(t *testing.T) {
	t.Parallel()

	sensor := &RFSensor{ThresholdDBm: -60}
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	t.Run("reading above threshold becomes an event", func(t *testing.T) {
		t.Parallel()
		ev, ok, err := sensor.eventFromLine("2437.5,-45.2", now)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tracker.SourceRF, ev.SourceKind)
		assert.Equal(t, "RF_2437_1787745600", ev.EmitterID)
		assert.Equal(t, -45.2, ev.SignalPower)
		assert.Equal(t, "RF_SIGNAL", ev.Classification)
		assert.NoError(t, ev.Validate())
	})

	t.Run("weak reading is filtered", func(t *testing.T) {
		t.Parallel()
		_, ok, err := sensor.eventFromLine("2437.5,-80.0", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("blank lines are skipped silently", func(t *testing.T) {
		t.Parallel()
		_, ok, err := sensor.eventFromLine("   ", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed lines error without an event", func(t *testing.T) {
		t.Parallel()
		for _, line := range []string{"2437.5", "2437.5,-45,-extra", "abc,-45", "2437.5,def"} {
			_, ok, err := sensor.eventFromLine(line, now)
			assert.Error(t, err, line)
			assert.False(t, ok, line)
		}
	})

	t.Run("whitespace around fields is tolerated", func(t *testing.T) {
		t.Parallel()
		ev, ok, err := sensor.eventFromLine(" 5800 , -30 ", now)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, -30.0, ev.SignalPower)
		assert.True(t, strings.HasPrefix(ev.EmitterID, "RF_5800_"))
	})
}

func TestRFSensorRun(t *testing.T) {
	t.Parallel()

	sweep := strings.Join([]string{
		"2437.5,-45.2", // detection
		"garbage line", // skipped
		"5800.0,-80.0", // below threshold
		"5800.0,-30.0", // detection
		"",
	}, "\n")

	sink := &collectSink{}
	sensor := NewRFSensor(io.NopCloser(strings.NewReader(sweep)), sink, nil, -60)

	require.NoError(t, sensor.Run(context.Background()))

	require.Len(t, sink.events, 2)
	assert.True(t, strings.HasPrefix(sink.events[0].EmitterID, "RF_2437_"))
	assert.Equal(t, -45.2, sink.events[0].SignalPower)
	assert.True(t, strings.HasPrefix(sink.events[1].EmitterID, "RF_5800_"))
}

// TestRFSensorRunStopsOnSilentPort cancels the context while the scanner is
// blocked waiting for data that never arrives; Run must still return promptly.
func TestRFSensorRunStopsOnSilentPort(t *testing.T) {
	t.Parallel()

	// A pipe with no writer blocks every read until closed.
	pr, pw := io.Pipe()
	defer pw.Close()

	sink := &collectSink{}
	sensor := NewRFSensor(pr, sink, nil, -60)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sensor.Run(ctx)
	}()

	// Let Run reach the blocking read before cancelling.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation on a silent port")
	}
	assert.Empty(t, sink.events)
}

func TestRFSensorRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A pre-cancelled context returns without consuming the stream.
	sink := &collectSink{}
	sensor := NewRFSensor(io.NopCloser(strings.NewReader("2437.5,-45.2\n")), sink, nil, -60)
	require.NoError(t, sensor.Run(ctx))
	assert.LessOrEqual(t, len(sink.events), 1, "at most one already-read line may slip through")
}
