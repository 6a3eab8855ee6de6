package tracker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyEntry(id string, seq int) HistoryEntry {
	return HistoryEntry{
		Event: DetectionEvent{
			SourceKind: SourceRF,
			EmitterID:  id,
			Timestamp:  time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
		},
		Delta: TrackDelta{EmitterID: id, DetectionCount: int64(seq)},
	}
}

func TestHistoryLogAppendAndRecent(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(5)
	assert.Equal(t, 5, h.Capacity())
	assert.Zero(t, h.Size())
	assert.Nil(t, h.Recent(0))

	for i := 1; i <= 3; i++ {
		h.Append(historyEntry(fmt.Sprintf("RF_%d_1000", i), i))
	}
	require.Equal(t, 3, h.Size())

	// Oldest-first ordering within the window.
	entries := h.Recent(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "RF_1_1000", entries[0].Event.EmitterID)
	assert.Equal(t, "RF_3_1000", entries[2].Event.EmitterID)

	// A limit smaller than the size returns only the newest entries.
	entries = h.Recent(2)
	require.Len(t, entries, 2)
	assert.Equal(t, "RF_2_1000", entries[0].Event.EmitterID)
	assert.Equal(t, "RF_3_1000", entries[1].Event.EmitterID)

	// A limit beyond the size clamps.
	assert.Len(t, h.Recent(100), 3)
}

func TestHistoryLogEvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(1000)
	for i := 1; i <= 1001; i++ {
		h.Append(historyEntry(fmt.Sprintf("RF_%d_1000", i), i))
	}

	assert.Equal(t, 1000, h.Size())
	entries := h.Recent(0)
	require.Len(t, entries, 1000)

	// Entry 1 was evicted; 2..1001 remain, oldest first.
	assert.Equal(t, "RF_2_1000", entries[0].Event.EmitterID)
	assert.Equal(t, "RF_1001_1000", entries[999].Event.EmitterID)
}

func TestHistoryLogWrapsRepeatedly(t *testing.T) {
	t.Parallel()

	h := NewHistoryLog(3)
	for i := 1; i <= 10; i++ {
		h.Append(historyEntry(fmt.Sprintf("RF_%d_1000", i), i))
	}

	entries := h.Recent(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "RF_8_1000", entries[0].Event.EmitterID)
	assert.Equal(t, "RF_9_1000", entries[1].Event.EmitterID)
	assert.Equal(t, "RF_10_1000", entries[2].Event.EmitterID)
}

func TestHistoryLogDefaultCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1000, NewHistoryLog(0).Capacity())
	assert.Equal(t, 1000, NewHistoryLog(-5).Capacity())
}

// TestRegistryHistoryWindow drives the registry end to end past the history
// capacity and checks the retained window.
func TestRegistryHistoryWindow(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{HistoryCapacity: 10})
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		r.Apply(rfEvent("RF_2400_1000", base.Add(time.Duration(i)*time.Second), -50))
	}

	entries := r.History(0)
	require.Len(t, entries, 10)
	// The first five entries were evicted; the window starts at the sixth.
	assert.Equal(t, base.Add(5*time.Second), entries[0].Event.Timestamp)
	assert.Equal(t, int64(6), entries[0].Delta.DetectionCount)
	assert.Equal(t, int64(15), entries[9].Delta.DetectionCount)

	// Stats still count every detection ever applied.
	assert.Equal(t, int64(15), r.Stats().TotalDetections)
}
