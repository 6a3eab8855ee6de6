package tracker

// HistoryLog is a fixed-capacity ring buffer of recent history entries.
// Append is O(1) and overwrites the oldest entry once the buffer is full.
// It is not goroutine-safe on its own; the Registry serialises access under
// its lock.
type HistoryLog struct {
	entries  []HistoryEntry
	capacity int
	head     int // next write position
	size     int
}

// NewHistoryLog creates a history log with the specified capacity.
func NewHistoryLog(capacity int) *HistoryLog {
	if capacity < 1 {
		capacity = 1000
	}
	return &HistoryLog{
		entries:  make([]HistoryEntry, capacity),
		capacity: capacity,
	}
}

// Append stores an entry, evicting the oldest when the buffer is full.
func (h *HistoryLog) Append(entry HistoryEntry) {
	h.entries[h.head] = entry
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Recent returns up to limit of the most recent entries, oldest-first within
// the returned window. The buffer is not mutated. A limit <= 0 or larger than
// the current size returns everything retained.
func (h *HistoryLog) Recent(limit int) []HistoryEntry {
	if limit <= 0 || limit > h.size {
		limit = h.size
	}
	if limit == 0 {
		return nil
	}
	out := make([]HistoryEntry, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - limit + i + h.capacity) % h.capacity
		out[i] = h.entries[idx]
	}
	return out
}

// Size returns the number of entries currently retained.
func (h *HistoryLog) Size() int { return h.size }

// Capacity returns the maximum number of entries the log retains.
func (h *HistoryLog) Capacity() int { return h.capacity }
