package tracker

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable point-in-time copy of the registry state. It is
// safe to hand to any number of concurrent readers.
type Snapshot struct {
	Tracks     map[string]Track `json:"tracks"`
	Stats      StatsView        `json:"stats"`
	CapturedAt time.Time        `json:"captured_at"`
}

// ExportDocument is the stable durable-export schema: the full set of live
// tracks, the retained history window, the aggregate stats and the export
// time, written as one atomic unit.
type ExportDocument struct {
	ExportID         string           `json:"export_id"`
	DetectedEmitters map[string]Track `json:"detected_emitters"`
	History          []HistoryEntry   `json:"history"`
	Stats            StatsView        `json:"stats"`
	ExportTime       time.Time        `json:"export_time"`
}

// Export builds a full export document from one consistent read of the
// registry: the snapshot and history are taken under the same read lock so
// the document can never contain a history entry for a detection missing
// from the stats.
func (r *Registry) Export() *ExportDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks := make(map[string]Track, len(r.tracks))
	for id, t := range r.tracks {
		tracks[id] = t.Clone()
	}
	return &ExportDocument{
		ExportID:         uuid.NewString(),
		DetectedEmitters: tracks,
		History:          r.history.Recent(0),
		Stats:            r.statsViewLocked(),
		ExportTime:       time.Now(),
	}
}
