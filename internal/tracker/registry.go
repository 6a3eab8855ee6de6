package tracker

import (
	"sync"
	"time"

	"github.com/skywatch-data/skywatch/internal/monitoring"
)

// Registry is the authoritative map from emitter identity to track state.
// Mutation happens only on the ingestor's consumer goroutine, so writes are
// serialised by construction; the lock exists to give readers consistent
// copies. History and stats are owned by the registry and updated inside the
// same critical section as the track mutation, making each Apply one logical
// unit.
type Registry struct {
	mu      sync.RWMutex
	cfg     Config
	tracks  map[string]*Track
	history *HistoryLog
	stats   *statsAggregator
}

// NewRegistry creates a registry with the given configuration. Zero fields
// in cfg fall back to the documented defaults.
func NewRegistry(cfg Config) *Registry {
	cfg = cfg.normalize()
	return &Registry{
		cfg:     cfg,
		tracks:  make(map[string]*Track),
		history: NewHistoryLog(cfg.HistoryCapacity),
		stats:   newStatsAggregator(),
	}
}

// Apply folds one detection event into the registry: track mutation, history
// append and stats update happen atomically under the write lock. The caller
// is expected to have validated the event.
func (r *Registry) Apply(e DetectionEvent) TrackDelta {
	r.mu.Lock()
	defer r.mu.Unlock()

	track, ok := r.tracks[e.EmitterID]
	created := false
	if !ok {
		created = true
		track = &Track{
			EmitterID:      e.EmitterID,
			SourceKind:     e.SourceKind,
			State:          TrackNew,
			FirstSeen:      e.Timestamp,
			LastSeen:       e.Timestamp,
			DetectionCount: 1,
			CurrentPower:   e.SignalPower,
			Classification: e.Classification,
		}
		if e.Location != nil {
			loc := *e.Location
			track.LastLocation = &loc
		}
		r.tracks[e.EmitterID] = track
	} else {
		track.State = TrackActive
		track.merge(e)
	}

	delta := TrackDelta{
		EmitterID:      e.EmitterID,
		Created:        created,
		State:          track.State,
		DetectionCount: track.DetectionCount,
	}

	// The retained copy must not share the producer's Position pointer;
	// history hands the entry to arbitrary readers, like Snapshot does.
	if e.Location != nil {
		loc := *e.Location
		e.Location = &loc
	}
	r.history.Append(HistoryEntry{Event: e, Delta: delta})
	r.stats.record(e)

	return delta
}

// Sweep advances the idle lifecycle relative to now: tracks idle past the
// idle timeout become stale, and stale tracks idle past the retention window
// are evicted from the live map. Returns the number of tracks marked stale
// and the number evicted.
func (r *Registry) Sweep(now time.Time) (stale, evicted int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, track := range r.tracks {
		idle := now.Sub(track.LastSeen)
		switch track.State {
		case TrackNew, TrackActive:
			if idle >= r.cfg.IdleTimeout {
				track.State = TrackStale
				stale++
			}
		case TrackStale:
			if idle >= r.cfg.RetentionWindow {
				track.State = TrackEvicted
				delete(r.tracks, id)
				evicted++
			}
		}
	}
	if stale > 0 || evicted > 0 {
		monitoring.Logf("registry sweep: %d marked stale, %d evicted, %d live", stale, evicted, len(r.tracks))
	}
	return stale, evicted
}

// Snapshot returns an immutable deep copy of all live tracks plus the
// aggregate stats, captured as one atomic read. Readers may retain the
// snapshot indefinitely; it is never mutated after construction.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks := make(map[string]Track, len(r.tracks))
	for id, t := range r.tracks {
		tracks[id] = t.Clone()
	}
	return Snapshot{
		Tracks:     tracks,
		Stats:      r.statsViewLocked(),
		CapturedAt: time.Now(),
	}
}

// History returns up to limit of the most recent history entries,
// oldest-first within the returned window.
func (r *Registry) History(limit int) []HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history.Recent(limit)
}

// Stats returns the current aggregate counters.
func (r *Registry) Stats() StatsView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsViewLocked()
}

// Len returns the number of live tracks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tracks)
}

func (r *Registry) statsViewLocked() StatsView {
	p50, p95 := powerPercentiles(r.tracks)
	return StatsView{
		TotalDetections: r.stats.totalDetections,
		UniqueEmitters:  len(r.stats.seen),
		LiveTracks:      len(r.tracks),
		PowerP50:        p50,
		PowerP95:        p95,
		LastUpdate:      r.stats.lastUpdate,
	}
}
