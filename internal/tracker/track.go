package tracker

import "time"

// LifecycleState represents the lifecycle state of a track.
type LifecycleState string

const (
	TrackNew     LifecycleState = "new"     // Created by its first detection
	TrackActive  LifecycleState = "active"  // Seen more than once, recently
	TrackStale   LifecycleState = "stale"   // No detections within the idle timeout
	TrackEvicted LifecycleState = "evicted" // Removed from the live map by the sweep
)

// Track is the registry's aggregate record of one emitter. Tracks are owned
// exclusively by the Registry; no mutable reference ever leaves it. All
// external views receive copies via Clone.
type Track struct {
	EmitterID      string         `json:"id"`
	SourceKind     SourceKind     `json:"source"`
	State          LifecycleState `json:"state"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
	DetectionCount int64          `json:"detection_count"`
	CurrentPower   float64        `json:"power_dbm"`
	LastLocation   *Position      `json:"location,omitempty"`
	Classification string         `json:"classification,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (t *Track) Clone() Track {
	c := *t
	if t.LastLocation != nil {
		loc := *t.LastLocation
		c.LastLocation = &loc
	}
	return c
}

// merge folds a repeated detection into the track. Power and location are
// most-recent-wins by arrival order; classification is last-non-empty-wins;
// LastSeen never decreases even if producers deliver out of order.
func (t *Track) merge(e DetectionEvent) {
	t.DetectionCount++
	t.CurrentPower = e.SignalPower
	if e.Location != nil {
		loc := *e.Location
		t.LastLocation = &loc
	}
	if e.Classification != "" {
		t.Classification = e.Classification
	}
	if e.Timestamp.After(t.LastSeen) {
		t.LastSeen = e.Timestamp
	}
	if e.Timestamp.Before(t.FirstSeen) {
		t.FirstSeen = e.Timestamp
	}
}

// TrackDelta describes the registry change produced by applying one event.
type TrackDelta struct {
	EmitterID      string         `json:"id"`
	Created        bool           `json:"created"`
	State          LifecycleState `json:"state"`
	DetectionCount int64          `json:"detection_count"`
}

// HistoryEntry is an immutable copy of a detection event plus the track delta
// it produced, retained in the history ring buffer for audit and export.
type HistoryEntry struct {
	Event DetectionEvent `json:"event"`
	Delta TrackDelta     `json:"delta"`
}
