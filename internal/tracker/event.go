// Package tracker implements the emitter detection aggregation core: a
// bounded ingestion queue drained by a single consumer, an authoritative
// registry of tracked emitters with an explicit lifecycle, bounded history
// retention, and atomic snapshot/export views for readers.
package tracker

import "time"

// SourceKind identifies the sensing front-end that produced a detection.
type SourceKind string

const (
	SourceRF         SourceKind = "rf"
	SourceWiFiBeacon SourceKind = "wifi_beacon"
)

// KnownSource reports whether k is a source kind this registry accepts.
// Unknown kinds are treated as malformed so that a misconfigured producer
// cannot pollute the track map.
func KnownSource(k SourceKind) bool {
	switch k {
	case SourceRF, SourceWiFiBeacon:
		return true
	}
	return false
}

// Position is a geolocation estimate supplied by an external locator
// collaborator. The core never fabricates positions, it only carries
// what a producer attached to the event.
type Position struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
}

// DetectionEvent is a single immutable detection handed to the ingestor by a
// sensor collaborator. EmitterID is an opaque natural key: identical keys
// always denote the same logical emitter for the lifetime of the registry.
// Key derivation happens upstream and may collide across physically distinct
// emitters; that is a documented accuracy limit, not something the core
// attempts to resolve.
type DetectionEvent struct {
	SourceKind     SourceKind `json:"source"`
	EmitterID      string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	SignalPower    float64    `json:"power_dbm"`
	Location       *Position  `json:"location,omitempty"`
	Classification string     `json:"classification,omitempty"`
}

// Validate checks the required fields. A nil return means the event is safe
// to apply to the registry.
func (e DetectionEvent) Validate() error {
	if e.EmitterID == "" {
		return &MalformedEventError{Field: "emitter_id"}
	}
	if e.Timestamp.IsZero() {
		return &MalformedEventError{Field: "timestamp"}
	}
	if !KnownSource(e.SourceKind) {
		return &MalformedEventError{Field: "source"}
	}
	return nil
}
