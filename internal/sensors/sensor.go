// Package sensors contains the producer collaborators that feed detection
// events into the aggregation core: an RF power-sweep reader attached to a
// serial SDR front-end and an 802.11 beacon sniffer. Sensors are independent;
// one failing to start never affects the others or the registry.
package sensors

import (
	"errors"

	"github.com/skywatch-data/skywatch/internal/monitoring"
	"github.com/skywatch-data/skywatch/internal/tracker"
)

// ErrSensorUnavailable reports that a sensor could not start, typically
// because its hardware or capture capability is absent. It is reported
// upward; other producers are unaffected.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Sink accepts detection events. The core's Ingestor satisfies this.
type Sink interface {
	Enqueue(tracker.DetectionEvent) error
}

// Locator is the pluggable geolocation capability. The core never fabricates
// coordinates; a sensor attaches a position only when its locator returns
// one.
type Locator interface {
	Locate(e tracker.DetectionEvent) (tracker.Position, bool)
}

// submit hands an event to the sink, attaching a position from the locator
// when available. Backpressure drops the event: producers never block on a
// full queue.
func submit(sink Sink, loc Locator, e tracker.DetectionEvent) {
	if e.Location == nil && loc != nil {
		if pos, ok := loc.Locate(e); ok {
			e.Location = &pos
		}
	}
	if err := sink.Enqueue(e); err != nil {
		if errors.Is(err, tracker.ErrBackpressure) {
			monitoring.Logf("sensor: dropped detection %s due to backpressure", e.EmitterID)
			return
		}
		monitoring.Logf("sensor: enqueue failed for %s: %v", e.EmitterID, err)
	}
}
