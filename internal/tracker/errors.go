package tracker

import (
	"errors"
	"fmt"
)

// ErrBackpressure is returned by Enqueue when the ingestion queue is full and
// the configured drop policy could not make room. Producers must drop or
// retry; they are never blocked.
var ErrBackpressure = errors.New("ingest queue full")

// MalformedEventError reports a detection event missing a required field.
// Malformed events are rejected and counted; they never stop the consumer
// loop.
type MalformedEventError struct {
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed detection event: missing or invalid %s", e.Field)
}
