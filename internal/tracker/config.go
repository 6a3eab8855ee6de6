package tracker

import "time"

// DropPolicy selects what happens when a producer enqueues into a full queue.
type DropPolicy string

const (
	// DropNewest rejects the incoming event with ErrBackpressure.
	DropNewest DropPolicy = "newest"
	// DropOldest evicts the oldest queued event to make room, and only
	// fails if the queue is still full after the eviction.
	DropOldest DropPolicy = "oldest"
)

// Config holds the tunable parameters of the aggregation core.
type Config struct {
	// QueueCapacity is the size of the bounded ingestion queue shared by
	// all producers.
	QueueCapacity int

	// HistoryCapacity is the size of the detection history ring buffer.
	HistoryCapacity int

	// IdleTimeout is how long a track may go without a detection before
	// the sweep marks it stale.
	IdleTimeout time.Duration

	// RetentionWindow is how long after its last detection a stale track
	// is retained before the sweep evicts it from the live map.
	RetentionWindow time.Duration

	// DropPolicy applies when Enqueue finds the queue full.
	DropPolicy DropPolicy

	// DrainGracePeriod bounds how long the consumer loop keeps draining
	// queued events after shutdown is requested.
	DrainGracePeriod time.Duration

	// ExportInterval is how often the exporter writes a full export
	// document to durable storage.
	ExportInterval time.Duration

	// StatsInterval is how often the exporter logs a lightweight stats
	// line.
	StatsInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:    1024,
		HistoryCapacity:  1000,
		IdleTimeout:      60 * time.Second,
		RetentionWindow:  10 * time.Minute,
		DropPolicy:       DropNewest,
		DrainGracePeriod: 5 * time.Second,
		ExportInterval:   60 * time.Second,
		StatsInterval:    10 * time.Second,
	}
}

// normalize fills zero values with defaults so a partially populated Config
// is safe to use.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = d.HistoryCapacity
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = d.RetentionWindow
	}
	if c.DropPolicy != DropOldest {
		c.DropPolicy = DropNewest
	}
	if c.DrainGracePeriod <= 0 {
		c.DrainGracePeriod = d.DrainGracePeriod
	}
	if c.ExportInterval <= 0 {
		c.ExportInterval = d.ExportInterval
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = d.StatsInterval
	}
	return c
}
