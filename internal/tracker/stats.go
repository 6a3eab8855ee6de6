package tracker

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// statsAggregator keeps the derived running counters. It is updated in
// lock-step with registry mutation, under the registry lock, so a snapshot
// can never observe a track whose detection is missing from the counts.
type statsAggregator struct {
	totalDetections int64
	lastUpdate      time.Time

	// seen holds every emitter key ever created. Keys are small; full
	// tracks are still evicted by the sweep, so live memory stays bounded
	// while UniqueEmitters remains monotonic.
	seen map[string]struct{}
}

func newStatsAggregator() *statsAggregator {
	return &statsAggregator{seen: make(map[string]struct{})}
}

func (s *statsAggregator) record(e DetectionEvent) {
	s.totalDetections++
	s.seen[e.EmitterID] = struct{}{}
	s.lastUpdate = time.Now()
}

// StatsView is the immutable reader-facing form of the aggregate counters.
type StatsView struct {
	TotalDetections int64     `json:"total_detections"`
	UniqueEmitters  int       `json:"unique_emitters"`
	LiveTracks      int       `json:"live_tracks"`
	PowerP50        float64   `json:"power_p50_dbm"`
	PowerP95        float64   `json:"power_p95_dbm"`
	LastUpdate      time.Time `json:"last_update"`
}

// powerPercentiles computes the p50/p95 of current signal power across the
// live tracks. Returns zeros when there are no tracks.
func powerPercentiles(tracks map[string]*Track) (p50, p95 float64) {
	if len(tracks) == 0 {
		return 0, 0
	}
	powers := make([]float64, 0, len(tracks))
	for _, t := range tracks {
		powers = append(powers, t.CurrentPower)
	}
	sort.Float64s(powers)
	p50 = stat.Quantile(0.50, stat.Empirical, powers, nil)
	p95 = stat.Quantile(0.95, stat.Empirical, powers, nil)
	return p50, p95
}
