// Package store persists export documents produced by the aggregation core.
// It provides a sqlite-backed store for queryable durable state and a plain
// JSON file sink for timestamped export documents.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skywatch-data/skywatch/internal/tracker"
)

// DB wraps the sqlite connection holding exported registry state.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the sqlite database at path and applies all
// pending schema migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows a single writer; serialise access through one
	// connection so concurrent export and query paths never trip
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &DB{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SaveExport writes one export document as a single transaction: the export
// row, every emitter track and the retained history window commit together or
// not at all.
func (db *DB) SaveExport(doc *tracker.ExportDocument) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin export tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO exports (
			export_id, export_time_unix_nanos,
			total_detections, unique_emitters, live_tracks,
			power_p50_dbm, power_p95_dbm, last_update_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ExportID,
		doc.ExportTime.UnixNano(),
		doc.Stats.TotalDetections,
		doc.Stats.UniqueEmitters,
		doc.Stats.LiveTracks,
		doc.Stats.PowerP50,
		doc.Stats.PowerP95,
		doc.Stats.LastUpdate.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}

	emitterStmt, err := tx.Prepare(`
		INSERT INTO detected_emitters (
			export_id, emitter_id, source, state,
			first_seen_unix_nanos, last_seen_unix_nanos, detection_count,
			power_dbm, latitude, longitude, accuracy_meters, classification
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare emitter insert: %w", err)
	}
	defer emitterStmt.Close()

	for id, t := range doc.DetectedEmitters {
		lat, lon, acc := nullPosition(t.LastLocation)
		_, err := emitterStmt.Exec(
			doc.ExportID, id, string(t.SourceKind), string(t.State),
			t.FirstSeen.UnixNano(), t.LastSeen.UnixNano(), t.DetectionCount,
			t.CurrentPower, lat, lon, acc, nullString(t.Classification),
		)
		if err != nil {
			return fmt.Errorf("insert emitter %s: %w", id, err)
		}
	}

	historyStmt, err := tx.Prepare(`
		INSERT INTO detection_history (
			export_id, seq, emitter_id, source, ts_unix_nanos,
			power_dbm, latitude, longitude, accuracy_meters, classification,
			created, state, detection_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer historyStmt.Close()

	for seq, entry := range doc.History {
		lat, lon, acc := nullPosition(entry.Event.Location)
		_, err := historyStmt.Exec(
			doc.ExportID, seq,
			entry.Event.EmitterID, string(entry.Event.SourceKind),
			entry.Event.Timestamp.UnixNano(),
			entry.Event.SignalPower, lat, lon, acc,
			nullString(entry.Event.Classification),
			entry.Delta.Created, string(entry.Delta.State), entry.Delta.DetectionCount,
		)
		if err != nil {
			return fmt.Errorf("insert history entry %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export tx: %w", err)
	}
	return nil
}

// ExportSummary describes one stored export for inspection and tests.
type ExportSummary struct {
	ExportID        string
	ExportTime      time.Time
	TotalDetections int64
	UniqueEmitters  int
	EmitterRows     int
	HistoryRows     int
}

// LatestExport returns a summary of the most recently stored export, or
// sql.ErrNoRows if nothing has been exported yet.
func (db *DB) LatestExport() (*ExportSummary, error) {
	var s ExportSummary
	var exportNanos int64
	err := db.QueryRow(`
		SELECT export_id, export_time_unix_nanos, total_detections, unique_emitters
		FROM exports
		ORDER BY export_time_unix_nanos DESC
		LIMIT 1`,
	).Scan(&s.ExportID, &exportNanos, &s.TotalDetections, &s.UniqueEmitters)
	if err != nil {
		return nil, err
	}
	s.ExportTime = time.Unix(0, exportNanos)

	if err := db.QueryRow(`SELECT COUNT(*) FROM detected_emitters WHERE export_id = ?`, s.ExportID).Scan(&s.EmitterRows); err != nil {
		return nil, fmt.Errorf("count emitter rows: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM detection_history WHERE export_id = ?`, s.ExportID).Scan(&s.HistoryRows); err != nil {
		return nil, fmt.Errorf("count history rows: %w", err)
	}
	return &s, nil
}

// Helper functions for nullable values

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullPosition(p *tracker.Position) (lat, lon, acc interface{}) {
	if p == nil {
		return nil, nil, nil
	}
	return p.Latitude, p.Longitude, p.AccuracyMeters
}
