// Package db persists motion events and calibration runs to sqlite. Events
// are telemetry: the store is a broadcast subscriber like any other, so a
// slow disk never stalls detection.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wallsense-data/wallsense/internal/engine"
	"github.com/wallsense-data/wallsense/internal/monitoring"
)

// DB wraps the sqlite handle with wallsense-specific operations.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// pending migrations.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; serialize access through a single conn.
	sqldb.SetMaxOpenConns(1)

	db := &DB{sqldb}
	if err := db.MigrateUp(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

// RecordEvent inserts one motion event.
func (db *DB) RecordEvent(ev engine.MotionEvent) error {
	_, err := db.Exec(`
		INSERT INTO motion_events
			(id, ssid, bssid, rssi, filtered, baseline_mean, deviation, confidence, zone_id, zone_name, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Network.SSID, ev.Network.BSSID, ev.RSSI, ev.Filtered,
		ev.BaselineMean, ev.Deviation, ev.Confidence, ev.ZoneID, ev.ZoneName,
		ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record motion event: %w", err)
	}
	return nil
}

// EventRecord is one persisted motion event row.
type EventRecord struct {
	ID           string    `json:"id"`
	SSID         string    `json:"ssid"`
	BSSID        string    `json:"bssid"`
	RSSI         int       `json:"rssi"`
	Filtered     float64   `json:"filtered"`
	BaselineMean float64   `json:"baseline_mean"`
	Deviation    float64   `json:"deviation"`
	Confidence   float64   `json:"confidence"`
	ZoneID       string    `json:"zone_id,omitempty"`
	ZoneName     string    `json:"zone_name,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
}

// RecentEvents returns up to limit events, newest first.
func (db *DB) RecentEvents(limit int) ([]EventRecord, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, ssid, bssid, rssi, filtered, baseline_mean, deviation, confidence,
		       COALESCE(zone_id, ''), COALESCE(zone_name, ''), detected_at
		FROM motion_events
		ORDER BY detected_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query motion events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.SSID, &rec.BSSID, &rec.RSSI, &rec.Filtered,
			&rec.BaselineMean, &rec.Deviation, &rec.Confidence,
			&rec.ZoneID, &rec.ZoneName, &rec.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan motion event: %w", err)
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}

// RecordCalibration inserts one calibration run and its per-network
// baselines in a single transaction.
func (db *DB) RecordCalibration(result engine.CalibrationResult) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin calibration tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO calibration_runs (started_at, finished_at, networks)
		VALUES (?, ?, ?)`,
		result.StartedAt.UTC(), result.FinishedAt.UTC(), result.Networks)
	if err != nil {
		return fmt.Errorf("failed to record calibration run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to resolve calibration run id: %w", err)
	}

	for id, b := range result.Baselines {
		if _, err := tx.Exec(`
			INSERT INTO calibration_baselines (run_id, ssid, bssid, mean, std_dev, sample_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, id.SSID, id.BSSID, b.Mean, b.StdDev, b.SampleCount); err != nil {
			return fmt.Errorf("failed to record baseline for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// CalibrationRun is one persisted calibration summary row.
type CalibrationRun struct {
	RunID      int64     `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Networks   int       `json:"networks"`
}

// RecentCalibrations returns up to limit calibration runs, newest first.
func (db *DB) RecentCalibrations(limit int) ([]CalibrationRun, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT run_id, started_at, finished_at, networks
		FROM calibration_runs
		ORDER BY finished_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration runs: %w", err)
	}
	defer rows.Close()

	var runs []CalibrationRun
	for rows.Next() {
		var run CalibrationRun
		if err := rows.Scan(&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Networks); err != nil {
			return nil, fmt.Errorf("failed to scan calibration run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Recorder returns a broadcast subscriber that persists events, logging
// failures rather than surfacing them into the pipeline.
func (db *DB) Recorder() engine.Subscriber {
	failures := monitoring.Counter("db_record_failures")
	return func(ev engine.MotionEvent) {
		if err := db.RecordEvent(ev); err != nil {
			failures.Add(1)
			monitoring.Logf("db: failed to record event %s: %v", ev.ID, err)
		}
	}
}
