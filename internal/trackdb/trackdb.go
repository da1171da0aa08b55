// Package trackdb persists per-scan track updates to sqlite.
package trackdb

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajectory.report/internal/track"
)

type TrackDB struct {
	*sql.DB
}

// schema.sql defines the runs and track_updates tables.
//
//go:embed schema.sql
var schemaSQL string

// NewTrackDB opens (creating if needed) a track database at path.
func NewTrackDB(path string) (*TrackDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("apply track schema: %w", err)
	}

	log.Println("initialized track database schema")

	return &TrackDB{db}, nil
}

// Run describes one processing run over a measurement source.
type Run struct {
	ID               string
	Source           string
	ConfigJSON       string
	StartedUnixNanos int64
}

// StartRun records a new run and returns its id. configJSON is the
// effective tuning configuration snapshot for the run.
func (tdb *TrackDB) StartRun(source, configJSON string) (string, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	runID := uuid.NewString()
	_, err := tdb.Exec(
		`INSERT INTO runs (id, source, config_json, started_unix_nanos) VALUES (?, ?, ?, ?)`,
		runID, source, configJSON, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return runID, nil
}

// Runs returns all runs, most recent first.
func (tdb *TrackDB) Runs() ([]Run, error) {
	rows, err := tdb.Query(
		`SELECT id, source, config_json, started_unix_nanos FROM runs ORDER BY started_unix_nanos DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.ConfigJSON, &r.StartedUnixNanos); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
func (tdb *TrackDB) LatestRun() (*Run, error) {
	var r Run
	err := tdb.QueryRow(
		`SELECT id, source, config_json, started_unix_nanos FROM runs ORDER BY started_unix_nanos DESC LIMIT 1`,
	).Scan(&r.ID, &r.Source, &r.ConfigJSON, &r.StartedUnixNanos)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no runs recorded")
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return &r, nil
}

// Recorder returns an UpdateSink that persists updates under runID.
func (tdb *TrackDB) Recorder(runID string) *RunRecorder {
	return &RunRecorder{db: tdb, runID: runID}
}

// RunRecorder implements track.UpdateSink for a single run.
type RunRecorder struct {
	db    *TrackDB
	runID string
}

// RecordUpdate inserts one per-scan emission.
func (r *RunRecorder) RecordUpdate(u track.Update) error {
	covJSON, err := json.Marshal(u.Covariance)
	if err != nil {
		return fmt.Errorf("marshal covariance: %w", err)
	}

	var measX, measY, measZ sql.NullFloat64
	if u.Measurement != nil {
		measX = sql.NullFloat64{Float64: u.Measurement.X, Valid: true}
		measY = sql.NullFloat64{Float64: u.Measurement.Y, Valid: true}
		measZ = sql.NullFloat64{Float64: u.Measurement.Z, Valid: true}
	}

	_, err = r.db.Exec(`
		INSERT INTO track_updates (
			run_id, track_id, scan_index, ts_seconds,
			x, y, z, vx, vy, vz,
			covariance_json, associated, gated_candidates,
			meas_x, meas_y, meas_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, u.TrackID, u.ScanIndex, u.Time,
		u.State[0], u.State[1], u.State[2], u.State[3], u.State[4], u.State[5],
		string(covJSON), boolToInt(u.Associated), u.Candidates,
		measX, measY, measZ,
	)
	if err != nil {
		return fmt.Errorf("insert track update: %w", err)
	}
	return nil
}

// UpdatesForRun returns the run's updates in scan order. limit <= 0
// returns all of them.
func (tdb *TrackDB) UpdatesForRun(runID string, limit int) ([]track.Update, error) {
	query := `
		SELECT track_id, scan_index, ts_seconds,
		       x, y, z, vx, vy, vz,
		       covariance_json, associated, gated_candidates,
		       meas_x, meas_y, meas_z
		FROM track_updates WHERE run_id = ? ORDER BY scan_index`
	args := []any{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := tdb.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query track updates: %w", err)
	}
	defer rows.Close()

	var updates []track.Update
	for rows.Next() {
		u, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// LatestUpdate returns the most recent update for a run, or nil when
// the run has emitted nothing yet.
func (tdb *TrackDB) LatestUpdate(runID string) (*track.Update, error) {
	rows, err := tdb.Query(`
		SELECT track_id, scan_index, ts_seconds,
		       x, y, z, vx, vy, vz,
		       covariance_json, associated, gated_candidates,
		       meas_x, meas_y, meas_z
		FROM track_updates WHERE run_id = ? ORDER BY scan_index DESC LIMIT 1`, runID)
	if err != nil {
		return nil, fmt.Errorf("query latest update: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	u, err := scanUpdate(rows)
	if err != nil {
		return nil, err
	}
	return &u, rows.Err()
}

func scanUpdate(rows *sql.Rows) (track.Update, error) {
	var u track.Update
	var covJSON string
	var associated int
	var measX, measY, measZ sql.NullFloat64

	err := rows.Scan(
		&u.TrackID, &u.ScanIndex, &u.Time,
		&u.State[0], &u.State[1], &u.State[2], &u.State[3], &u.State[4], &u.State[5],
		&covJSON, &associated, &u.Candidates,
		&measX, &measY, &measZ,
	)
	if err != nil {
		return u, fmt.Errorf("scan track update: %w", err)
	}

	if err := json.Unmarshal([]byte(covJSON), &u.Covariance); err != nil {
		return u, fmt.Errorf("unmarshal covariance: %w", err)
	}
	u.Associated = associated != 0
	if measX.Valid && measY.Valid && measZ.Valid {
		u.Measurement = &track.Measurement{
			X: measX.Float64, Y: measY.Float64, Z: measZ.Float64, Time: u.Time,
		}
	}
	return u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
