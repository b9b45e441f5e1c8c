// Package db persists final measurements to SQLite alongside the text record.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"body-measure/models"
)

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the database at path and migrates it to
// the latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; SQLite serialises anyway and this keeps :memory: databases
	// on a single connection.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// StartSession registers a capture session.
func (db *DB) StartSession(sessionID string, startedAt time.Time) error {
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at) VALUES (?, ?)`,
		sessionID, startedAt.UTC(),
	)
	if err != nil {
		return &models.IOFailure{Op: "insert session", Path: db.path, Err: err}
	}
	return nil
}

// StopSession stamps the session's end time.
func (db *DB) StopSession(sessionID string, stoppedAt time.Time) error {
	_, err := db.Exec(
		`UPDATE sessions SET stopped_at = ? WHERE session_id = ?`,
		stoppedAt.UTC(), sessionID,
	)
	if err != nil {
		return &models.IOFailure{Op: "update session", Path: db.path, Err: err}
	}
	return nil
}

// RecordMeasurement stores one final measurement for a session.
func (db *DB) RecordMeasurement(sessionID string, m models.FinalMeasurement, precision int) error {
	_, err := db.Exec(
		`INSERT INTO measurements (session_id, metric_id, label, value_cm, samples)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, m.MetricID, m.Label, m.Rounded(precision), m.Samples,
	)
	if err != nil {
		return &models.IOFailure{Op: "insert measurement", Path: db.path, Err: err}
	}
	return nil
}

// Measurement is a stored row.
type Measurement struct {
	SessionID  string
	MetricID   string
	Label      string
	ValueCm    float64
	Samples    int
	RecordedAt string
}

// Measurements returns a session's rows in insertion order.
func (db *DB) Measurements(sessionID string) ([]Measurement, error) {
	rows, err := db.Query(
		`SELECT session_id, COALESCE(metric_id, ''), label, value_cm, COALESCE(samples, 0), recorded_at
		 FROM measurements WHERE session_id = ? ORDER BY measurement_id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.SessionID, &m.MetricID, &m.Label, &m.ValueCm, &m.Samples, &m.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SessionStore binds the database to one session so it can serve as a
// measurement store.
type SessionStore struct {
	db        *DB
	sessionID string
	precision int
}

// ForSession returns a store that appends rows for sessionID.
func (db *DB) ForSession(sessionID string, precision int) *SessionStore {
	return &SessionStore{db: db, sessionID: sessionID, precision: precision}
}

// Append stores a labelled value without a metric ID.
func (s *SessionStore) Append(label string, valueCm float64) error {
	return s.db.RecordMeasurement(s.sessionID, models.FinalMeasurement{
		Label: label, Value: valueCm, Available: true,
	}, s.precision)
}

// AppendFinal stores a full final measurement, keeping its metric ID and
// sample count.
func (s *SessionStore) AppendFinal(m models.FinalMeasurement) error {
	return s.db.RecordMeasurement(s.sessionID, m, s.precision)
}
