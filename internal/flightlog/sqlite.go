package flightlog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite persists flight records to a local database file. One row per poll
// iteration, in arrival order.
type SQLite struct {
	db      *sql.DB
	insert  *sql.Stmt
	session string
}

// NewSQLite opens (creating if needed) the database at path and applies the
// embedded schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open flight log db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply flight log schema: %w", err)
	}
	insert, err := db.Prepare(`
		INSERT INTO flight_records
			(session_id, pattern, logged_at, telemetry_at, x, y, z,
			 note, iteration,
			 start_x, start_y, start_z, target_x, target_y, target_z, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare flight log insert: %w", err)
	}
	return &SQLite{db: db, insert: insert, session: uuid.NewString()}, nil
}

// Session returns the per-flight session ID stamped on rows.
func (s *SQLite) Session() string { return s.session }

// Write appends one record.
func (s *SQLite) Write(rec Record) error {
	var note any
	var iteration any
	start := [3]any{nil, nil, nil}
	target := [3]any{nil, nil, nil}
	if rec.Note != "" {
		note = rec.Note
		iteration = rec.Iteration
		for i, v := range rec.Start {
			if i < 3 {
				start[i] = v
			}
		}
		for i, v := range rec.Target {
			if i < 3 {
				target[i] = v
			}
		}
	}
	var extra any
	if len(rec.Extra) > 0 {
		extra = strings.Join(rec.Extra, ";")
	}

	_, err := s.insert.Exec(
		s.session, rec.Pattern,
		rec.Time.UTC().Format("2006-01-02T15:04:05.000000Z"),
		rec.Telemetry.Time.UTC().Format("2006-01-02T15:04:05.000000Z"),
		rec.Telemetry.X, rec.Telemetry.Y, rec.Telemetry.Z,
		note, iteration,
		start[0], start[1], start[2],
		target[0], target[1], target[2],
		extra,
	)
	if err != nil {
		return fmt.Errorf("insert flight record: %w", err)
	}
	return nil
}

// Close releases the prepared statement and the database handle.
func (s *SQLite) Close() error {
	s.insert.Close()
	return s.db.Close()
}
