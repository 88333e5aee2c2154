// Package trackdb persists validated detections to SQLite so a run can be
// inspected after the fact. It is an observability log, not part of the
// mailbox hand-off: the receiver's consume-on-read contract is unchanged.
package trackdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/camlink-data/camlink/internal/protocol"
)

type DB struct {
	*sql.DB
	sessionID string
}

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		port TEXT,
		baud_rate INTEGER,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS detections (
		session_id TEXT,
		x INTEGER,
		y INTEGER,
		w INTEGER,
		h INTEGER,
		device_ts INTEGER,
		received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(session_id) REFERENCES sessions(session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_detections_session
		ON detections(session_id, received_at);
`

// Open opens (creating if needed) the detection log at path and registers a
// new session for the given port and baud rate. Each daemon run gets its own
// session ID.
func Open(path, port string, baudRate int) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	sessionID := uuid.NewString()
	if _, err := db.Exec(
		"INSERT INTO sessions (session_id, port, baud_rate) VALUES (?, ?, ?)",
		sessionID, port, baudRate,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("register session: %w", err)
	}

	return &DB{DB: db, sessionID: sessionID}, nil
}

// SessionID returns the UUID of the session this handle records under.
func (db *DB) SessionID() string { return db.sessionID }

// RecordDetection appends one detection to the current session.
func (db *DB) RecordDetection(d protocol.Detection) error {
	_, err := db.Exec(
		"INSERT INTO detections (session_id, x, y, w, h, device_ts) VALUES (?, ?, ?, ?, ?, ?)",
		db.sessionID, d.X, d.Y, d.W, d.H, int64(d.Timestamp),
	)
	return err
}

// Record is a stored detection with its host-side receive time.
type Record struct {
	Detection  protocol.Detection
	ReceivedAt time.Time
}

// RecentDetections returns up to limit detections from the current session,
// newest first.
func (db *DB) RecentDetections(limit int) ([]Record, error) {
	rows, err := db.Query(
		`SELECT x, y, w, h, device_ts, received_at FROM detections
		 WHERE session_id = ? ORDER BY rowid DESC LIMIT ?`,
		db.sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var deviceTS int64
		if err := rows.Scan(&rec.Detection.X, &rec.Detection.Y, &rec.Detection.W,
			&rec.Detection.H, &deviceTS, &rec.ReceivedAt); err != nil {
			return nil, err
		}
		rec.Detection.Timestamp = uint64(deviceTS)
		records = append(records, rec)
	}
	return records, rows.Err()
}
