// Package store: sqlite ledger of forwarded sessions and per-hop outcomes.
package store

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DB wraps sqlite (session ledger).
type DB struct {
	*sql.DB
}

// Open opens db at path, runs migrations. ":memory:" works for tests.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" a single database
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate ledger")
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL UNIQUE,
			mode TEXT NOT NULL,
			shape TEXT,
			remote_addr TEXT,
			next_hop TEXT,
			target TEXT,
			bytes_in INTEGER NOT NULL DEFAULT 0,
			bytes_out INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS hops (
			addr TEXT PRIMARY KEY,
			successes INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			last_seen_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
		CREATE INDEX IF NOT EXISTS idx_sessions_next_hop ON sessions(next_hop);
	`)
	return err
}

// Outcome values.
const (
	OutcomeOK = "ok"
)

// Session: one accepted connection from accept to teardown.
type Session struct {
	ID         int64
	SessionID  string
	Mode       string
	Shape      string
	RemoteAddr string
	NextHop    string
	Target     string
	// BytesIn client-to-chain payload bytes, BytesOut the reverse.
	BytesIn  int64
	BytesOut int64
	// Outcome "ok" or the failure kind.
	Outcome   string
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
}

// Record inserts s and updates the hop counters for s.NextHop.
func (db *DB) Record(s *Session) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	res, err := tx.Exec(`INSERT INTO sessions
		(session_id, mode, shape, remote_addr, next_hop, target, bytes_in, bytes_out, outcome, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Mode, s.Shape, s.RemoteAddr, s.NextHop, s.Target, s.BytesIn, s.BytesOut,
		s.Outcome, s.Error, formatTime(s.StartedAt), formatTime(s.EndedAt))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if s.NextHop != "" {
		ok, failed := 1, 0
		if s.Outcome != OutcomeOK && s.Shape == "" {
			// never got a route: the hop itself failed
			ok, failed = 0, 1
		}
		_, err = tx.Exec(`INSERT INTO hops (addr, successes, failures, last_error, last_seen_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(addr) DO UPDATE SET
				successes = successes + excluded.successes,
				failures = failures + excluded.failures,
				last_error = CASE WHEN excluded.failures > 0 THEN excluded.last_error ELSE hops.last_error END,
				last_seen_at = excluded.last_seen_at`,
			s.NextHop, ok, failed, s.Error, formatTime(s.EndedAt))
		if err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}

// Recent returns up to limit sessions, newest first.
func (db *DB) Recent(limit int) ([]Session, error) {
	rows, err := db.Query(`SELECT id, session_id, mode, COALESCE(shape, ''), COALESCE(remote_addr, ''),
		COALESCE(next_hop, ''), COALESCE(target, ''), bytes_in, bytes_out, outcome, COALESCE(error, ''),
		started_at, ended_at FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		var s Session
		var started, ended string
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Mode, &s.Shape, &s.RemoteAddr, &s.NextHop, &s.Target,
			&s.BytesIn, &s.BytesOut, &s.Outcome, &s.Error, &started, &ended); err != nil {
			return nil, err
		}
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		s.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Hop: accumulated outcomes for one next-hop address.
type Hop struct {
	Addr       string
	Successes  int64
	Failures   int64
	LastError  string
	LastSeenAt time.Time
}

// HopByAddr returns hop stats or nil.
func (db *DB) HopByAddr(addr string) (*Hop, error) {
	var h Hop
	var seen string
	err := db.QueryRow(`SELECT addr, successes, failures, COALESCE(last_error, ''), last_seen_at FROM hops WHERE addr = ?`, addr).
		Scan(&h.Addr, &h.Successes, &h.Failures, &h.LastError, &seen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.LastSeenAt, _ = time.Parse(time.RFC3339Nano, seen)
	return &h, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}
