package engine

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store durably records every SessionEvent a Notifier fires, so alerts
// survive a restart and can be queried after the fact — the durable
// sibling of the fire-and-forget webhook/command/email channels.
//
// Grounded on R2Northstar-Atlas/db/atlasdb/db.go's DB wrapper: a struct
// holding a *sqlx.DB, opened with WAL and a busy timeout via URL query
// parameters for safe concurrent access from the capture goroutines.
type Store struct {
	x *sqlx.DB
}

const createAlertsTable = `
CREATE TABLE IF NOT EXISTS alerts (
	id      TEXT PRIMARY KEY NOT NULL,
	kind    TEXT NOT NULL,
	ip      TEXT NOT NULL,
	reason  TEXT NOT NULL,
	ts      TEXT NOT NULL
)`

// Open opens (creating if necessary) a sqlite-backed Store at path.
func Open(path string) (*Store, error) {
	dsn := (&url.URL{
		Path: path,
		RawQuery: (url.Values{
			"_pragma": {"journal_mode(WAL)", "busy_timeout(6000)"},
		}).Encode(),
	}).String()

	x, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}
	if _, err := x.Exec(createAlertsTable); err != nil {
		x.Close()
		return nil, fmt.Errorf("engine: create alerts table: %w", err)
	}
	return &Store{x: x}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.x.Close()
}

// Record persists one SessionEvent and returns its generated ID.
func (s *Store) Record(event SessionEvent) (string, error) {
	id := uuid.New().String()
	_, err := s.x.Exec(
		`INSERT INTO alerts (id, kind, ip, reason, ts) VALUES (?, ?, ?, ?, ?)`,
		id, event.Kind, event.IP, event.Reason, event.TS,
	)
	if err != nil {
		return "", fmt.Errorf("engine: record alert: %w", err)
	}
	return id, nil
}

// alertRow is the sqlx scan target for Recent.
type alertRow struct {
	ID     string `db:"id"`
	Kind   string `db:"kind"`
	IP     string `db:"ip"`
	Reason string `db:"reason"`
	TS     string `db:"ts"`
}

// Recent returns up to limit most recently recorded alerts, newest first.
func (s *Store) Recent(limit int) ([]SessionEvent, error) {
	var rows []alertRow
	if err := s.x.Select(&rows, `SELECT * FROM alerts ORDER BY ts DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("engine: query recent alerts: %w", err)
	}
	events := make([]SessionEvent, len(rows))
	for i, r := range rows {
		events[i] = SessionEvent{Kind: r.Kind, IP: r.IP, Reason: r.Reason, TS: r.TS}
	}
	return events, nil
}

// CountSince counts alerts of the given kind recorded at or after since.
func (s *Store) CountSince(kind string, since time.Time) (int, error) {
	var n int
	err := s.x.Get(&n, `SELECT COUNT(*) FROM alerts WHERE kind = ? AND ts >= ?`, kind, since.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("engine: count alerts: %w", err)
	}
	return n, nil
}
