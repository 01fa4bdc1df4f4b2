package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StopReason tells how a practice session ended.
type StopReason string

const (
	ReasonManual StopReason = "manual"
	ReasonAuto   StopReason = "auto"
)

// Record is one finished practice session as reported at stop time.
type Record struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt time.Time  `json:"stopped_at"`
	Total     int        `json:"total"` // seconds of music in the last unbroken run
	Idle      int        `json:"idle"`
	Ticks     int        `json:"ticks"`
	Reason    StopReason `json:"reason"`
}

// RecordSession stores a finished session, assigning an ID when empty.
func (s *Store) RecordSession(r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO practice_sessions (id, started_at, stopped_at, total, idle, ticks, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.StoppedAt.UTC().Format(time.RFC3339Nano),
		r.Total, r.Idle, r.Ticks, string(r.Reason),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert session: %w", err)
	}
	return r, nil
}

// RecentSessions returns finished sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, stopped_at, total, idle, ticks, reason FROM practice_sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var started, stopped, reason string
		if err := rows.Scan(&r.ID, &started, &stopped, &r.Total, &r.Idle, &r.Ticks, &reason); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.StoppedAt, _ = time.Parse(time.RFC3339Nano, stopped)
		r.Reason = StopReason(reason)
		out = append(out, r)
	}
	return out, rows.Err()
}
