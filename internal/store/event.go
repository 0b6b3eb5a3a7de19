package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mpaulsen/keepup/internal/model"
)

// EventStore is the durable mirror of provider events, keyed by the
// provider's opaque id. Upsert fully replaces the prior row; there is no
// delete.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Upsert inserts the event or replaces every field of an existing row
// with the same id. Last write wins; no merge.
func (s *EventStore) Upsert(ev model.Event) error {
	attendees, err := json.Marshal(ev.Attendees)
	if err != nil {
		return fmt.Errorf("marshal attendees: %w", err)
	}

	var allDayInt int
	if ev.AllDay {
		allDayInt = 1
	}

	_, err = s.db.Exec(
		`INSERT INTO events (id, subject, start_time, end_time, start_zone, location, organizer_email, attendees, all_day, series_master_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   subject = excluded.subject,
		   start_time = excluded.start_time,
		   end_time = excluded.end_time,
		   start_zone = excluded.start_zone,
		   location = excluded.location,
		   organizer_email = excluded.organizer_email,
		   attendees = excluded.attendees,
		   all_day = excluded.all_day,
		   series_master_id = excluded.series_master_id,
		   updated_at = CURRENT_TIMESTAMP`,
		ev.ID, ev.Subject, ev.Start.UTC(), ev.End.UTC(), ev.StartZone, ev.Location,
		ev.OrganizerEmail, string(attendees), allDayInt, ev.SeriesMasterID,
	)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

// GetByID returns the event with the given id, or nil if absent.
func (s *EventStore) GetByID(id string) (*model.Event, error) {
	row := s.db.QueryRow(
		`SELECT id, subject, start_time, end_time, start_zone, location, organizer_email, attendees, all_day, series_master_id, created_at, updated_at
		 FROM events WHERE id = ?`,
		id,
	)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return ev, nil
}

// All returns every stored event ordered by start time.
func (s *EventStore) All() ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, subject, start_time, end_time, start_zone, location, organizer_email, attendees, all_day, series_master_id, created_at, updated_at
		 FROM events ORDER BY start_time ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// Count returns the number of mirrored events.
func (s *EventStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var ev model.Event
	var attendees string
	var allDayInt int

	err := row.Scan(&ev.ID, &ev.Subject, &ev.Start, &ev.End, &ev.StartZone, &ev.Location,
		&ev.OrganizerEmail, &attendees, &allDayInt, &ev.SeriesMasterID, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}

	ev.AllDay = allDayInt != 0
	if err := json.Unmarshal([]byte(attendees), &ev.Attendees); err != nil {
		return nil, fmt.Errorf("unmarshal attendees: %w", err)
	}
	return &ev, nil
}
