package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mpaulsen/keepup/internal/model"
)

// AttendeeStore persists per-counterpart aggregates, keyed by lower-cased
// email. Records are created and updated by the ledger fold; the only
// externally driven mutation is the ok_to_ignore flag.
type AttendeeStore struct {
	db *sql.DB
}

func NewAttendeeStore(db *sql.DB) *AttendeeStore {
	return &AttendeeStore{db: db}
}

// Get returns the record for the given email, or nil if absent.
func (s *AttendeeStore) Get(email string) (*model.AttendeeRecord, error) {
	row := s.db.QueryRow(
		`SELECT email, display_name, first_meeting, last_meeting, next_meeting, last_meeting_subject, times_met, ok_to_ignore
		 FROM attendees WHERE email = ?`,
		strings.ToLower(email),
	)
	rec, err := scanAttendee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query attendee: %w", err)
	}
	return rec, nil
}

// Put inserts or fully replaces the record keyed by its email.
func (s *AttendeeStore) Put(rec model.AttendeeRecord) error {
	var ignoreInt int
	if rec.OkToIgnore {
		ignoreInt = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO attendees (email, display_name, first_meeting, last_meeting, next_meeting, last_meeting_subject, times_met, ok_to_ignore)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   display_name = excluded.display_name,
		   first_meeting = excluded.first_meeting,
		   last_meeting = excluded.last_meeting,
		   next_meeting = excluded.next_meeting,
		   last_meeting_subject = excluded.last_meeting_subject,
		   times_met = excluded.times_met,
		   ok_to_ignore = excluded.ok_to_ignore`,
		strings.ToLower(rec.Email), rec.DisplayName, nullTime(rec.FirstMeeting),
		nullTime(rec.LastMeeting), nullTime(rec.NextMeeting),
		rec.LastMeetingSubject, rec.TimesMet, ignoreInt,
	)
	if err != nil {
		return fmt.Errorf("upsert attendee: %w", err)
	}
	return nil
}

// All returns every attendee record ordered by times met, most first.
func (s *AttendeeStore) All() ([]model.AttendeeRecord, error) {
	rows, err := s.db.Query(
		`SELECT email, display_name, first_meeting, last_meeting, next_meeting, last_meeting_subject, times_met, ok_to_ignore
		 FROM attendees ORDER BY times_met DESC, email ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query attendees: %w", err)
	}
	defer rows.Close()

	var records []model.AttendeeRecord
	for rows.Next() {
		rec, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// RankStale returns up to limit records with a known last meeting, oldest
// first. When excludeIgnored is set, records flagged ok_to_ignore are
// left out of the ranking.
func (s *AttendeeStore) RankStale(excludeIgnored bool, limit int) ([]model.AttendeeRecord, error) {
	q := `SELECT email, display_name, first_meeting, last_meeting, next_meeting, last_meeting_subject, times_met, ok_to_ignore
	      FROM attendees WHERE last_meeting IS NOT NULL`
	if excludeIgnored {
		q += " AND ok_to_ignore = 0"
	}
	q += " ORDER BY last_meeting ASC LIMIT ?"

	rows, err := s.db.Query(q, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale attendees: %w", err)
	}
	defer rows.Close()

	var records []model.AttendeeRecord
	for rows.Next() {
		rec, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// MarkOkToIgnore flags an attendee so staleness ranking skips it. This is
// the external surface; the sync engine never sets it.
func (s *AttendeeStore) MarkOkToIgnore(email string) error {
	res, err := s.db.Exec("UPDATE attendees SET ok_to_ignore = 1 WHERE email = ?", strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("mark ok to ignore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("attendee %s not found", strings.ToLower(email))
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func scanAttendee(row rowScanner) (*model.AttendeeRecord, error) {
	var rec model.AttendeeRecord
	var first, last, next sql.NullTime
	var ignoreInt int

	err := row.Scan(&rec.Email, &rec.DisplayName, &first, &last, &next,
		&rec.LastMeetingSubject, &rec.TimesMet, &ignoreInt)
	if err != nil {
		return nil, err
	}

	if first.Valid {
		t := first.Time
		rec.FirstMeeting = &t
	}
	if last.Valid {
		t := last.Time
		rec.LastMeeting = &t
	}
	if next.Valid {
		t := next.Time
		rec.NextMeeting = &t
	}
	rec.OkToIgnore = ignoreInt != 0
	return &rec, nil
}
