package ledger

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mpaulsen/keepup/internal/model"
	"github.com/mpaulsen/keepup/internal/store"
)

// Ledger folds observed events into per-attendee aggregates. It holds no
// wall-clock state: the reference instant that splits past from future is
// supplied by the caller on every fold.
type Ledger struct {
	attendees *store.AttendeeStore
	owner     string
	logger    *slog.Logger
}

func New(attendees *store.AttendeeStore, ownerEmail string, logger *slog.Logger) *Ledger {
	return &Ledger{
		attendees: attendees,
		owner:     strings.ToLower(strings.TrimSpace(ownerEmail)),
		logger:    logger,
	}
}

// Fold updates the aggregate of every attendee on the event, excluding
// the account owner. times_met increments once per call, so re-folding
// the same event id on a later sync pass counts it again; callers accept
// that in exchange for replay-tolerant sync.
func (l *Ledger) Fold(ev model.Event, ref time.Time) error {
	subject := strings.TrimSpace(ev.Subject)

	for _, att := range ev.Attendees {
		email := strings.ToLower(strings.TrimSpace(att.Email))
		if email == "" || email == l.owner {
			continue
		}

		rec, err := l.attendees.Get(email)
		if err != nil {
			return fmt.Errorf("load attendee %s: %w", email, err)
		}

		if rec == nil {
			rec = newRecord(email, ev.Start, ref, subject)
		} else {
			l.update(rec, ev.Start, ref, subject)
		}
		rec.DisplayName = strings.TrimSpace(att.DisplayName)
		rec.TimesMet++

		if err := l.attendees.Put(*rec); err != nil {
			return fmt.Errorf("store attendee %s: %w", email, err)
		}
		l.logger.Debug("folded attendee", "email", email, "event", ev.ID, "times_met", rec.TimesMet)
	}
	return nil
}

func newRecord(email string, start, ref time.Time, subject string) *model.AttendeeRecord {
	rec := &model.AttendeeRecord{Email: email}
	s := start.UTC()
	if !start.After(ref) {
		rec.FirstMeeting = &s
		rec.LastMeeting = &s
		rec.LastMeetingSubject = subject
	} else {
		rec.NextMeeting = &s
	}
	return rec
}

func (l *Ledger) update(rec *model.AttendeeRecord, start, ref time.Time, subject string) {
	s := start.UTC()

	if rec.FirstMeeting == nil || start.Before(*rec.FirstMeeting) {
		rec.FirstMeeting = &s
	}
	// Only past events move the last-meeting bound; the subject travels
	// with it.
	if !start.After(ref) && (rec.LastMeeting == nil || start.After(*rec.LastMeeting)) {
		rec.LastMeeting = &s
		rec.LastMeetingSubject = subject
	}
	if start.After(ref) && (rec.NextMeeting == nil || start.Before(*rec.NextMeeting)) {
		rec.NextMeeting = &s
	}
}
