package ledger

import (
	"log/slog"
	"testing"
	"time"

	"github.com/mpaulsen/keepup/internal/database"
	"github.com/mpaulsen/keepup/internal/model"
	"github.com/mpaulsen/keepup/internal/store"
)

func setupLedger(t *testing.T) (*Ledger, *store.AttendeeStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	attendees := store.NewAttendeeStore(db)
	return New(attendees, "owner@example.com", slog.Default()), attendees
}

func eventWith(id, subject string, start time.Time, emails ...string) model.Event {
	ev := model.Event{
		ID:      id,
		Subject: subject,
		Start:   start,
		End:     start.Add(30 * time.Minute),
	}
	for _, e := range emails {
		ev.Attendees = append(ev.Attendees, model.Attendee{Email: e, DisplayName: "Contact"})
	}
	return ev
}

var ref = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func TestFoldCreatesPastRecord(t *testing.T) {
	l, attendees := setupLedger(t)

	start := ref.Add(-48 * time.Hour)
	if err := l.Fold(eventWith("ev-1", "Kickoff", start, "carol@example.com"), ref); err != nil {
		t.Fatalf("fold: %v", err)
	}

	rec, err := attendees.Get("carol@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.FirstMeeting == nil || !rec.FirstMeeting.Equal(start) {
		t.Errorf("first meeting = %v, want %v", rec.FirstMeeting, start)
	}
	if rec.LastMeeting == nil || !rec.LastMeeting.Equal(start) {
		t.Errorf("last meeting = %v, want %v", rec.LastMeeting, start)
	}
	if rec.NextMeeting != nil {
		t.Errorf("next meeting = %v, want nil", rec.NextMeeting)
	}
	if rec.LastMeetingSubject != "Kickoff" {
		t.Errorf("last meeting subject = %q, want Kickoff", rec.LastMeetingSubject)
	}
	if rec.TimesMet != 1 {
		t.Errorf("times met = %d, want 1", rec.TimesMet)
	}
}

func TestFoldCreatesFutureRecord(t *testing.T) {
	l, attendees := setupLedger(t)

	start := ref.Add(72 * time.Hour)
	if err := l.Fold(eventWith("ev-1", "Upcoming", start, "dave@example.com"), ref); err != nil {
		t.Fatalf("fold: %v", err)
	}

	rec, _ := attendees.Get("dave@example.com")
	if rec.FirstMeeting != nil || rec.LastMeeting != nil {
		t.Errorf("first/last should be absent for a future-only contact, got %v/%v", rec.FirstMeeting, rec.LastMeeting)
	}
	if rec.NextMeeting == nil || !rec.NextMeeting.Equal(start) {
		t.Errorf("next meeting = %v, want %v", rec.NextMeeting, start)
	}
}

func TestFirstLastBoundsAnyFoldOrder(t *testing.T) {
	t1 := ref.Add(-72 * time.Hour)
	t2 := ref.Add(-48 * time.Hour)
	t3 := ref.Add(-24 * time.Hour)

	orders := [][]time.Time{
		{t1, t2, t3},
		{t3, t2, t1},
		{t2, t3, t1},
	}
	subjects := map[time.Time]string{t1: "Earliest", t2: "Middle", t3: "Latest"}

	for _, order := range orders {
		l, attendees := setupLedger(t)
		for _, start := range order {
			ev := eventWith("ev-"+subjects[start], subjects[start], start, "erin@example.com")
			if err := l.Fold(ev, ref); err != nil {
				t.Fatalf("fold: %v", err)
			}
		}
		rec, _ := attendees.Get("erin@example.com")
		if rec.FirstMeeting == nil || !rec.FirstMeeting.Equal(t1) {
			t.Errorf("order %v: first = %v, want %v", order, rec.FirstMeeting, t1)
		}
		if rec.LastMeeting == nil || !rec.LastMeeting.Equal(t3) {
			t.Errorf("order %v: last = %v, want %v", order, rec.LastMeeting, t3)
		}
		if rec.LastMeetingSubject != "Latest" {
			t.Errorf("order %v: subject = %q, want Latest", order, rec.LastMeetingSubject)
		}
		if rec.TimesMet != 3 {
			t.Errorf("order %v: times met = %d, want 3", order, rec.TimesMet)
		}
	}
}

func TestNextMeetingPicksEarliestFuture(t *testing.T) {
	far := ref.Add(10 * 24 * time.Hour)
	near := ref.Add(2 * 24 * time.Hour)

	for _, order := range [][]time.Time{{far, near}, {near, far}} {
		l, attendees := setupLedger(t)
		for _, start := range order {
			if err := l.Fold(eventWith("ev-"+start.String(), "Future", start, "frank@example.com"), ref); err != nil {
				t.Fatalf("fold: %v", err)
			}
		}
		rec, _ := attendees.Get("frank@example.com")
		if rec.NextMeeting == nil || !rec.NextMeeting.Equal(near) {
			t.Errorf("order %v: next = %v, want %v", order, rec.NextMeeting, near)
		}
	}
}

func TestFoldExcludesOwner(t *testing.T) {
	l, attendees := setupLedger(t)

	start := ref.Add(-time.Hour)
	ev := eventWith("ev-1", "1:1", start, "Owner@Example.com", "grace@example.com")
	if err := l.Fold(ev, ref); err != nil {
		t.Fatalf("fold: %v", err)
	}

	if rec, _ := attendees.Get("owner@example.com"); rec != nil {
		t.Error("owner must never get a ledger record")
	}
	if rec, _ := attendees.Get("grace@example.com"); rec == nil {
		t.Error("expected record for the counterpart")
	}
}

func TestFoldSkipsEmptyEmail(t *testing.T) {
	l, attendees := setupLedger(t)

	ev := model.Event{
		ID:    "ev-1",
		Start: ref.Add(-time.Hour),
		Attendees: []model.Attendee{
			{Email: "  ", DisplayName: "Ghost"},
			{Email: "heidi@example.com", DisplayName: "Heidi"},
		},
	}
	if err := l.Fold(ev, ref); err != nil {
		t.Fatalf("fold: %v", err)
	}

	all, err := attendees.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d records, want 1", len(all))
	}
}

// Re-folding the identical event id counts the meeting again. The sync
// engine accepts this in exchange for replay-tolerant passes, so the
// behavior is pinned here rather than corrected.
func TestRefoldSameEventDoubleCounts(t *testing.T) {
	l, attendees := setupLedger(t)

	ev := eventWith("ev-1", "Repeat", ref.Add(-time.Hour), "ivan@example.com")
	if err := l.Fold(ev, ref); err != nil {
		t.Fatalf("first fold: %v", err)
	}
	if err := l.Fold(ev, ref); err != nil {
		t.Fatalf("second fold: %v", err)
	}

	rec, _ := attendees.Get("ivan@example.com")
	if rec.TimesMet != 2 {
		t.Errorf("times met = %d, want 2 (documented double-count on replay)", rec.TimesMet)
	}
	if !rec.FirstMeeting.Equal(*rec.LastMeeting) {
		t.Errorf("first %v and last %v should match for a single replayed event", rec.FirstMeeting, rec.LastMeeting)
	}
}

func TestFoldUpdatesDisplayName(t *testing.T) {
	l, attendees := setupLedger(t)

	ev1 := model.Event{ID: "ev-1", Start: ref.Add(-2 * time.Hour),
		Attendees: []model.Attendee{{Email: "judy@example.com", DisplayName: "J. Doe"}}}
	ev2 := model.Event{ID: "ev-2", Start: ref.Add(-time.Hour),
		Attendees: []model.Attendee{{Email: "judy@example.com", DisplayName: "Judy Doe"}}}

	l.Fold(ev1, ref)
	l.Fold(ev2, ref)

	rec, _ := attendees.Get("judy@example.com")
	if rec.DisplayName != "Judy Doe" {
		t.Errorf("display name = %q, want last observed %q", rec.DisplayName, "Judy Doe")
	}
}
