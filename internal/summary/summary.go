package summary

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/mpaulsen/keepup/internal/model"
	"github.com/mpaulsen/keepup/internal/schedule"
	"github.com/mpaulsen/keepup/internal/store"
	"github.com/mpaulsen/keepup/internal/timeutil"
)

// Builder renders the daily HTML summary: today's meetings, conflicts,
// the most-met attendees, and the stalest contacts.
type Builder struct {
	view      *schedule.View
	attendees *store.AttendeeStore
	norm      *timeutil.Normalizer
	topN      int
	staleN    int
}

func NewBuilder(view *schedule.View, attendees *store.AttendeeStore, norm *timeutil.Normalizer, topN, staleN int) *Builder {
	return &Builder{view: view, attendees: attendees, norm: norm, topN: topN, staleN: staleN}
}

type eventRow struct {
	TimeRange string
	Location  string
	Subject   string
}

type conflictRow struct {
	Slot     string
	Subjects []string
}

type attendeeRow struct {
	Name     string
	Email    string
	First    string
	Last     string
	Next     string
	Subject  string
	TimesMet int
}

type staleRow struct {
	Name  string
	Email string
	Last  string
}

type summaryData struct {
	Date      string
	Events    []eventRow
	Conflicts []conflictRow
	Top       []attendeeRow
	Stale     []staleRow
}

var summaryTmpl = template.Must(template.New("summary").Parse(`<html><body>
<h2>Meetings for {{.Date}}</h2>
{{if .Events}}<table border='1' cellspacing='0' cellpadding='5'>
<tr><th>Time</th><th>Location</th><th>Subject</th></tr>
{{range .Events}}<tr><td>{{.TimeRange}}</td><td>{{.Location}}</td><td>{{.Subject}}</td></tr>
{{end}}</table>{{else}}<p>No meetings today.</p>{{end}}
{{if .Conflicts}}<h2>Meeting Conflicts</h2>
<table border='1' cellspacing='0' cellpadding='5'>
<tr><th>Time Slot</th><th>Meetings</th></tr>
{{range .Conflicts}}<tr><td>{{.Slot}}</td><td>{{range .Subjects}}{{.}}<br>{{end}}</td></tr>
{{end}}</table>{{end}}
{{if .Top}}<h2>Attendee Summary (Top {{len .Top}})</h2>
<table border='1' cellspacing='0' cellpadding='5'>
<tr><th>Name</th><th>Email</th><th>First Meeting</th><th>Last Meeting</th><th>Next Meeting</th><th>Last Subject</th><th>Times Met</th></tr>
{{range .Top}}<tr><td>{{.Name}}</td><td>{{.Email}}</td><td>{{.First}}</td><td>{{.Last}}</td><td>{{.Next}}</td><td>{{.Subject}}</td><td>{{.TimesMet}}</td></tr>
{{end}}</table>{{end}}
{{if .Stale}}<h2>Stale Contacts (Top {{len .Stale}})</h2>
<table border='1' cellspacing='0' cellpadding='5'>
<tr><th>Name</th><th>Email</th><th>Last Meeting</th></tr>
{{range .Stale}}<tr><td>{{.Name}}</td><td>{{.Email}}</td><td>{{.Last}}</td></tr>
{{end}}</table>{{end}}
</body></html>`))

// BuildDaily renders the summary for now's local date.
func (b *Builder) BuildDaily(ctx context.Context, now time.Time) (string, error) {
	events, err := b.view.EventsForDay(ctx, now)
	if err != nil {
		return "", fmt.Errorf("load day events: %w", err)
	}

	data := summaryData{Date: b.norm.Localize(now).Format("Monday, January 2, 2006")}

	for _, ev := range events {
		data.Events = append(data.Events, eventRow{
			TimeRange: b.timeRange(ev),
			Location:  ev.Location,
			Subject:   SubjectOrPlaceholder(ev.Subject),
		})
	}

	for _, g := range schedule.GroupConflicts(events, b.norm) {
		row := conflictRow{Slot: FormatClock(g.Start) + " - " + FormatClock(g.End)}
		for _, ev := range g.Events {
			row.Subjects = append(row.Subjects, SubjectOrPlaceholder(ev.Subject))
		}
		data.Conflicts = append(data.Conflicts, row)
	}

	all, err := b.attendees.All()
	if err != nil {
		return "", fmt.Errorf("load attendees: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TimesMet > all[j].TimesMet })
	for i, rec := range all {
		if i >= b.topN {
			break
		}
		data.Top = append(data.Top, attendeeRow{
			Name:     rec.DisplayName,
			Email:    rec.Email,
			First:    b.stamp(rec.FirstMeeting),
			Last:     b.stamp(rec.LastMeeting),
			Next:     b.stamp(rec.NextMeeting),
			Subject:  rec.LastMeetingSubject,
			TimesMet: rec.TimesMet,
		})
	}

	stale, err := b.attendees.RankStale(true, b.staleN)
	if err != nil {
		return "", fmt.Errorf("rank stale: %w", err)
	}
	for _, rec := range stale {
		data.Stale = append(data.Stale, staleRow{
			Name:  rec.DisplayName,
			Email: rec.Email,
			Last:  b.stamp(rec.LastMeeting),
		})
	}

	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}

func (b *Builder) timeRange(ev model.Event) string {
	if ev.AllDay {
		return "All Day"
	}
	start := b.norm.Localize(ev.Start)
	end := b.norm.Localize(ev.End)
	if !b.norm.SameLocalDay(ev.Start, ev.End) {
		return "All Day / Multi-Day Event"
	}
	return FormatClock(start) + " - " + FormatClock(end)
}

func (b *Builder) stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return b.norm.Localize(*t).Format("01/02/2006 3:04 PM")
}

// FormatClock renders a wall-clock time without a leading zero.
func FormatClock(t time.Time) string {
	return t.Format("3:04 PM")
}

// SubjectOrPlaceholder substitutes the display placeholder for events
// with no resolvable subject.
func SubjectOrPlaceholder(subject string) string {
	if subject == "" {
		return "(No Subject)"
	}
	return subject
}
