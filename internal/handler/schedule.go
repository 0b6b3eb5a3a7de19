package handler

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpaulsen/keepup/internal/model"
	"github.com/mpaulsen/keepup/internal/schedule"
	"github.com/mpaulsen/keepup/internal/store"
	"github.com/mpaulsen/keepup/internal/summary"
	"github.com/mpaulsen/keepup/internal/timeutil"
)

// ScheduleHandler serves the day schedule page and its JSON API.
type ScheduleHandler struct {
	view       *schedule.View
	attendees  *store.AttendeeStore
	norm       *timeutil.Normalizer
	staleLimit int
	logger     *slog.Logger
}

func NewScheduleHandler(view *schedule.View, attendees *store.AttendeeStore, norm *timeutil.Normalizer, staleLimit int, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{view: view, attendees: attendees, norm: norm, staleLimit: staleLimit, logger: logger}
}

type dayEventView struct {
	TimeRange string
	Location  string
	Subject   string
}

type conflictView struct {
	Slot     string
	Subjects []string
}

type attendeeView struct {
	Name     string
	Email    string
	Last     string
	Next     string
	Subject  string
	TimesMet int
}

type staleView struct {
	Name  string
	Email string
	Last  string
}

type dayPageData struct {
	Title     string
	Date      string
	DateInput string
	PrevDate  string
	NextDate  string
	Events    []dayEventView
	Conflicts []conflictView
	Top       []attendeeView
	Stale     []staleView
}

var dayPageTmpl = template.Must(template.New("day").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
th, td { border: 1px solid #999; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #eee; }
.nav a { margin-right: 1rem; }
</style>
</head>
<body>
<h1>Schedule for {{.Date}}</h1>
<div class="nav">
<a href="/?date={{.PrevDate}}">&larr; Previous</a>
<a href="/">Today</a>
<a href="/?date={{.NextDate}}">Next &rarr;</a>
<form method="get" action="/" style="display:inline">
<input type="date" name="date" value="{{.DateInput}}">
<button type="submit">Go</button>
</form>
</div>
{{if .Events}}<table>
<tr><th>Time</th><th>Location</th><th>Subject</th></tr>
{{range .Events}}<tr><td>{{.TimeRange}}</td><td>{{.Location}}</td><td>{{.Subject}}</td></tr>
{{end}}</table>{{else}}<p>No meetings.</p>{{end}}
{{if .Conflicts}}<h2>Conflicts</h2>
<table>
<tr><th>Time Slot</th><th>Meetings</th></tr>
{{range .Conflicts}}<tr><td>{{.Slot}}</td><td>{{range .Subjects}}{{.}}<br>{{end}}</td></tr>
{{end}}</table>{{end}}
{{if .Top}}<h2>Attendee Summary</h2>
<table>
<tr><th>Name</th><th>Email</th><th>Last Meeting</th><th>Next Meeting</th><th>Last Subject</th><th>Times Met</th></tr>
{{range .Top}}<tr><td>{{.Name}}</td><td>{{.Email}}</td><td>{{.Last}}</td><td>{{.Next}}</td><td>{{.Subject}}</td><td>{{.TimesMet}}</td></tr>
{{end}}</table>{{end}}
{{if .Stale}}<h2>Stale Contacts</h2>
<table>
<tr><th>Name</th><th>Email</th><th>Last Meeting</th><th></th></tr>
{{range .Stale}}<tr><td>{{.Name}}</td><td>{{.Email}}</td><td>{{.Last}}</td>
<td><a href="/ignore_attendee?email={{.Email}}">ignore</a></td></tr>
{{end}}</table>{{end}}
</body>
</html>`))

// DayPage renders the schedule for the requested date, defaulting to
// today. The date query parameter is a local civil date (YYYY-MM-DD).
func (h *ScheduleHandler) DayPage(w http.ResponseWriter, r *http.Request) {
	day, err := h.requestedDay(r)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	events, err := h.view.EventsForDay(r.Context(), day)
	if err != nil {
		h.logger.Error("load day events", "error", err)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	data := dayPageData{
		Title:     "keepup",
		Date:      day.Format("Monday, January 2, 2006"),
		DateInput: day.Format("2006-01-02"),
		PrevDate:  day.AddDate(0, 0, -1).Format("2006-01-02"),
		NextDate:  day.AddDate(0, 0, 1).Format("2006-01-02"),
	}

	for _, ev := range events {
		data.Events = append(data.Events, dayEventView{
			TimeRange: h.timeRange(ev),
			Location:  ev.Location,
			Subject:   summary.SubjectOrPlaceholder(ev.Subject),
		})
	}

	for _, g := range schedule.GroupConflicts(events, h.norm) {
		cv := conflictView{Slot: summary.FormatClock(g.Start) + " - " + summary.FormatClock(g.End)}
		for _, ev := range g.Events {
			cv.Subjects = append(cv.Subjects, summary.SubjectOrPlaceholder(ev.Subject))
		}
		data.Conflicts = append(data.Conflicts, cv)
	}

	if all, err := h.attendees.All(); err != nil {
		h.logger.Error("load attendees", "error", err)
	} else {
		for i, rec := range all {
			if i >= h.staleLimit {
				break
			}
			data.Top = append(data.Top, attendeeView{
				Name:     rec.DisplayName,
				Email:    rec.Email,
				Last:     h.stamp(rec.LastMeeting),
				Next:     h.stamp(rec.NextMeeting),
				Subject:  rec.LastMeetingSubject,
				TimesMet: rec.TimesMet,
			})
		}
	}

	if stale, err := h.attendees.RankStale(true, h.staleLimit); err != nil {
		h.logger.Error("rank stale attendees", "error", err)
	} else {
		for _, rec := range stale {
			data.Stale = append(data.Stale, staleView{
				Name:  rec.DisplayName,
				Email: rec.Email,
				Last:  h.stamp(rec.LastMeeting),
			})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dayPageTmpl.Execute(w, data); err != nil {
		h.logger.Error("render day page", "error", err)
	}
}

// Day serves the day's events as JSON.
func (h *ScheduleHandler) Day(w http.ResponseWriter, r *http.Request) {
	day, err := h.requestedDay(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	events, err := h.view.EventsForDay(r.Context(), day)
	if err != nil {
		h.logger.Error("load day events", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load schedule"})
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *ScheduleHandler) requestedDay(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.norm.LocalDate(time.Now()), nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, h.norm.Location())
	if err != nil {
		return time.Time{}, err
	}
	return day, nil
}

func (h *ScheduleHandler) timeRange(ev model.Event) string {
	if ev.AllDay {
		return "All Day"
	}
	if !h.norm.SameLocalDay(ev.Start, ev.End) {
		return "All Day / Multi-Day Event"
	}
	return summary.FormatClock(h.norm.Localize(ev.Start)) + " - " + summary.FormatClock(h.norm.Localize(ev.End))
}

func (h *ScheduleHandler) stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return h.norm.Localize(*t).Format("01/02/2006 3:04 PM")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
