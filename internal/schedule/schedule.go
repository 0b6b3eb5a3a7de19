package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mpaulsen/keepup/internal/model"
	"github.com/mpaulsen/keepup/internal/store"
	"github.com/mpaulsen/keepup/internal/timeutil"
)

// Resolver fills in series-master inherited fields at read time. May be
// nil, in which case events are returned exactly as stored.
type Resolver interface {
	Resolve(ctx context.Context, ev model.Event) model.Event
}

// View answers day-schedule questions from the mirrored events: what is
// on a given date, where the conflicts are, and which days have a free
// window. It never writes.
type View struct {
	events   *store.EventStore
	norm     *timeutil.Normalizer
	resolver Resolver
}

func New(events *store.EventStore, norm *timeutil.Normalizer, resolver Resolver) *View {
	return &View{events: events, norm: norm, resolver: resolver}
}

// EventsForDay returns events whose localized [start date, end date]
// interval contains the given day, inclusive on both ends, so multi-day
// and all-day events surface on every covered day. Sorted by localized
// start.
func (v *View) EventsForDay(ctx context.Context, day time.Time) ([]model.Event, error) {
	all, err := v.events.All()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	target := v.norm.LocalDate(day)
	var out []model.Event
	for _, ev := range all {
		startDate := v.norm.LocalDate(ev.Start)
		endDate := v.norm.LocalDate(ev.End)
		if target.Before(startDate) || target.After(endDate) {
			continue
		}
		out = append(out, v.resolve(ctx, ev))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// OpenWindows scans from now's local date through horizonDays days
// ahead, both ends inclusive, so horizonDays of 0 checks today only and
// horizonDays of 3 checks four days. It returns the days satisfying the
// weekday predicate where no timed event intersects
// [day+winStart, day+winEnd). All-day events never block a window.
// winStart and winEnd are offsets from local midnight.
func (v *View) OpenWindows(winStart, winEnd time.Duration, weekdayOK func(time.Weekday) bool, horizonDays int, now time.Time) ([]time.Time, error) {
	all, err := v.events.All()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	var timed []model.Event
	for _, ev := range all {
		if !ev.AllDay {
			timed = append(timed, ev)
		}
	}

	var open []time.Time
	start := v.norm.LocalDate(now)
	for i := 0; i <= horizonDays; i++ {
		day := start.AddDate(0, 0, i)
		if !weekdayOK(day.Weekday()) {
			continue
		}
		ws := clockTime(day, winStart, v.norm.Location())
		we := clockTime(day, winEnd, v.norm.Location())

		busy := false
		for _, ev := range timed {
			if ev.Start.Before(we) && ev.End.After(ws) {
				busy = true
				break
			}
		}
		if !busy {
			open = append(open, day)
		}
	}
	return open, nil
}

// clockTime anchors an offset-from-midnight on a civil date. Built with
// time.Date so the wall clock stays right across DST transitions.
func clockTime(day time.Time, offset time.Duration, loc *time.Location) time.Time {
	h := int(offset / time.Hour)
	m := int(offset % time.Hour / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
}

// GroupConflicts sweeps events, pre-sorted ascending by start, and
// returns maximal runs of ≥2 timed events whose intervals transitively
// overlap. Overlap is transitive by design: A∩B and B∩C chain A, B and C
// into one group even when A and C are disjoint. All-day events never
// participate.
func GroupConflicts(events []model.Event, norm *timeutil.Normalizer) []model.ConflictGroup {
	var groups []model.ConflictGroup
	var current []model.Event
	var currentEnd time.Time

	flush := func() {
		if len(current) > 1 {
			groups = append(groups, makeGroup(current, currentEnd, norm))
		}
		current = nil
	}

	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if len(current) == 0 {
			current = []model.Event{ev}
			currentEnd = ev.End
			continue
		}
		if ev.Start.Before(currentEnd) {
			current = append(current, ev)
			if ev.End.After(currentEnd) {
				currentEnd = ev.End
			}
		} else {
			flush()
			current = []model.Event{ev}
			currentEnd = ev.End
		}
	}
	flush()
	return groups
}

func makeGroup(events []model.Event, end time.Time, norm *timeutil.Normalizer) model.ConflictGroup {
	return model.ConflictGroup{
		Events: events,
		Start:  norm.Localize(events[0].Start),
		End:    norm.Localize(end),
	}
}

func (v *View) resolve(ctx context.Context, ev model.Event) model.Event {
	if v.resolver == nil {
		return ev
	}
	return v.resolver.Resolve(ctx, ev)
}

// Weekdays is the predicate for Monday through Friday.
func Weekdays(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}
