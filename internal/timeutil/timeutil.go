package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Normalizer parses provider timestamps into aware instants and projects
// them into a single configured local zone. The zone is fixed at
// construction; it is never the process zone.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer loads the given IANA zone name.
func NewNormalizer(zone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", zone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// Location returns the configured local zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Layouts without an offset are interpreted in the configured local zone:
// the provider delivers event times pre-localized when asked to, so a
// naive timestamp is local, not UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Parse converts a provider timestamp into an aware instant.
// Accepted shapes: RFC3339 with Z or explicit offset, naive ISO-8601
// (interpreted in the local zone), and bare dates (midnight UTC, used for
// day bucketing only).
func (n *Normalizer) Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// Localize projects an instant into the configured local zone.
func (n *Normalizer) Localize(t time.Time) time.Time {
	return t.In(n.loc)
}

// LocalDate returns midnight of t's civil date in the configured zone.
func (n *Normalizer) LocalDate(t time.Time) time.Time {
	lt := t.In(n.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, n.loc)
}

// SameLocalDay reports whether two instants fall on the same civil date
// in the configured zone.
func (n *Normalizer) SameLocalDay(a, b time.Time) bool {
	return n.LocalDate(a).Equal(n.LocalDate(b))
}
