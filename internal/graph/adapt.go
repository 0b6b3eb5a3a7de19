package graph

import (
	"fmt"
	"strings"

	"github.com/mpaulsen/keepup/internal/model"
	"github.com/mpaulsen/keepup/internal/timeutil"
)

// Adapt maps a provider payload onto the local event record. Provider key
// names stop here; everything downstream sees model.Event. An event whose
// timestamps cannot be parsed is rejected so the sync pass can skip it
// without aborting.
func Adapt(raw RawEvent, norm *timeutil.Normalizer) (model.Event, error) {
	if raw.ID == "" {
		return model.Event{}, fmt.Errorf("event missing id")
	}

	startRaw := raw.Start.DateTime
	if startRaw == "" {
		startRaw = raw.Start.Date
	}
	if startRaw == "" {
		return model.Event{}, fmt.Errorf("event %s missing start", raw.ID)
	}
	start, err := norm.Parse(startRaw)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s start: %w", raw.ID, err)
	}

	endRaw := raw.End.DateTime
	if endRaw == "" {
		endRaw = raw.End.Date
	}
	end := start
	if endRaw != "" {
		end, err = norm.Parse(endRaw)
		if err != nil {
			return model.Event{}, fmt.Errorf("event %s end: %w", raw.ID, err)
		}
	}

	ev := model.Event{
		ID:             raw.ID,
		Subject:        strings.TrimSpace(raw.Subject),
		Start:          start,
		End:            end,
		StartZone:      raw.Start.TimeZone,
		Location:       raw.Location.DisplayName,
		OrganizerEmail: strings.ToLower(strings.TrimSpace(raw.OrganizerEmail())),
		AllDay:         raw.IsAllDay || raw.Start.Date != "",
		SeriesMasterID: raw.SeriesMasterID,
	}
	ev.Attendees = adaptAttendees(raw.Attendees)
	return ev, nil
}

func adaptAttendees(raw []RawRecipient) []model.Attendee {
	var out []model.Attendee
	for _, att := range raw {
		addr := strings.ToLower(strings.TrimSpace(att.EmailAddress.Address))
		if addr == "" {
			continue
		}
		out = append(out, model.Attendee{
			Email:       addr,
			DisplayName: strings.TrimSpace(att.EmailAddress.Name),
		})
	}
	return out
}
