package model

import "time"

// Attendee is one counterpart on an event invite.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Event is the local mirror of one provider calendar event. Fields are
// stored exactly as the provider sent them; subject and attendees of
// recurring instances may be empty and are inherited from the series
// master at read time, not baked into storage.
type Event struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	StartZone      string     `json:"start_zone"`
	Location       string     `json:"location"`
	OrganizerEmail string     `json:"organizer_email"`
	Attendees      []Attendee `json:"attendees"`
	AllDay         bool       `json:"all_day"`
	SeriesMasterID string     `json:"series_master_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ConflictGroup is a maximal run of timed events whose intervals
// transitively overlap, with the merged [Start, End) window.
type ConflictGroup struct {
	Events []Event   `json:"events"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}
