package model

import "time"

// AttendeeRecord is the running aggregate for one counterpart across the
// whole event history. Keyed by lower-cased email.
type AttendeeRecord struct {
	Email              string     `json:"email"`
	DisplayName        string     `json:"display_name"`
	FirstMeeting       *time.Time `json:"first_meeting"`
	LastMeeting        *time.Time `json:"last_meeting"`
	NextMeeting        *time.Time `json:"next_meeting"`
	LastMeetingSubject string     `json:"last_meeting_subject"`
	TimesMet           int        `json:"times_met"`
	OkToIgnore         bool       `json:"ok_to_ignore"`
}
