package models

import (
	"time"

	"github.com/google/uuid"
)

// RSVP is a registration for a meeting. Name and class are free-form
// registrant labels; (name, class, meeting_id) is unique in the store.
type RSVP struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Class      string    `json:"class"`
	MeetingID  uuid.UUID `json:"meeting_id"`
	WasPresent bool      `json:"was_present"`
	CreatedAt  time.Time `json:"created_at"`
}
