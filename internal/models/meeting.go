package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting represents a scheduled club meeting, optionally with a workshop.
type Meeting struct {
	ID                  uuid.UUID `json:"id"`
	StartsAt            time.Time `json:"starts_at"`
	Location            string    `json:"location"`
	WorkshopTitle       *string   `json:"workshop_title,omitempty"`
	WorkshopDescription *string   `json:"workshop_description,omitempty"`
	Canceled            bool      `json:"canceled"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
