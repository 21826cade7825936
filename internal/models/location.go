package models

import (
	"time"

	"github.com/google/uuid"
)

// Location is one geolocation sighting recorded for a person. Rows are written
// by the capture session on a positive match and never updated; they are
// removed only when the owning person is deleted.
type Location struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PersonID   uuid.UUID `json:"person_id" db:"person_id"`
	Latitude   float64   `json:"latitude" db:"latitude"`
	Longitude  float64   `json:"longitude" db:"longitude"`
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
}
