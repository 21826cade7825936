package models

import (
	"time"

	"github.com/google/uuid"
)

// Sighting records one positive face match during a surveillance session.
// Only the first sighting of a session carries a notification; later ones are
// stored and broadcast but never emailed.
type Sighting struct {
	ID         uuid.UUID `json:"id" db:"id"`
	PersonID   uuid.UUID `json:"person_id" db:"person_id"`
	SessionID  uuid.UUID `json:"session_id" db:"session_id"`
	Score      float32   `json:"score" db:"score"`
	Notified   bool      `json:"notified" db:"notified"`
	ClipKey    string    `json:"clip_key" db:"clip_key"`
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SessionCommand is the control message published to NATS for the watcher.
type SessionCommand struct {
	Action    string    `json:"action"` // start, stop
	SessionID uuid.UUID `json:"session_id"`
	Device    string    `json:"device,omitempty"`
}

// SightingEvent is the message published to JetStream when a session matches
// a registered person. The API stores it and broadcasts it over WebSocket.
type SightingEvent struct {
	SessionID  uuid.UUID `json:"session_id"`
	PersonID   uuid.UUID `json:"person_id"`
	PersonName string    `json:"person_name"`
	Score      float32   `json:"score"`
	Notified   bool      `json:"notified"`
	ClipKey    string    `json:"clip_key,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}
