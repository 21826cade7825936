package dto

import "github.com/google/uuid"

type SightingResponse struct {
	ID         uuid.UUID `json:"id"`
	PersonID   uuid.UUID `json:"person_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Score      float32   `json:"score"`
	Notified   bool      `json:"notified"`
	ClipKey    string    `json:"clip_key,omitempty"`
	DetectedAt string    `json:"detected_at"`
}

// WSSighting is the WebSocket broadcast payload for a live match.
type WSSighting struct {
	Type       string    `json:"type"` // "sighting"
	SessionID  uuid.UUID `json:"session_id"`
	PersonID   uuid.UUID `json:"person_id"`
	PersonName string    `json:"person_name"`
	Score      float32   `json:"score"`
	Notified   bool      `json:"notified"`
	ClipKey    string    `json:"clip_key,omitempty"`
	DetectedAt string    `json:"detected_at"`
}
