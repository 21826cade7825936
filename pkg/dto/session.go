package dto

import "github.com/google/uuid"

type StartSessionRequest struct {
	Device string `json:"device"`
}

type SessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	Device    string    `json:"device,omitempty"`
}
