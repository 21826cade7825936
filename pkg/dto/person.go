package dto

import "github.com/google/uuid"

// PersonForm carries the multipart fields of a registration or update
// request. The reference photo travels alongside as the "photo" file part.
type PersonForm struct {
	FirstName   string `form:"first_name" binding:"required"`
	LastName    string `form:"last_name" binding:"required"`
	FatherName  string `form:"father_name"`
	DateOfBirth string `form:"date_of_birth" binding:"required"` // 2006-01-02
	Address     string `form:"address"`
	Email       string `form:"email" binding:"required,email"`
	Phone       string `form:"phone"`
	NationalID  string `form:"national_id" binding:"required,len=12,numeric"`
	Gender      string `form:"gender" binding:"required"`
	MissingFrom string `form:"missing_from" binding:"required"` // 2006-01-02
	Status      string `form:"status"`
	Approval    string `form:"approval"`
}

type PersonResponse struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FatherName  string    `json:"father_name,omitempty"`
	DateOfBirth string    `json:"date_of_birth"`
	Address     string    `json:"address,omitempty"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	NationalID  string    `json:"national_id"`
	Gender      string    `json:"gender"`
	PhotoKey    string    `json:"photo_key,omitempty"`
	MissingFrom string    `json:"missing_from"`
	Status      string    `json:"status"`
	Approval    string    `json:"approval"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

type LocationResponse struct {
	ID         uuid.UUID `json:"id"`
	PersonID   uuid.UUID `json:"person_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DetectedAt string    `json:"detected_at"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type SetApprovalRequest struct {
	Approval string `json:"approval" binding:"required"`
}

type SearchResult struct {
	PersonID uuid.UUID `json:"person_id"`
	Name     string    `json:"name"`
	Score    float64   `json:"score"`
}
