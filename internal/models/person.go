package models

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type Status string

const (
	StatusMissing Status = "Missing"
	StatusFound   Status = "Found"
)

type Approval string

const (
	ApprovalPending  Approval = "Pending"
	ApprovalApproved Approval = "Approved"
	ApprovalRejected Approval = "Rejected"
)

// Person is a missing-person case. NationalID is unique across all persons;
// Status and Approval are changed only through the admin endpoints.
type Person struct {
	ID          uuid.UUID `json:"id" db:"id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	FatherName  string    `json:"father_name" db:"father_name"`
	DateOfBirth time.Time `json:"date_of_birth" db:"date_of_birth"`
	Address     string    `json:"address" db:"address"`
	Email       string    `json:"email" db:"email"`
	Phone       string    `json:"phone" db:"phone"`
	NationalID  string    `json:"national_id" db:"national_id"`
	Gender      Gender    `json:"gender" db:"gender"`
	PhotoKey    string    `json:"photo_key" db:"photo_key"`
	Embedding   []float32 `json:"-" db:"embedding"`
	MissingFrom time.Time `json:"missing_from" db:"missing_from"`
	Status      Status    `json:"status" db:"status"`
	Approval    Approval  `json:"approval" db:"approval"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}
