package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateIdentity is returned when a person with the same national ID
	// already exists. The uniqueness constraint is enforced by the store at
	// write time, so concurrent registrations cannot both succeed.
	ErrDuplicateIdentity = errors.New("national ID already registered")
)
