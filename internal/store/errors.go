package store

import "errors"

var (
	// ErrConflict is returned when a write would give a staff member two
	// active appointments in overlapping ranges.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key other than the slot is already taken.
	ErrDuplicate = errors.New("duplicate")
)
