package port

import "errors"

// Adapters wrap these so services can branch on them without importing an adapter.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
)
