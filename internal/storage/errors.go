package storage

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict is returned by Save when the stored version no longer
	// matches the version the caller read. The caller should retry the turn.
	ErrConflict = errors.New("storage: version conflict")
)
