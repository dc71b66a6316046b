package store

import "errors"

var (
	// ErrEmptyDatabasePath is returned when Open is called with an empty
	// database file path.
	ErrEmptyDatabasePath = errors.New("store: database path is empty")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: store is closed")

	// ErrNoLinks is returned by batch write operations called with an
	// empty batch where that indicates a caller bug.
	ErrNoLinks = errors.New("store: no links provided")
)
