package persistence

import "errors"

var (
	// ErrPersistence wraps failed snapshot writes and unreadable snapshot files.
	ErrPersistence = errors.New("persistence failure")
	// ErrStartupCorruption is returned by Restore when the snapshot file could
	// not be decoded. The process continues with an empty registry.
	ErrStartupCorruption = errors.New("snapshot file is corrupt")
)
