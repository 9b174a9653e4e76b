package storage

import "errors"

// Common storage errors
var (
	// ErrDeviceNotFound indicates that device record was not found in storage
	ErrDeviceNotFound = errors.New("device not found")

	// ErrUserNotFound indicates that user namespace was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrSnapshotNotFound indicates that snapshot was not found
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
