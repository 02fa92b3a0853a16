package state

import "errors"

var (
	// ErrCorruptSnapshot is returned by a Snapshotter whose stored data cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt state snapshot")

	// ErrInvalidState is logged when an entity id or state is not valid UTF-8.
	ErrInvalidState = errors.New("entity state is not valid UTF-8")
)
