package access

import "errors"

var (
	// ErrMissingEntity is returned when a raw event carries no door/port number.
	ErrMissingEntity = errors.New("event has no entity id")

	// ErrInvalidEntity is returned when the door/port number is not an integer.
	ErrInvalidEntity = errors.New("event entity id is not an integer")
)
