package c3

import "errors"

// Domain errors for the C3 bridge package.
var (
	// ErrNotConnected is returned when an operation requires a panel
	// session but the client is not connected.
	ErrNotConnected = errors.New("c3: not connected to panel")

	// ErrConnectionFailed is returned when dialing the panel or opening
	// a session fails.
	ErrConnectionFailed = errors.New("c3: connection to panel failed")

	// ErrInvalidFrame is returned when a received frame is malformed.
	ErrInvalidFrame = errors.New("c3: invalid frame")

	// ErrChecksum is returned when a frame fails CRC verification.
	ErrChecksum = errors.New("c3: checksum mismatch")

	// ErrDeviceError is returned when the panel answers a request with an
	// error reply.
	ErrDeviceError = errors.New("c3: panel returned an error")

	// ErrInvalidParameter is returned when a device parameter cannot be
	// interpreted.
	ErrInvalidParameter = errors.New("c3: invalid device parameter")

	// ErrInvalidRecord is returned when a real-time log reply is not a
	// whole number of records.
	ErrInvalidRecord = errors.New("c3: invalid real-time log record")
)
