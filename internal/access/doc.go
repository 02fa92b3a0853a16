// Package access turns C3 panel log records into normalized events and
// per-entity states.
//
// # Pipeline
//
//	RawEvent ──▶ Processor.Process ──▶ ProcessedEvent ──▶ Deriver.Derive ──▶ []EntityState
//	                   │
//	                   └── Classify (priority-ordered rule table)
//
// Everything here is pure apart from logging and the clock used for
// timestamp fallback. Persistence lives in package state, transport in
// package c3.
//
// # Entity IDs
//
//	door_<n>               door sensor, ON = open
//	relay_lock_<n>         lock relay, ON = energized (unlocked)
//	relay_aux_<n>          auxiliary output relay
//	aux_input_<n>          auxiliary input, ON = shorted
//	reader_<n>_card        last reader event as JSON
//	reader_<n>_scan        last reader event as JSON
//
// The door and the reader share the same number on C3 panels, so a
// ProcessedEvent carries the same value in DoorID and ReaderID.
package access

// Logger is the structured logger accepted by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
