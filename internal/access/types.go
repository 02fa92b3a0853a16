package access

import (
	"fmt"
	"time"
)

// EventType is the normalized classification of a panel event.
// Values are lowercase and appear verbatim in published payloads.
type EventType string

// Normalized event types.
const (
	EventTypeCardScanSuccess      EventType = "card_scan_success"
	EventTypeCardScanDenied       EventType = "card_scan_denied"
	EventTypeCardScanInvalid      EventType = "card_scan_invalid"
	EventTypePINSuccess           EventType = "pin_success"
	EventTypePINDenied            EventType = "pin_denied"
	EventTypeFingerprintSuccess   EventType = "fingerprint_success"
	EventTypeFingerprintDenied    EventType = "fingerprint_denied"
	EventTypeFingerprintInvalid   EventType = "fingerprint_invalid"
	EventTypeDoorOpen             EventType = "door_open"
	EventTypeDoorClose            EventType = "door_close"
	EventTypeDoorButton           EventType = "door_button"
	EventTypeAuxInputConnected    EventType = "aux_input_connected"
	EventTypeAuxInputDisconnected EventType = "aux_input_disconnected"
	EventTypeOtherSuccess         EventType = "other_success"
	EventTypeOther                EventType = "other"
)

// AllEventTypes lists every EventType in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeCardScanSuccess,
		EventTypeCardScanDenied,
		EventTypeCardScanInvalid,
		EventTypePINSuccess,
		EventTypePINDenied,
		EventTypeFingerprintSuccess,
		EventTypeFingerprintDenied,
		EventTypeFingerprintInvalid,
		EventTypeDoorOpen,
		EventTypeDoorClose,
		EventTypeDoorButton,
		EventTypeAuxInputConnected,
		EventTypeAuxInputDisconnected,
		EventTypeOtherSuccess,
		EventTypeOther,
	}
}

// RawEvent is one real-time log record as delivered by an upstream source.
//
// Each accessor reports whether the field is present. Absent fields are
// replaced with defaults during normalization, they never cause a failure,
// except for a missing or non-numeric Port which rejects the event.
type RawEvent interface {
	Port() (string, bool)
	CardNumber() (string, bool)
	PIN() (string, bool)
	EventCode() (EventCode, bool)
	VerifyMode() (VerifyMode, bool)
	Direction() (InOutDirection, bool)
	Time() (string, bool)
}

// Describer is implemented by raw events that carry their own code description.
type Describer interface {
	EventDescription() string
}

// Fields is a RawEvent backed by plain values. Empty strings and nil
// pointers are absent fields.
type Fields struct {
	Door        string
	Card        string
	Pin         string
	Timestamp   string
	Code        *EventCode
	Verify      *VerifyMode
	Dir         *InOutDirection
	Description string
}

// Ptr returns a pointer to v, for filling optional Fields values.
func Ptr[T any](v T) *T { return &v }

// Port returns the door number.
func (f Fields) Port() (string, bool) { return f.Door, f.Door != "" }

// CardNumber returns the card number.
func (f Fields) CardNumber() (string, bool) { return f.Card, f.Card != "" }

// PIN returns the PIN.
func (f Fields) PIN() (string, bool) { return f.Pin, f.Pin != "" }

// Time returns the raw timestamp text.
func (f Fields) Time() (string, bool) { return f.Timestamp, f.Timestamp != "" }

// EventCode returns the event code, absent when Code is nil.
func (f Fields) EventCode() (EventCode, bool) {
	if f.Code == nil {
		return EventNA, false
	}
	return *f.Code, true
}

// VerifyMode returns the verification mode, absent when Verify is nil.
func (f Fields) VerifyMode() (VerifyMode, bool) {
	if f.Verify == nil {
		return VerifyNone, false
	}
	return *f.Verify, true
}

// Direction returns the entry/exit direction, absent when Dir is nil.
func (f Fields) Direction() (InOutDirection, bool) {
	if f.Dir == nil {
		return DirectionNone, false
	}
	return *f.Dir, true
}

// EventDescription implements Describer. An empty Description falls back to the code table.
func (f Fields) EventDescription() string {
	if f.Description != "" {
		return f.Description
	}
	code, _ := f.EventCode()
	return code.String()
}

// ProcessedEvent is the normalized form of a RawEvent.
// Empty string fields are absent values.
type ProcessedEvent struct {
	Type      EventType
	DoorID    int
	ReaderID  int
	Timestamp time.Time

	CardID     string
	PIN        string
	VerifyMode string
	EntryExit  string

	Code        EventCode
	Description string

	// Attributes are merged into the reader telemetry payload.
	Attributes map[string]any

	// Raw is the source record, kept for auditing.
	Raw RawEvent
}

// EntityState is the derived state of one published entity.
type EntityState struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

// Binary entity states.
const (
	StateOn  = "ON"
	StateOff = "OFF"
)

// DefaultReaderCard is the initial state of a reader card entity.
const DefaultReaderCard = `{"card_id": "0"}`

// RelayGroup distinguishes lock relays from auxiliary output relays.
type RelayGroup string

// Relay groups.
const (
	RelayGroupLock RelayGroup = "lock"
	RelayGroupAux  RelayGroup = "aux"
)

// Door is a door known to the panel.
type Door struct {
	Number int
	Name   string
}

// Reader is a card/PIN/fingerprint reader known to the panel.
type Reader struct {
	Number int
	Name   string
}

// Relay is an output relay known to the panel.
type Relay struct {
	Number int
	Group  RelayGroup
	Name   string
}

// AuxInput is an auxiliary input known to the panel.
type AuxInput struct {
	Number int
	Name   string
}

// DeviceDefinition is the inventory of a panel, resolved once at startup.
type DeviceDefinition struct {
	SerialNumber    string
	FirmwareVersion string
	IPAddress       string
	Model           string

	Doors     []Door
	Readers   []Reader
	Relays    []Relay
	AuxInputs []AuxInput
}

// Entity ID builders.

func DoorEntityID(n int) string { return fmt.Sprintf("door_%d", n) }

func RelayEntityID(group RelayGroup, n int) string {
	return fmt.Sprintf("relay_%s_%d", group, n)
}

func AuxInputEntityID(n int) string { return fmt.Sprintf("aux_input_%d", n) }

func ReaderCardEntityID(n int) string { return fmt.Sprintf("reader_%d_card", n) }

func ReaderScanEntityID(n int) string { return fmt.Sprintf("reader_%d_scan", n) }
