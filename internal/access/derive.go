package access

import (
	"encoding/json"
	"fmt"
)

// TimestampLayout is ISO-8601 with a numeric offset, used in published payloads.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

var (
	lockRelayOnCodes = codeSet(
		EventNormalPunchOpen,
		EventPunchNormalOpenTZ,
		EventFirstCardNormalOpen,
		EventMultiCardOpen,
		EventEmergencyPassOpen,
		EventOpenNormalOpenTZ,
		EventRemoteOpening,
		EventPressFingerOpen,
		EventMultiCardOpenFP,
		EventFPNormalOpenTZ,
		EventCardFPOpen,
		EventFirstCardNormalOpenFP,
		EventFirstCardNormalOpenCardFP,
		EventDuressPasswordOpen,
		EventDuressFPOpen,
		EventDoorOpenedCorrect,
		EventExitButtonOpen,
		EventMultiCardOpenCardFP,
		EventRemoteNormalOpen,
	)

	lockRelayOffCodes = codeSet(
		EventRemoteClosing,
		EventDoorClosedCorrect,
		EventNormalOpenTZOver,
	)
)

// DoorState returns the door sensor state implied by ev, if any.
func DoorState(ev ProcessedEvent) (string, bool) {
	switch {
	case in(doorOpenCodes, ev.Code):
		return StateOn, true
	case ev.Code == EventDoorClosedCorrect:
		return StateOff, true
	}
	return "", false
}

// LockRelayState returns the lock relay state implied by ev, if any.
// ON means the relay is energized and the door unlocked.
func LockRelayState(ev ProcessedEvent) (string, bool) {
	switch {
	case in(lockRelayOnCodes, ev.Code):
		return StateOn, true
	case in(lockRelayOffCodes, ev.Code):
		return StateOff, true
	}
	return "", false
}

// AuxInputState returns the auxiliary input state implied by ev, if any.
func AuxInputState(ev ProcessedEvent) (string, bool) {
	switch ev.Code {
	case EventAuxInputShort:
		return StateOn, true
	case EventAuxInputDisconnect:
		return StateOff, true
	}
	return "", false
}

// ReaderPayload serializes ev as the sparse JSON object published on the
// reader telemetry entities. Absent values are omitted, extra attributes
// are merged last and may override the standard keys.
func ReaderPayload(ev ProcessedEvent) ([]byte, error) {
	payload := map[string]any{
		"event_type":    string(ev.Type),
		"door_id":       ev.DoorID,
		"reader_id":     ev.ReaderID,
		"timestamp":     ev.Timestamp.Format(TimestampLayout),
		"zk_event_code": int(ev.Code),
		"zk_event_desc": ev.Description,
	}
	optional := map[string]string{
		"card_id":     ev.CardID,
		"pin":         ev.PIN,
		"verify_mode": ev.VerifyMode,
		"entry_exit":  ev.EntryExit,
	}
	for k, v := range optional {
		if v != "" {
			payload[k] = v
		}
	}
	for k, v := range ev.Attributes {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding reader payload for %s: %w", ReaderScanEntityID(ev.ReaderID), err)
	}
	return data, nil
}

// Deriver turns processed events into entity states.
type Deriver struct {
	logger Logger
}

// NewDeriver creates a Deriver. A nil logger discards output.
func NewDeriver(logger Logger) *Deriver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Deriver{logger: logger}
}

// Derive returns the entity states affected by ev, in the order door,
// lock relay, aux input, reader card, reader scan. Entities whose state
// ev does not determine are left out.
//
// A reader payload that cannot be encoded drops only the two reader
// records, the binary states are still returned.
func (d *Deriver) Derive(ev ProcessedEvent) []EntityState {
	states := make([]EntityState, 0, 5)

	if s, ok := DoorState(ev); ok {
		states = append(states, EntityState{EntityID: DoorEntityID(ev.DoorID), State: s})
	}
	if s, ok := LockRelayState(ev); ok {
		states = append(states, EntityState{EntityID: RelayEntityID(RelayGroupLock, ev.DoorID), State: s})
	}
	if s, ok := AuxInputState(ev); ok {
		states = append(states, EntityState{EntityID: AuxInputEntityID(ev.DoorID), State: s})
	}

	payload, err := ReaderPayload(ev)
	if err != nil {
		d.logger.Error("dropping reader telemetry", "reader_id", ev.ReaderID, "error", err)
		return states
	}
	states = append(states,
		EntityState{EntityID: ReaderCardEntityID(ev.ReaderID), State: string(payload)},
		EntityState{EntityID: ReaderScanEntityID(ev.ReaderID), State: string(payload)},
	)
	return states
}
