package access

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"
)

func processed(code EventCode, door int) ProcessedEvent {
	return ProcessedEvent{
		Type:        EventTypeOther,
		DoorID:      door,
		ReaderID:    door,
		Timestamp:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Code:        code,
		Description: code.String(),
	}
}

func TestDoorState(t *testing.T) {
	on := []EventCode{0, 5, 28, 200, 202, 205, 26, 37}
	for _, c := range on {
		if s, ok := DoorState(processed(c, 1)); !ok || s != StateOn {
			t.Errorf("DoorState(%d) = %q, %v, want ON", c, s, ok)
		}
	}
	if s, ok := DoorState(processed(EventDoorClosedCorrect, 1)); !ok || s != StateOff {
		t.Errorf("DoorState(201) = %q, %v, want OFF", s, ok)
	}
	for _, c := range []EventCode{1, 8, 9, 23, 220, 221, -1} {
		if _, ok := DoorState(processed(c, 1)); ok {
			t.Errorf("DoorState(%d) reported a state", c)
		}
	}
}

func TestLockRelayState(t *testing.T) {
	on := []EventCode{0, 1, 2, 3, 4, 5, 8, 14, 15, 16, 17, 18, 19, 101, 103, 200, 202, 203, 205}
	for _, c := range on {
		if s, ok := LockRelayState(processed(c, 1)); !ok || s != StateOn {
			t.Errorf("LockRelayState(%d) = %q, %v, want ON", c, s, ok)
		}
	}
	for _, c := range []EventCode{9, 201, 204} {
		if s, ok := LockRelayState(processed(c, 1)); !ok || s != StateOff {
			t.Errorf("LockRelayState(%d) = %q, %v, want OFF", c, s, ok)
		}
	}
	// Door-open codes that do not drive the lock relay.
	for _, c := range []EventCode{26, 28, 37, 23, 220} {
		if _, ok := LockRelayState(processed(c, 1)); ok {
			t.Errorf("LockRelayState(%d) reported a state", c)
		}
	}
}

func TestAuxInputState(t *testing.T) {
	if s, ok := AuxInputState(processed(EventAuxInputShort, 1)); !ok || s != StateOn {
		t.Errorf("AuxInputState(221) = %q, %v, want ON", s, ok)
	}
	if s, ok := AuxInputState(processed(EventAuxInputDisconnect, 1)); !ok || s != StateOff {
		t.Errorf("AuxInputState(220) = %q, %v, want OFF", s, ok)
	}
	if _, ok := AuxInputState(processed(EventDoorOpenedCorrect, 1)); ok {
		t.Error("AuxInputState(200) reported a state")
	}
}

func TestReaderPayload_Sparse(t *testing.T) {
	ev := processed(EventDoorClosedCorrect, 3)
	ev.Type = EventTypeDoorClose

	data, err := ReaderPayload(ev)
	if err != nil {
		t.Fatalf("ReaderPayload() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	want := map[string]any{
		"event_type":    "door_close",
		"door_id":       float64(3),
		"reader_id":     float64(3),
		"timestamp":     "2024-01-15T10:30:00+00:00",
		"zk_event_code": float64(201),
		"zk_event_desc": "Door Closed Correctly",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payload = %v, want %v", got, want)
	}
}

func TestReaderPayload_OptionalFieldsAndAttributes(t *testing.T) {
	ev := processed(EventAccessDenied, 1)
	ev.Type = EventTypeCardScanDenied
	ev.CardID = "12345"
	ev.PIN = "9876"
	ev.VerifyMode = "CARD"
	ev.EntryExit = "EXIT"
	ev.Attributes = map[string]any{"site": "hq", "zk_event_desc": nil}

	data, err := ReaderPayload(ev)
	if err != nil {
		t.Fatalf("ReaderPayload() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}

	for k, v := range map[string]any{
		"card_id":     "12345",
		"pin":         "9876",
		"verify_mode": "CARD",
		"entry_exit":  "EXIT",
		"site":        "hq",
	} {
		if got[k] != v {
			t.Errorf("payload[%q] = %v, want %v", k, got[k], v)
		}
	}
	if _, ok := got["zk_event_desc"]; ok {
		t.Error("nil attribute was not omitted")
	}
}

func TestReaderPayload_LocalOffset(t *testing.T) {
	zone := time.FixedZone("EET", 2*60*60)
	ev := processed(EventDoorOpenedCorrect, 1)
	ev.Timestamp = ev.Timestamp.In(zone)

	data, err := ReaderPayload(ev)
	if err != nil {
		t.Fatalf("ReaderPayload() error = %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(data, &got)
	if got["timestamp"] != "2024-01-15T12:30:00+02:00" {
		t.Errorf("timestamp = %v, want local offset", got["timestamp"])
	}
}

func TestDerive_Order(t *testing.T) {
	d := NewDeriver(nil)

	tests := []struct {
		name string
		code EventCode
		want []string
	}{
		{
			name: "door opened correctly",
			code: EventDoorOpenedCorrect,
			want: []string{"door_1", "relay_lock_1", "reader_1_card", "reader_1_scan"},
		},
		{
			name: "door closed",
			code: EventDoorClosedCorrect,
			want: []string{"door_1", "relay_lock_1", "reader_1_card", "reader_1_scan"},
		},
		{
			name: "aux shorted",
			code: EventAuxInputShort,
			want: []string{"aux_input_1", "reader_1_card", "reader_1_scan"},
		},
		{
			name: "access denied",
			code: EventAccessDenied,
			want: []string{"reader_1_card", "reader_1_scan"},
		},
		{
			name: "remote opening",
			code: EventRemoteOpening,
			want: []string{"relay_lock_1", "reader_1_card", "reader_1_scan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := d.Derive(processed(tt.code, 1))
			var ids []string
			for _, s := range states {
				ids = append(ids, s.EntityID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Derive() ids = %v, want %v", ids, tt.want)
			}
			n := len(states)
			if states[n-1].State != states[n-2].State {
				t.Error("reader card and scan payloads differ")
			}
		})
	}
}

func TestDerive_States(t *testing.T) {
	states := NewDeriver(nil).Derive(processed(EventDoorClosedCorrect, 2))
	if states[0].State != StateOff || states[1].State != StateOff {
		t.Errorf("door/relay = %q/%q, want OFF/OFF", states[0].State, states[1].State)
	}
}

func TestDerive_EncodingFailureKeepsBinaryStates(t *testing.T) {
	log := &recordingLogger{}
	ev := processed(EventDoorOpenedCorrect, 1)
	ev.Attributes = map[string]any{"bad": math.Inf(1)}

	states := NewDeriver(log).Derive(ev)
	if len(states) != 2 {
		t.Fatalf("Derive() returned %d states, want door and relay only", len(states))
	}
	if states[0].EntityID != "door_1" || states[1].EntityID != "relay_lock_1" {
		t.Errorf("Derive() = %+v", states)
	}
	if log.count("error") != 1 {
		t.Errorf("error count = %d, want 1", log.count("error"))
	}
}

func TestEntityIDs(t *testing.T) {
	tests := []struct{ got, want string }{
		{DoorEntityID(1), "door_1"},
		{RelayEntityID(RelayGroupLock, 2), "relay_lock_2"},
		{RelayEntityID(RelayGroupAux, 3), "relay_aux_3"},
		{AuxInputEntityID(4), "aux_input_4"},
		{ReaderCardEntityID(1), "reader_1_card"},
		{ReaderScanEntityID(1), "reader_1_scan"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("entity id = %q, want %q", tt.got, tt.want)
		}
	}
}
