package c3

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/mqtt"
)

var testTopics = mqtt.NewTopics("zkt_eco", "C3-200", "SN123")

func TestStatePublisher_PublishEntityState(t *testing.T) {
	client := NewMockMQTTClient()
	p := NewStatePublisher(client, testTopics, 1, nil)

	if err := p.PublishEntityState(access.EntityState{EntityID: "door_1", State: access.StateOn}); err != nil {
		t.Fatalf("PublishEntityState() error = %v", err)
	}

	published := client.GetPublished()
	if len(published) != 1 {
		t.Fatalf("got %d publishes, want 1", len(published))
	}
	got := published[0]
	if got.Topic != "zkt_eco/C3-200/SN123/door_1/state" || string(got.Payload) != "ON" {
		t.Errorf("publish = %s %q", got.Topic, got.Payload)
	}
	if got.QoS != 1 || got.Retained {
		t.Errorf("qos/retained = %d/%v, want 1/false", got.QoS, got.Retained)
	}
}

func TestStatePublisher_Attributes(t *testing.T) {
	client := NewMockMQTTClient()
	p := NewStatePublisher(client, testTopics, 1, nil)

	st := access.EntityState{EntityID: "door_1", State: access.StateOff, Attributes: map[string]any{"name": "Front"}}
	if err := p.PublishEntityState(st); err != nil {
		t.Fatalf("PublishEntityState() error = %v", err)
	}

	attrs := client.PublishedTo("zkt_eco/C3-200/SN123/door_1/attributes")
	if len(attrs) != 1 {
		t.Fatalf("got %d attribute publishes, want 1", len(attrs))
	}
	if string(attrs[0].Payload) != `{"name":"Front"}` {
		t.Errorf("attributes = %s", attrs[0].Payload)
	}
}

func TestStatePublisher_PublishEntityStatesContinuesOnError(t *testing.T) {
	client := NewMockMQTTClient()
	client.failOn = testTopics.EntityState("door_1")
	p := NewStatePublisher(client, testTopics, 1, nil)

	err := p.PublishEntityStates([]access.EntityState{
		{EntityID: "door_1", State: access.StateOn},
		{EntityID: "door_2", State: access.StateOff},
	})
	if !errors.Is(err, mqtt.ErrPublishFailed) {
		t.Errorf("error = %v, want ErrPublishFailed", err)
	}
	if n := len(client.PublishedTo(testTopics.EntityState("door_2"))); n != 1 {
		t.Errorf("door_2 published %d times, want 1", n)
	}
}

func TestStatePublisher_PublishRawEvent(t *testing.T) {
	client := NewMockMQTTClient()
	p := NewStatePublisher(client, testTopics, 1, nil)

	ev := access.ProcessedEvent{
		Type:        access.EventTypeCardScanSuccess,
		DoorID:      1,
		ReaderID:    1,
		Timestamp:   time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("", 3*3600)),
		CardID:      "12345",
		VerifyMode:  "CARD",
		Code:        access.EventPunchNormalOpenTZ,
		Description: access.EventPunchNormalOpenTZ.String(),
	}
	if err := p.PublishRawEvent(ev); err != nil {
		t.Fatalf("PublishRawEvent() error = %v", err)
	}

	raw := client.PublishedTo("zkt_eco/C3-200/SN123/raw_event/state")
	if len(raw) != 1 {
		t.Fatalf("got %d raw event publishes, want 1", len(raw))
	}
	if raw[0].QoS != 0 || raw[0].Retained {
		t.Errorf("qos/retained = %d/%v, want 0/false", raw[0].QoS, raw[0].Retained)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw[0].Payload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	want := map[string]any{
		"timestamp":   "2024-05-06T07:08:09+03:00",
		"door":        float64(1),
		"card":        "12345",
		"event_code":  float64(1),
		"event_desc":  "Punch during Normal Open Time Zone",
		"verify_mode": "CARD",
	}
	if len(payload) != len(want) {
		t.Errorf("payload = %v, want keys of %v", payload, want)
	}
	for k, v := range want {
		if payload[k] != v {
			t.Errorf("payload[%q] = %v, want %v", k, payload[k], v)
		}
	}
}

func TestStatePublisher_ConfiguredQoS(t *testing.T) {
	client := NewMockMQTTClient()
	p := NewStatePublisher(client, testTopics, 0, nil)

	st := access.EntityState{EntityID: "door_1", State: access.StateOn, Attributes: map[string]any{"name": "Front"}}
	if err := p.PublishEntityState(st); err != nil {
		t.Fatalf("PublishEntityState() error = %v", err)
	}
	for _, m := range client.GetPublished() {
		if m.QoS != 0 {
			t.Errorf("%s published with QoS %d, want 0", m.Topic, m.QoS)
		}
	}
}
