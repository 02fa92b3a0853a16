package c3

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/mqtt"
)

// rawEventQoS is the QoS of the raw event stream, whatever the configured QoS.
const rawEventQoS byte = 0

// Publisher sends messages to MQTT.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// RawEventMessage is the payload of the raw event topic.
// Absent values are omitted.
type RawEventMessage struct {
	Timestamp  string `json:"timestamp"`
	Door       int    `json:"door"`
	Card       string `json:"card,omitempty"`
	PIN        string `json:"pin,omitempty"`
	EventCode  int    `json:"event_code"`
	EventDesc  string `json:"event_desc"`
	VerifyMode string `json:"verify_mode,omitempty"`
	EntryExit  string `json:"entry_exit,omitempty"`
}

// NewRawEventMessage builds the raw event payload for ev.
func NewRawEventMessage(ev access.ProcessedEvent) RawEventMessage {
	return RawEventMessage{
		Timestamp:  ev.Timestamp.Format(access.TimestampLayout),
		Door:       ev.DoorID,
		Card:       ev.CardID,
		PIN:        ev.PIN,
		EventCode:  int(ev.Code),
		EventDesc:  ev.Description,
		VerifyMode: ev.VerifyMode,
		EntryExit:  ev.EntryExit,
	}
}

// StatePublisher publishes entity states and raw events for one panel.
type StatePublisher struct {
	client Publisher
	topics mqtt.Topics
	qos    byte
	logger Logger
}

// NewStatePublisher creates a StatePublisher. qos applies to state and
// attribute messages. A nil logger discards output.
func NewStatePublisher(client Publisher, topics mqtt.Topics, qos byte, logger Logger) *StatePublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StatePublisher{client: client, topics: topics, qos: qos, logger: logger}
}

// PublishEntityState publishes the state of one entity (not retained),
// followed by its attributes as JSON when it has any.
func (p *StatePublisher) PublishEntityState(st access.EntityState) error {
	topic := p.topics.EntityState(st.EntityID)
	p.logger.Debug("publishing state", "topic", topic, "state", st.State)
	if err := p.client.Publish(topic, []byte(st.State), p.qos, false); err != nil {
		return fmt.Errorf("publishing %s state: %w", st.EntityID, err)
	}

	if len(st.Attributes) == 0 {
		return nil
	}
	payload, err := json.Marshal(st.Attributes)
	if err != nil {
		return fmt.Errorf("encoding %s attributes: %w", st.EntityID, err)
	}
	if err := p.client.Publish(p.topics.EntityAttributes(st.EntityID), payload, p.qos, false); err != nil {
		return fmt.Errorf("publishing %s attributes: %w", st.EntityID, err)
	}
	return nil
}

// PublishEntityStates publishes every state in order. A failure is logged
// and does not stop the remaining states; all failures are returned joined.
func (p *StatePublisher) PublishEntityStates(states []access.EntityState) error {
	var errs []error
	for _, st := range states {
		if err := p.PublishEntityState(st); err != nil {
			p.logger.Error("publish failed", "entity_id", st.EntityID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishRawEvent publishes ev on the raw event topic (QoS 0).
func (p *StatePublisher) PublishRawEvent(ev access.ProcessedEvent) error {
	payload, err := json.Marshal(NewRawEventMessage(ev))
	if err != nil {
		return fmt.Errorf("encoding raw event: %w", err)
	}
	p.logger.Debug("publishing raw event", "topic", p.topics.RawEvent(), "event_code", int(ev.Code))
	if err := p.client.Publish(p.topics.RawEvent(), payload, rawEventQoS, false); err != nil {
		return fmt.Errorf("publishing raw event: %w", err)
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
