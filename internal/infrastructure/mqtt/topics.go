package mqtt

import "fmt"

// Topics builds the per-panel topic tree:
//
//	{prefix}/{model}/{serial}/{entity_id}/state
//	{prefix}/{model}/{serial}/{entity_id}/attributes
//	{prefix}/{model}/{serial}/raw_event/state
//	{prefix}/{model}/{serial}/bridge/health
type Topics struct {
	Prefix string
	Model  string
	Serial string
}

// NewTopics returns the topic builder for one panel.
func NewTopics(prefix, model, serial string) Topics {
	return Topics{Prefix: prefix, Model: model, Serial: serial}
}

// Base returns "{prefix}/{model}/{serial}".
func (t Topics) Base() string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, t.Model, t.Serial)
}

// EntityState returns the state topic of an entity.
//
// Example: zkt_eco/C3-400/DGD9190019050335134/door_1/state
func (t Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/%s/state", t.Base(), entityID)
}

// EntityAttributes returns the attributes topic of an entity.
func (t Topics) EntityAttributes(entityID string) string {
	return fmt.Sprintf("%s/%s/attributes", t.Base(), entityID)
}

// RawEvent returns the topic carrying every raw panel event.
func (t Topics) RawEvent() string {
	return t.EntityState("raw_event")
}

// BridgeHealth returns the retained bridge health topic.
func (t Topics) BridgeHealth() string {
	return t.Base() + "/bridge/health"
}

// AvailabilityTopic returns "{prefix}/{clientID}/availability".
func AvailabilityTopic(prefix, clientID string) string {
	return fmt.Sprintf("%s/%s/availability", prefix, clientID)
}
