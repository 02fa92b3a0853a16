package homeassistant

import (
	"encoding/json"
	"fmt"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/mqtt"
)

// Discovery components.
const (
	ComponentBinarySensor = "binary_sensor"
	ComponentSensor       = "sensor"
	ComponentEvent        = "event"
)

// StatusOnline is the birth payload Home Assistant publishes on the status topic.
const StatusOnline = "online"

// discoveryQoS is used in the entity configs and for the config messages.
const discoveryQoS = 1

// Device describes the panel in the Home Assistant device registry.
type Device struct {
	Identifiers      []string `json:"identifiers"`
	Name             string   `json:"name"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	Model            string   `json:"model,omitempty"`
	SWVersion        string   `json:"sw_version,omitempty"`
	HWVersion        string   `json:"hw_version,omitempty"`
	ConfigurationURL string   `json:"configuration_url,omitempty"`
}

// EntityConfig is the discovery payload of one entity.
type EntityConfig struct {
	Name        string `json:"name"`
	UniqueID    string `json:"unique_id"`
	DeviceClass string `json:"device_class,omitempty"`
	Icon        string `json:"icon,omitempty"`

	StateTopic    string `json:"state_topic"`
	PayloadOn     string `json:"payload_on,omitempty"`
	PayloadOff    string `json:"payload_off,omitempty"`
	ValueTemplate string `json:"value_template,omitempty"`

	JSONAttributesTopic    string `json:"json_attributes_topic,omitempty"`
	JSONAttributesTemplate string `json:"json_attributes_template,omitempty"`

	EventTypes []string `json:"event_types,omitempty"`

	AvailabilityTopic   string `json:"availability_topic,omitempty"`
	PayloadAvailable    string `json:"payload_available,omitempty"`
	PayloadNotAvailable string `json:"payload_not_available,omitempty"`

	QoS    int    `json:"qos"`
	Device Device `json:"device"`
}

// Message is a discovery config ready to publish (retained).
type Message struct {
	Topic   string
	Payload []byte
}

// Config holds discovery settings.
type Config struct {
	// Prefix is the discovery topic prefix. Default: "homeassistant".
	Prefix string

	DeviceName   string
	Manufacturer string
	SWVersion    string

	// AvailabilityTopic is the bridge LWT topic. Empty omits availability.
	AvailabilityTopic string
}

// Builder produces discovery messages for one panel.
type Builder struct {
	cfg    Config
	def    access.DeviceDefinition
	topics mqtt.Topics
}

// NewBuilder creates a Builder for def whose states live under topics.
func NewBuilder(cfg Config, def access.DeviceDefinition, topics mqtt.Topics) *Builder {
	if cfg.Prefix == "" {
		cfg.Prefix = "homeassistant"
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = fmt.Sprintf("ZKTeco %s Controller", def.Model)
	}
	return &Builder{cfg: cfg, def: def, topics: topics}
}

// ConfigTopic returns "{prefix}/{component}/{serial}/{objectID}/config".
func ConfigTopic(prefix, component, serial, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, serial, objectID)
}

// StatusTopic returns the topic Home Assistant announces its status on.
func (b *Builder) StatusTopic() string {
	return b.cfg.Prefix + "/status"
}

// Device returns the registry entry shared by every entity of the panel.
func (b *Builder) Device() Device {
	d := Device{
		Identifiers:  []string{b.def.SerialNumber},
		Name:         b.cfg.DeviceName,
		Manufacturer: b.cfg.Manufacturer,
		Model:        b.def.Model,
		SWVersion:    b.cfg.SWVersion,
		HWVersion:    b.def.FirmwareVersion,
	}
	if b.def.IPAddress != "" {
		d.ConfigurationURL = "http://" + b.def.IPAddress
	}
	return d
}

// Entities returns the discovery config of every entity in inventory
// order: doors, aux inputs, relays, then the card and scan entities of
// each reader.
func (b *Builder) Entities() []Entity {
	var out []Entity

	for _, d := range b.def.Doors {
		id := access.DoorEntityID(d.Number)
		cfg := b.binarySensor(id, d.Name)
		cfg.DeviceClass = "door"
		out = append(out, Entity{Component: ComponentBinarySensor, ObjectID: id, Config: cfg})
	}

	for _, a := range b.def.AuxInputs {
		id := access.AuxInputEntityID(a.Number)
		out = append(out, Entity{Component: ComponentBinarySensor, ObjectID: id, Config: b.binarySensor(id, a.Name)})
	}

	for _, r := range b.def.Relays {
		id := access.RelayEntityID(r.Group, r.Number)
		cfg := b.binarySensor(id, r.Name)
		if r.Group == access.RelayGroupLock {
			// lock class: ON is unlocked, i.e. relay energized.
			cfg.DeviceClass = "lock"
		} else {
			cfg.Icon = "mdi:electric-switch"
		}
		out = append(out, Entity{Component: ComponentBinarySensor, ObjectID: id, Config: cfg})
	}

	eventTypes := make([]string, 0, len(access.AllEventTypes()))
	for _, t := range access.AllEventTypes() {
		eventTypes = append(eventTypes, string(t))
	}

	for _, r := range b.def.Readers {
		cardID := access.ReaderCardEntityID(r.Number)
		card := b.base(cardID, r.Name+" Card")
		card.Icon = "mdi:card-account-details"
		card.ValueTemplate = "{{ value_json.card_id }}"
		card.JSONAttributesTopic = card.StateTopic
		out = append(out, Entity{Component: ComponentSensor, ObjectID: cardID, Config: card})

		scanID := access.ReaderScanEntityID(r.Number)
		scan := b.base(scanID, r.Name+" Scan")
		scan.EventTypes = eventTypes
		out = append(out, Entity{Component: ComponentEvent, ObjectID: scanID, Config: scan})
	}

	return out
}

// Entity is one entity's discovery config before encoding.
type Entity struct {
	Component string
	ObjectID  string
	Config    EntityConfig
}

// Messages encodes every entity config.
func (b *Builder) Messages() ([]Message, error) {
	entities := b.Entities()
	msgs := make([]Message, 0, len(entities))
	for _, e := range entities {
		payload, err := json.Marshal(e.Config)
		if err != nil {
			return nil, fmt.Errorf("encoding discovery config for %s: %w", e.ObjectID, err)
		}
		msgs = append(msgs, Message{
			Topic:   ConfigTopic(b.cfg.Prefix, e.Component, b.def.SerialNumber, e.ObjectID),
			Payload: payload,
		})
	}
	return msgs, nil
}

func (b *Builder) base(entityID, name string) EntityConfig {
	cfg := EntityConfig{
		Name:       name,
		UniqueID:   fmt.Sprintf("%s_%s", b.def.SerialNumber, entityID),
		StateTopic: b.topics.EntityState(entityID),
		QoS:        discoveryQoS,
		Device:     b.Device(),
	}
	if b.cfg.AvailabilityTopic != "" {
		cfg.AvailabilityTopic = b.cfg.AvailabilityTopic
		cfg.PayloadAvailable = mqtt.PayloadOnline
		cfg.PayloadNotAvailable = mqtt.PayloadOffline
	}
	return cfg
}

func (b *Builder) binarySensor(entityID, name string) EntityConfig {
	cfg := b.base(entityID, name)
	cfg.PayloadOn = access.StateOn
	cfg.PayloadOff = access.StateOff
	return cfg
}
