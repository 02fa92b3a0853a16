package c3

import (
	"context"
	"sync"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
	unsubs    []string
	connected bool
	failOn    string
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if topic == m.failOn {
		return mqtt.ErrPublishFailed
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubs = append(m.unsubs, topic)
	return nil
}

// Unsubscribed returns the topics passed to Unsubscribe, in order.
func (m *MockMQTTClient) Unsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubs...)
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns the payloads sent to topic, in order.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return handler(topic, payload)
}

// MockPoller implements Poller for testing.
type MockPoller struct {
	mu        sync.Mutex
	batches   [][]EventRecord
	err       error
	connected bool
	closed    bool
	polls     int
}

func NewMockPoller(batches ...[]EventRecord) *MockPoller {
	return &MockPoller{batches: batches, connected: true}
}

func (m *MockPoller) GetDeviceParams(context.Context, ...string) (map[string]string, error) {
	return map[string]string{ParamSerialNumber: "SN"}, nil
}

func (m *MockPoller) GetRTLog(context.Context) ([]EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	if m.err != nil {
		m.connected = false
		return nil, m.err
	}
	if len(m.batches) == 0 {
		return nil, nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return batch, nil
}

func (m *MockPoller) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && !m.closed
}

func (m *MockPoller) Stats() Stats {
	return Stats{Connected: m.IsConnected(), Address: "mock:4370"}
}

func (m *MockPoller) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MockPoller) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockPoller) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}
