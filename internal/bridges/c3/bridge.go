package c3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/homeassistant"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/infrastructure/mqtt"
	"github.com/vbartusevicius/zktaccess-mqtt/internal/state"
)

// Bridge operation constants.
const (
	// DefaultPollInterval is used when BridgeOptions.Interval is zero.
	DefaultPollInterval = 60 * time.Second
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes the subscription for a topic pattern.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Discoverer provides Home Assistant discovery messages.
type Discoverer interface {
	Messages() ([]homeassistant.Message, error)
	StatusTopic() string
}

// Dialer opens a new panel connection.
type Dialer func(ctx context.Context) (Poller, error)

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Dial opens panel connections. Required unless Poller is set, in
	// which case a lost connection is not re-established.
	Dial Dialer

	// Poller is an already connected panel, used until it fails.
	Poller Poller

	Store      *state.Store
	Processor  *access.Processor
	Deriver    *access.Deriver
	Definition access.DeviceDefinition
	Topics     mqtt.Topics

	// Discovery is optional. If nil, no discovery is published and Home
	// Assistant restarts are not watched.
	Discovery Discoverer

	// Interval is the polling period. Default: 60 seconds.
	Interval time.Duration

	// QoS of state, attribute and discovery messages and of the Home
	// Assistant status subscription. Raw events always use QoS 0.
	QoS byte

	// Logger is optional structured logger.
	Logger Logger
}

// BridgeStats holds polling statistics.
type BridgeStats struct {
	Polls           uint64
	PollErrors      uint64
	EventsProcessed uint64
	EventsDropped   uint64
	StatusRecords   uint64
	LastPoll        time.Time
	Entities        int
	Panel           Stats
}

// Bridge polls the panel and publishes derived entity states.
//
// Thread Safety: All methods are safe for concurrent use. Poll cycles
// never overlap.
type Bridge struct {
	mqtt      MQTTClient
	dial      Dialer
	store     *state.Store
	processor *access.Processor
	deriver   *access.Deriver
	def       access.DeviceDefinition
	discovery Discoverer
	publisher *StatePublisher
	interval  time.Duration
	qos       byte
	logger    Logger

	// statusSubscribed is set once the Home Assistant status topic is subscribed.
	statusSubscribed atomic.Bool

	// cycleMu serializes poll cycles and guards poller.
	cycleMu sync.Mutex
	poller  Poller

	// current mirrors poller for lock-free Stats reads.
	current atomic.Pointer[pollerRef]

	polls           atomic.Uint64
	pollErrors      atomic.Uint64
	eventsProcessed atomic.Uint64
	eventsDropped   atomic.Uint64
	statusRecords   atomic.Uint64
	lastPoll        atomic.Int64

	// Shutdown coordination. stopMu orders wg.Add in RequestRepublish
	// against close(done) in Stop.
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopMu   sync.Mutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Dial == nil && opts.Poller == nil {
		return nil, fmt.Errorf("panel dialer or poller is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if opts.Definition.SerialNumber == "" {
		return nil, fmt.Errorf("device definition has no serial number")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	processor := opts.Processor
	if processor == nil {
		processor = access.NewProcessor("UTC", access.WithLogger(logger))
	}
	deriver := opts.Deriver
	if deriver == nil {
		deriver = access.NewDeriver(logger)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	b := &Bridge{
		mqtt:      opts.MQTTClient,
		dial:      opts.Dial,
		store:     opts.Store,
		processor: processor,
		deriver:   deriver,
		def:       opts.Definition,
		discovery: opts.Discovery,
		publisher: NewStatePublisher(opts.MQTTClient, opts.Topics, opts.QoS, logger),
		interval:  interval,
		qos:       opts.QoS,
		logger:    logger,
		done:      make(chan struct{}),
	}
	b.setPoller(opts.Poller)
	return b, nil
}

type pollerRef struct{ p Poller }

// setPoller replaces the panel connection. Must be called with cycleMu
// held, or before the bridge is shared.
func (b *Bridge) setPoller(p Poller) {
	b.poller = p
	b.current.Store(&pollerRef{p: p})
}

// Initialize seeds the store from the inventory, publishes the initial
// states and discovery, and subscribes to Home Assistant status.
func (b *Bridge) Initialize(ctx context.Context) error {
	seeded := b.store.SeedFromInventory(ctx, b.def)
	if err := b.publisher.PublishEntityStates(seeded); err != nil {
		b.logger.Warn("initial state publish incomplete", "error", err)
	}
	b.logger.Info("published initial states", "entities", len(seeded))

	if b.discovery == nil {
		return nil
	}
	if err := b.publishDiscovery(); err != nil {
		b.logger.Error("publishing discovery", "error", err)
	}

	statusTopic := b.discovery.StatusTopic()
	if err := b.mqtt.Subscribe(statusTopic, b.qos, b.handleHomeAssistantStatus); err != nil {
		return fmt.Errorf("subscribe to %s: %w", statusTopic, err)
	}
	b.statusSubscribed.Store(true)
	b.logger.Info("subscribed to home assistant status", "topic", statusTopic)
	return nil
}

// Start initializes the bridge and starts the polling loop. The first
// cycle runs immediately.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.Initialize(ctx); err != nil {
		return err
	}

	b.wg.Add(1)
	go b.pollLoop(ctx)

	b.logger.Info("bridge started",
		"serial", b.def.SerialNumber,
		"doors", len(b.def.Doors),
		"readers", len(b.def.Readers),
		"interval", b.interval.String())
	return nil
}

// Stop ends the polling loop, drops the Home Assistant status
// subscription and closes the panel connection.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopMu.Lock()
		close(b.done)
		b.stopMu.Unlock()
		b.wg.Wait()

		if b.statusSubscribed.Swap(false) {
			topic := b.discovery.StatusTopic()
			if err := b.mqtt.Unsubscribe(topic); err != nil {
				b.logger.Warn("unsubscribing from home assistant status", "topic", topic, "error", err)
			}
		}

		b.cycleMu.Lock()
		if b.poller != nil {
			b.poller.Close()
			b.setPoller(nil)
		}
		b.cycleMu.Unlock()

		b.logger.Info("bridge stopped")
	})
}

func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if _, err := b.RunOnce(ctx); err != nil {
			b.logger.Warn("poll cycle produced no events", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one poll cycle: fetch new records, process each one
// and publish the results. It returns the number of records processed.
//
// A transport failure returns an error and publishes nothing. The panel
// connection is re-established on the next call.
func (b *Bridge) RunOnce(ctx context.Context) (int, error) {
	b.cycleMu.Lock()
	defer b.cycleMu.Unlock()

	b.polls.Add(1)
	b.lastPoll.Store(time.Now().Unix())

	poller, err := b.ensurePoller(ctx)
	if err != nil {
		b.pollErrors.Add(1)
		return 0, err
	}

	records, err := poller.GetRTLog(ctx)
	if err != nil {
		b.pollErrors.Add(1)
		return 0, err
	}
	b.logger.Debug("polled panel", "records", len(records))

	processed := 0
	for _, rec := range records {
		if rec.IsStatus() {
			b.statusRecords.Add(1)
			b.logger.Debug("skipping door/alarm status record", "record", rec.String())
			continue
		}
		if b.ProcessRecord(ctx, rec) {
			processed++
		}
	}

	if processed > 0 {
		b.logger.Info("processed panel events", "count", processed)
	}
	return processed, nil
}

// ProcessRecord normalizes raw, updates the store and publishes every
// entity state followed by the event on the raw event topic. It returns
// false when the record was dropped.
func (b *Bridge) ProcessRecord(ctx context.Context, raw access.RawEvent) bool {
	ev, err := b.processor.Process(raw)
	if err != nil {
		b.eventsDropped.Add(1)
		return false
	}

	if states := b.deriver.Derive(ev); len(states) > 0 {
		b.store.Apply(ctx, ev, states)
	} else {
		b.store.SetLastEvent(ctx, ev)
	}
	b.eventsProcessed.Add(1)

	if err := b.publisher.PublishEntityStates(b.store.Entities()); err != nil {
		b.logger.Warn("state publish incomplete", "error", err)
	}
	if last, ok := b.store.LastEvent(); ok {
		if err := b.publisher.PublishRawEvent(last); err != nil {
			b.logger.Error("publishing raw event", "error", err)
		}
	}
	return true
}

// ensurePoller returns a connected panel, dialing a new one when the
// current connection is missing or failed. Must be called with cycleMu held.
func (b *Bridge) ensurePoller(ctx context.Context) (Poller, error) {
	if b.poller != nil && b.poller.IsConnected() {
		return b.poller, nil
	}
	if b.poller != nil {
		b.poller.Close()
		b.setPoller(nil)
	}
	if b.dial == nil {
		return nil, ErrNotConnected
	}

	b.logger.Info("connecting to panel")
	p, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}
	b.setPoller(p)
	return p, nil
}

// Republish sends discovery (when enabled) and every current entity state.
// Used when Home Assistant restarts or the broker connection is restored.
func (b *Bridge) Republish() error {
	var errs []error
	if b.discovery != nil {
		if err := b.publishDiscovery(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.publisher.PublishEntityStates(b.store.Entities()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Bridge) publishDiscovery() error {
	msgs, err := b.discovery.Messages()
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range msgs {
		if err := b.mqtt.Publish(m.Topic, m.Payload, b.qos, true); err != nil {
			errs = append(errs, fmt.Errorf("discovery %s: %w", m.Topic, err))
		}
	}
	b.logger.Info("published discovery", "entities", len(msgs), "failed", len(errs))
	return errors.Join(errs...)
}

// RequestRepublish runs Republish in the background so MQTT callbacks
// never block on publishes. Ignored once the bridge is stopping.
func (b *Bridge) RequestRepublish() {
	b.stopMu.Lock()
	defer b.stopMu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.Republish(); err != nil {
			b.logger.Error("republish incomplete", "error", err)
		}
	}()
}

// handleHomeAssistantStatus republishes everything on the Home Assistant
// birth message. Runs on an MQTT client goroutine.
func (b *Bridge) handleHomeAssistantStatus(_ string, payload []byte) error {
	if strings.TrimSpace(string(payload)) != homeassistant.StatusOnline {
		return nil
	}
	b.logger.Info("home assistant online, republishing")
	b.RequestRepublish()
	return nil
}

// Stats returns polling statistics. Panel statistics are zero while no
// connection exists.
func (b *Bridge) Stats() BridgeStats {
	s := BridgeStats{
		Polls:           b.polls.Load(),
		PollErrors:      b.pollErrors.Load(),
		EventsProcessed: b.eventsProcessed.Load(),
		EventsDropped:   b.eventsDropped.Load(),
		StatusRecords:   b.statusRecords.Load(),
		Entities:        b.store.Len(),
	}
	if ts := b.lastPoll.Load(); ts > 0 {
		s.LastPoll = time.Unix(ts, 0)
	}

	if ref := b.current.Load(); ref != nil && ref.p != nil {
		s.Panel = ref.p.Stats()
	}
	return s
}
