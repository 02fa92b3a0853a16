package c3

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running but a dependency is down.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

const (
	// defaultHealthInterval is used when HealthReporterConfig.Interval is zero.
	defaultHealthInterval = 30 * time.Second

	// healthCheckTimeout bounds all dependency checks of one report.
	healthCheckTimeout = 5 * time.Second
)

// HealthMessage is the retained bridge health payload.
// Topic: {prefix}/{model}/{serial}/bridge/health
type HealthMessage struct {
	// Bridge is the bridge software name.
	Bridge string `json:"bridge"`

	// Serial is the panel serial number.
	Serial string `json:"serial"`

	// Timestamp is when the status was generated (UTC).
	Timestamp time.Time `json:"timestamp"`

	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Connection describes the panel connection.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains polling counters.
	Statistics *PollStatistics `json:"statistics,omitempty"`

	// Entities is the number of entities in the state store.
	Entities int `json:"entities"`

	// MQTTDisconnects counts broker connection losses since start.
	MQTTDisconnects uint64 `json:"mqtt_disconnects"`

	// Reason explains a non-healthy status.
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the panel connection state.
type ConnectionStatus struct {
	// Status is "connected" or "disconnected".
	Status string `json:"status"`

	// Address is the panel host:port.
	Address string `json:"address,omitempty"`

	// LastActivity is when the panel last answered.
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// PollStatistics contains polling counters.
type PollStatistics struct {
	Polls           uint64     `json:"polls"`
	PollErrors      uint64     `json:"poll_errors"`
	EventsProcessed uint64     `json:"events_processed"`
	EventsDropped   uint64     `json:"events_dropped"`
	PanelErrors     uint64     `json:"panel_errors"`
	LastPoll        *time.Time `json:"last_poll,omitempty"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridge, serial, version string, status HealthStatus, stats BridgeStats, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:        bridge,
		Serial:        serial,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Entities:      stats.Entities,
	}

	msg.Connection = &ConnectionStatus{Status: "disconnected", Address: stats.Panel.Address}
	if stats.Panel.Connected {
		last := stats.Panel.LastActivity.UTC()
		msg.Connection.Status = "connected"
		msg.Connection.LastActivity = &last
	}

	msg.Statistics = &PollStatistics{
		Polls:           stats.Polls,
		PollErrors:      stats.PollErrors,
		EventsProcessed: stats.EventsProcessed,
		EventsDropped:   stats.EventsDropped,
		PanelErrors:     stats.Panel.ErrorsTotal,
	}
	if !stats.LastPoll.IsZero() {
		last := stats.LastPoll.UTC()
		msg.Statistics.LastPoll = &last
	}
	return msg
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsSource provides the statistics reported in health messages.
type StatsSource interface {
	Stats() BridgeStats
}

// HealthCheck is a named dependency check, such as the database or the
// MQTT broker. A non-nil error from Check degrades the reported status.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Bridge is the bridge software name.
	Bridge string

	// Serial is the panel serial number.
	Serial string

	// Version is the bridge software version.
	Version string

	// Topic is the retained health topic.
	Topic string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// QoS of the retained health messages.
	QoS byte

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Source provides polling statistics.
	Source StatsSource

	// Checks run in order on every report. The first failure is the
	// degraded reason.
	Checks []HealthCheck
}

// HealthReporter publishes bridge health at regular intervals.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	mqttDisconnects atomic.Uint64

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval == 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		if err := h.publishStatus(HealthStopping, "bridge stopping"); err != nil {
			h.logError("failed to publish stopping health", err)
		}
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	return h.publishCurrent(context.Background())
}

// RecordMQTTDisconnect counts a lost broker connection. Suitable as the
// MQTT client's disconnect callback, which already logs err.
func (h *HealthReporter) RecordMQTTDisconnect(_ error) {
	h.mqttDisconnects.Add(1)
}

func (h *HealthReporter) publishCurrent(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	status, reason := h.determineStatus(ctx)
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	if err := h.publishCurrent(ctx); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.publishCurrent(ctx); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus(ctx context.Context) (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	for _, c := range h.cfg.Checks {
		if err := c.Check(ctx); err != nil {
			return HealthDegraded, fmt.Sprintf("%s: %v", c.Name, err)
		}
	}
	if h.cfg.Source == nil {
		return HealthHealthy, ""
	}

	stats := h.cfg.Source.Stats()
	if stats.Polls > 0 && !stats.Panel.Connected {
		return HealthDegraded, "panel disconnected"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}

	var stats BridgeStats
	if h.cfg.Source != nil {
		stats = h.cfg.Source.Stats()
	}

	msg := NewHealthMessage(h.cfg.Bridge, h.cfg.Serial, h.cfg.Version, status, stats, h.startTime)
	msg.Reason = reason
	msg.MQTTDisconnects = h.mqttDisconnects.Load()

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, h.cfg.QoS, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
