package access

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Accepted raw timestamp layouts. Layouts without an offset are read as UTC.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Attributer is implemented by raw events that carry extra attributes for
// the reader telemetry payload.
type Attributer interface {
	Attributes() map[string]any
}

// Processor normalizes raw events. It is safe for concurrent use once built.
type Processor struct {
	loc    *time.Location
	logger Logger
	now    func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets the logger used for rejection warnings and debug summaries.
func WithLogger(l Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the wall clock used when an event has no usable timestamp.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor builds a Processor converting timestamps to the IANA zone
// named by timezone. An unknown zone is logged and UTC is used instead.
func NewProcessor(timezone string, opts ...ProcessorOption) *Processor {
	p := &Processor{
		loc:    time.UTC,
		logger: noopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			p.logger.Warn("unknown time zone, using UTC", "timezone", timezone, "error", err)
		} else {
			p.loc = loc
		}
	}
	return p
}

// Location returns the zone event timestamps are converted to.
func (p *Processor) Location() *time.Location {
	return p.loc
}

// Process normalizes raw into a ProcessedEvent.
//
// Returns ErrMissingEntity or ErrInvalidEntity (wrapped) when the event has
// no usable door/port number. Such events must be dropped. Every other
// problem is recovered locally: a bad timestamp becomes the current time,
// a missing code becomes EventNA.
func (p *Processor) Process(raw RawEvent) (ProcessedEvent, error) {
	port, ok := raw.Port()
	port = strings.TrimSpace(port)
	if !ok || port == "" {
		p.logger.Warn("dropping event without entity id", "error", ErrMissingEntity)
		return ProcessedEvent{}, ErrMissingEntity
	}
	entity, err := strconv.Atoi(port)
	if err != nil {
		err = fmt.Errorf("%w: %q", ErrInvalidEntity, port)
		p.logger.Warn("dropping event with invalid entity id", "error", err)
		return ProcessedEvent{}, err
	}

	code, ok := raw.EventCode()
	if !ok {
		code = EventNA
	}
	desc := code.String()
	if d, ok := raw.(Describer); ok {
		if s := d.EventDescription(); s != "" {
			desc = s
		}
	}

	ev := ProcessedEvent{
		Type:        Classify(raw),
		DoorID:      entity,
		ReaderID:    entity,
		Timestamp:   p.timestamp(raw),
		CardID:      credential(raw.CardNumber()),
		PIN:         credential(raw.PIN()),
		Code:        code,
		Description: desc,
		Raw:         raw,
	}
	if v, ok := raw.VerifyMode(); ok {
		ev.VerifyMode = v.Name()
	}
	if d, ok := raw.Direction(); ok {
		ev.EntryExit = d.Name()
	}
	if a, ok := raw.(Attributer); ok {
		if attrs := a.Attributes(); len(attrs) > 0 {
			ev.Attributes = maps.Clone(attrs)
		}
	}

	if code < 0 {
		p.logger.Warn("event has no vendor code, classified as other", "entity_id", entity)
	}
	p.logger.Debug("event classified",
		"entity_id", entity,
		"event_type", string(ev.Type),
		"code", int(ev.Code),
		"description", ev.Description,
		"verify_mode", ev.VerifyMode,
		"timestamp", ev.Timestamp.Format(time.RFC3339),
	)
	return ev, nil
}

// timestamp parses the raw time, falling back to the current time, and
// converts the result to the configured zone.
func (p *Processor) timestamp(raw RawEvent) time.Time {
	if s, ok := raw.Time(); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.In(p.loc)
			}
		}
		p.logger.Warn("unparseable event timestamp, using current time", "timestamp", s)
	}
	return p.now().UTC().In(p.loc)
}

// credential collapses the panel's "no value" sentinels to absent. Any
// other value passes through unchanged.
func credential(v string, ok bool) string {
	if !ok || v == "" || v == "0" {
		return ""
	}
	return v
}
