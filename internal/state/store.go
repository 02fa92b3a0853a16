package state

import (
	"context"
	"maps"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
)

// Logger is the structured logger accepted by the store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Snapshotter persists the full entity state map.
type Snapshotter interface {
	// Load returns the last saved states. A store that was never saved
	// returns an empty map and no error.
	Load(ctx context.Context) (map[string]string, error)

	// Save replaces the stored snapshot with states.
	Save(ctx context.Context, states map[string]string) error
}

// Store is the entity state store.
type Store struct {
	mu     sync.RWMutex
	states map[string]string
	last   *access.ProcessedEvent

	snap   Snapshotter
	logger Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store and loads the existing snapshot from snap.
// A nil snap keeps states in memory only.
func New(ctx context.Context, snap Snapshotter, opts ...Option) *Store {
	s := &Store{
		states: make(map[string]string),
		snap:   snap,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if snap == nil {
		return s
	}
	loaded, err := snap.Load(ctx)
	if err != nil {
		s.logger.Error("loading entity states, starting empty", "error", err)
		return s
	}
	for id, v := range loaded {
		s.states[id] = v
	}
	s.logger.Info("entity states loaded", "count", len(s.states))
	return s
}

// Get returns the state of one entity.
func (s *Store) Get(entityID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.states[entityID]
	return v, ok
}

// Len returns the number of known entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Entities returns every entity state sorted by entity id.
func (s *Store) Entities() []access.EntityState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]access.EntityState, 0, len(s.states))
	for id, v := range s.states {
		out = append(out, access.EntityState{EntityID: id, State: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Set records one entity state and persists the snapshot.
// Entity ids and states must be valid UTF-8; other values are rejected
// with a warning and the previous state is kept.
func (s *Store) Set(ctx context.Context, entityID, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(entityID, state)
	s.persistLocked(ctx)
}

// LastEvent returns the most recently applied event.
func (s *Store) LastEvent() (access.ProcessedEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return access.ProcessedEvent{}, false
	}
	return *s.last, true
}

// SetLastEvent overwrites the last event slot and persists the snapshot.
func (s *Store) SetLastEvent(ctx context.Context, ev access.ProcessedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &ev
	s.persistLocked(ctx)
}

// Apply records ev as the last event together with every state derived
// from it, persisting once.
func (s *Store) Apply(ctx context.Context, ev access.ProcessedEvent, states []access.EntityState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &ev
	for _, st := range states {
		s.setLocked(st.EntityID, st.State)
	}
	s.persistLocked(ctx)
}

// SeedFromInventory adds a default state for every entity of def that the
// store does not know yet. Existing states are kept. The snapshot is
// written only when something was added. Returns the states of every
// inventory entity, in inventory order.
func (s *Store) SeedFromInventory(ctx context.Context, def access.DeviceDefinition) []access.EntityState {
	defaults := make([]access.EntityState, 0, len(def.Doors)+len(def.AuxInputs)+len(def.Relays)+len(def.Readers))
	for _, d := range def.Doors {
		defaults = append(defaults, access.EntityState{EntityID: access.DoorEntityID(d.Number), State: access.StateOff})
	}
	for _, a := range def.AuxInputs {
		defaults = append(defaults, access.EntityState{EntityID: access.AuxInputEntityID(a.Number), State: access.StateOff})
	}
	for _, r := range def.Relays {
		defaults = append(defaults, access.EntityState{EntityID: access.RelayEntityID(r.Group, r.Number), State: access.StateOff})
	}
	for _, r := range def.Readers {
		defaults = append(defaults, access.EntityState{EntityID: access.ReaderCardEntityID(r.Number), State: access.DefaultReaderCard})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	out := make([]access.EntityState, 0, len(defaults))
	for _, d := range defaults {
		if v, ok := s.states[d.EntityID]; ok {
			out = append(out, access.EntityState{EntityID: d.EntityID, State: v})
			continue
		}
		s.states[d.EntityID] = d.State
		out = append(out, d)
		added++
	}

	if added > 0 {
		s.logger.Info("seeded entity states", "added", added, "total", len(s.states))
		s.persistLocked(ctx)
	}
	return out
}

func (s *Store) setLocked(entityID, state string) {
	if !utf8.ValidString(entityID) || !utf8.ValidString(state) {
		s.logger.Warn("rejecting entity state", "entity_id", entityID, "error", ErrInvalidState)
		return
	}
	prev, ok := s.states[entityID]
	if ok && prev == state {
		return
	}
	s.states[entityID] = state
	s.logger.Debug("entity state changed", "entity_id", entityID, "from", prev, "to", state)
}

// persistLocked writes the snapshot. Failures are logged, memory stays authoritative.
// The save is not cut short by cancellation of ctx, so the state of an
// event applied during shutdown still reaches the snapshot.
func (s *Store) persistLocked(ctx context.Context) {
	if s.snap == nil {
		return
	}
	if err := s.snap.Save(context.WithoutCancel(ctx), maps.Clone(s.states)); err != nil {
		s.logger.Error("saving entity states", "error", err)
	}
}
