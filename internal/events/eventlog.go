// Package events provides the append-only record of everything the theory
// engine reports: publications, milestones, purchases and restores.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a theory event.
type EventType string

const (
	EventTypePublished      EventType = "PUBLISHED"
	EventTypeMilestoneFired EventType = "MILESTONE_FIRED"
	EventTypeUpgradeApplied EventType = "UPGRADE_APPLIED"
	EventTypePenaltyApplied EventType = "PENALTY_APPLIED"
	EventTypeStateRestored  EventType = "STATE_RESTORED"
	EventTypeRestart        EventType = "RESTART"
)

// GameEvent represents an immutable record of something the engine did.
type GameEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"` // Who caused it: "ENGINE", "PLAYER", ...
	Payload   interface{} `json:"payload"`  // Event-specific data
	SimTime   float64     `json:"sim_time"`
}

// Sink receives engine events. The engine treats a nil Sink as "nobody is listening".
type Sink interface {
	Emit(event GameEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(GameEvent)

// Emit calls f.
func (f SinkFunc) Emit(event GameEvent) { f(event) }

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// Persisters fans one event out to several persisters. Every persister is
// tried; the first error is returned.
func Persisters(ps ...EventPersister) EventPersister {
	return multiPersister(ps)
}

type multiPersister []EventPersister

func (m multiPersister) Append(event GameEvent) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Append(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EventLog is the in-memory append-only log of theory events.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
	onError   func(error)
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// OnPersistError registers a callback for write-through failures.
func (el *EventLog) OnPersistError(fn func(error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Emit implements Sink.
func (el *EventLog) Emit(event GameEvent) {
	el.Append(event)
}

// Append adds a new event to the log. Events are immutable once appended.
// Missing IDs and timestamps are filled in.
func (el *EventLog) Append(event GameEvent) {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister, onError := el.persister, el.onError
	el.mu.Unlock()

	if persister != nil {
		if err := persister.Append(event); err != nil && onError != nil {
			onError(err)
		}
	}
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Since returns the events after the first n, and the new length.
func (el *EventLog) Since(n int) ([]GameEvent, int) {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if n < 0 || n > len(el.events) {
		n = len(el.events)
	}
	out := make([]GameEvent, len(el.events)-n)
	copy(out, el.events[n:])
	return out, len(el.events)
}

// Len returns the number of events.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Replay returns a copy of the full history for state reconstruction.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}

var _ Sink = (*EventLog)(nil)
