// Package storage provides the persistence layer for the theory server.
// This package implements the repository pattern to keep the domain pure.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a save slot does not exist.
var ErrNotFound = errors.New("not found")

// EventRecord mirrors the engine event structure for persistence.
// The domain package should NOT import this; use interfaces instead.
type EventRecord struct {
	ID        string                 `json:"id" db:"id"`
	RunID     string                 `json:"run_id" db:"run_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
	SimTime   float64                `json:"sim_time" db:"sim_time"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event EventRecord) error

	// GetByRunID retrieves all events for a run, oldest first (for replay).
	GetByRunID(ctx context.Context, runID string) ([]EventRecord, error)

	// GetByEventType retrieves all events of a specific type.
	GetByEventType(ctx context.Context, runID string, eventType string) ([]EventRecord, error)

	// GetSince retrieves events at or after a simulated time.
	GetSince(ctx context.Context, runID string, simTime float64) ([]EventRecord, error)
}

// SaveRecord is one save slot: the host state string, the full engine
// snapshot as JSON and the host's upgrade levels.
type SaveRecord struct {
	Slot          string         `json:"slot" db:"slot"`
	Variant       string         `json:"variant" db:"variant"`
	InternalState string         `json:"internal_state" db:"internal_state"`
	Snapshot      []byte         `json:"snapshot" db:"snapshot"`
	Levels        map[string]int `json:"levels" db:"levels"`
	SavedAt       time.Time      `json:"saved_at" db:"saved_at"`
}

// SaveRepository defines the interface for save slots.
type SaveRepository interface {
	// Upsert updates or inserts a save slot.
	Upsert(ctx context.Context, save SaveRecord) error

	// Get retrieves a slot, ErrNotFound if it does not exist.
	Get(ctx context.Context, slot string) (*SaveRecord, error)

	// List retrieves every slot, most recent first.
	List(ctx context.Context) ([]SaveRecord, error)

	// Delete removes a slot.
	Delete(ctx context.Context, slot string) error
}
