package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/metrics"
)

// EventPersister writes engine events through to an EventRepository.
// It implements events.EventPersister.
type EventPersister struct {
	repo    EventRepository
	runID   string
	metrics *metrics.Collector
	timeout time.Duration
}

// NewEventPersister binds a repository to one run. m may be nil.
func NewEventPersister(repo EventRepository, runID string, m *metrics.Collector) *EventPersister {
	return &EventPersister{repo: repo, runID: runID, metrics: m, timeout: 5 * time.Second}
}

// Append persists one event.
func (p *EventPersister) Append(event events.GameEvent) error {
	rec, err := ToRecord(p.runID, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	err = p.repo.Append(ctx, rec)
	if p.metrics != nil {
		p.metrics.RecordEventWrite(time.Since(start), err)
	}
	return err
}

// ToRecord flattens an engine event into its storage form.
// Struct payloads become generic JSON objects.
func ToRecord(runID string, event events.GameEvent) (EventRecord, error) {
	rec := EventRecord{
		ID:        event.ID,
		RunID:     runID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		SimTime:   event.SimTime,
	}
	if event.Payload == nil {
		return rec, nil
	}
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return rec, fmt.Errorf("event %s payload: %w", event.ID, err)
	}
	if err := json.Unmarshal(raw, &rec.Payload); err != nil {
		rec.Payload = map[string]interface{}{"value": json.RawMessage(raw)}
	}
	return rec, nil
}

var _ events.EventPersister = (*EventPersister)(nil)
