// Package storage - reconstructor.go
// Rebuilds permanent progress from the event log: state = f(events).
package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
)

// Reconstructor rebuilds a run's permanent progress from the event log.
// This is used for:
// 1. Recovering accumulators when a save slot is lost or corrupt
// 2. The replay command's audit output
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new state reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RebuiltState is the permanent progress recovered from events.
type RebuiltState struct {
	TotalAccumulated float64        `json:"total_accumulated"`
	PLast            float64        `json:"p_last"`
	Publications     int            `json:"publications"`
	MilestoneCount   int            `json:"milestone_count"`
	PenaltyApplied   bool           `json:"penalty_applied"`
	Levels           map[string]int `json:"levels"`
	Restarts         int            `json:"restarts"`
	LastSimTime      float64        `json:"last_sim_time"`
}

// Publication converts the rebuilt accumulators to engine bookkeeping.
func (s RebuiltState) Publication() rules.PublicationState {
	pub := rules.NewPublicationState()
	pub.TotalAccumulated = s.TotalAccumulated
	if s.PLast > pub.PLast {
		pub.PLast = s.PLast
	}
	pub.Count = s.Publications
	return pub
}

// RecapEvent is a simplified event for the replay summary.
type RecapEvent struct {
	SimTime   float64 `json:"sim_time"`
	EventType string  `json:"event_type"`
	Summary   string  `json:"summary"`
	Impact    string  `json:"impact"` // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// RebuildRun reconstructs a run's permanent progress from its stored events.
func (r *Reconstructor) RebuildRun(ctx context.Context, runID string) (*RebuiltState, error) {
	records, err := r.eventRepo.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for run: %w", err)
	}
	state := Rebuild(records)
	return &state, nil
}

// GenerateRecap summarises a run's events at or after sinceSimTime.
func (r *Reconstructor) GenerateRecap(ctx context.Context, runID string, sinceSimTime float64) ([]RecapEvent, error) {
	records, err := r.eventRepo.GetSince(ctx, runID, sinceSimTime)
	if err != nil {
		return nil, err
	}
	return Recap(records), nil
}

// Rebuild folds records, in order, into permanent progress. Accumulators are
// monotone so duplicated or reordered publication events cannot lower them.
func Rebuild(records []EventRecord) RebuiltState {
	state := RebuiltState{PLast: 1, Levels: make(map[string]int)}
	for _, e := range records {
		applyEventToState(&state, e)
	}
	return state
}

func applyEventToState(state *RebuiltState, event EventRecord) {
	if event.SimTime > state.LastSimTime {
		state.LastSimTime = event.SimTime
	}
	switch events.EventType(event.EventType) {
	case events.EventTypePublished:
		if v, ok := number(event.Payload, "total_accumulated"); ok && v > state.TotalAccumulated {
			state.TotalAccumulated = v
		}
		if v, ok := number(event.Payload, "p_last"); ok && v > state.PLast {
			state.PLast = v
		}
		if v, ok := number(event.Payload, "publication"); ok && int(v) > state.Publications {
			state.Publications = int(v)
		}
		if v, ok := number(event.Payload, "milestone_count"); ok && int(v) > state.MilestoneCount {
			state.MilestoneCount = int(v)
		}
	case events.EventTypeMilestoneFired:
		if v, ok := number(event.Payload, "index"); ok && int(v) > state.MilestoneCount {
			state.MilestoneCount = int(v)
		}
	case events.EventTypeUpgradeApplied:
		id, _ := event.Payload["id"].(string)
		if v, ok := number(event.Payload, "level"); ok && id != "" && int(v) > state.Levels[id] {
			state.Levels[id] = int(v)
		}
	case events.EventTypePenaltyApplied:
		state.PenaltyApplied = true
	case events.EventTypeRestart:
		state.Restarts++
	}
}

func number(payload map[string]interface{}, key string) (float64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Recap turns records into human-readable lines.
func Recap(records []EventRecord) []RecapEvent {
	recap := make([]RecapEvent, 0, len(records))
	for _, e := range records {
		recap = append(recap, RecapEvent{
			SimTime:   e.SimTime,
			EventType: e.EventType,
			Summary:   summarizeEvent(e),
			Impact:    determineImpact(e),
		})
	}
	return recap
}

func summarizeEvent(event EventRecord) string {
	switch events.EventType(event.EventType) {
	case events.EventTypePublished:
		total := 0.0
		if reward, ok := event.Payload["reward"].(map[string]interface{}); ok {
			total, _ = number(reward, "total")
		}
		n, _ := number(event.Payload, "publication")
		return fmt.Sprintf("%s publication paid %s tau", humanize.Ordinal(int(n)), humanize.FormatFloat("#,###.##", total))
	case events.EventTypeMilestoneFired:
		idx, _ := number(event.Payload, "index")
		kind, _ := event.Payload["kind"].(string)
		return fmt.Sprintf("milestone %d unlocked (%s)", int(idx), kind)
	case events.EventTypeUpgradeApplied:
		id, _ := event.Payload["id"].(string)
		lvl, _ := number(event.Payload, "level")
		return fmt.Sprintf("upgrade %s reached level %d", id, int(lvl))
	case events.EventTypePenaltyApplied:
		return "late milestone penalty applied"
	case events.EventTypeRestart:
		return "run restarted"
	case events.EventTypeStateRestored:
		return "state restored from save"
	default:
		return "unknown event"
	}
}

func determineImpact(event EventRecord) string {
	switch events.EventType(event.EventType) {
	case events.EventTypePublished, events.EventTypeMilestoneFired, events.EventTypeUpgradeApplied:
		return "POSITIVE"
	case events.EventTypePenaltyApplied, events.EventTypeRestart:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

// SortedLevels returns the rebuilt levels as sorted "id" keys, for stable output.
func (s RebuiltState) SortedLevels() []string {
	ids := make([]string, 0, len(s.Levels))
	for id := range s.Levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
