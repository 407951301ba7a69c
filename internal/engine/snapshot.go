package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/state"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
)

// ErrSnapshotMismatch is returned when a snapshot was taken from another variant.
var ErrSnapshotMismatch = errors.New("snapshot does not match variant")

// Snapshot is the full persistent state of one run. The two-field internal
// state string only covers time and currency; saves use this instead.
type Snapshot struct {
	Variant           string                 `json:"variant"`
	State             *state.Vector          `json:"state"`
	Modifiers         *rules.Modifiers       `json:"modifiers"`
	Publication       rules.PublicationState `json:"publication"`
	MilestoneCount    int                    `json:"milestone_count"`
	PenaltyApplied    bool                   `json:"penalty_applied"`
	PenaltyMultiplier float64                `json:"penalty_multiplier"`
	Applied           map[string]int         `json:"applied"`
	Currency          float64                `json:"currency"`
}

// Snapshot captures a deep copy of the run.
func (e *Engine) Snapshot() Snapshot {
	applied := make(map[string]int, len(e.applied))
	for id, lvl := range e.applied {
		applied[id] = lvl
	}
	tr := e.milestoneSystem.Tracker()
	return Snapshot{
		Variant:           e.variant.Name,
		State:             e.vec.Clone(),
		Modifiers:         e.mods.Clone(),
		Publication:       e.publicationSystem.State(),
		MilestoneCount:    tr.Count,
		PenaltyApplied:    tr.PenaltyApplied,
		PenaltyMultiplier: tr.PenaltyMultiplier,
		Applied:           applied,
		Currency:          e.currency.Value,
	}
}

// Restore loads a snapshot taken by Snapshot. Permanent accumulators only move
// up, so restoring an older save over a newer run keeps the newer totals.
func (e *Engine) Restore(s Snapshot) error {
	if s.Variant != e.variant.Name {
		return fmt.Errorf("%w: %q vs %q", ErrSnapshotMismatch, s.Variant, e.variant.Name)
	}
	if s.State == nil || s.State.Len() != e.vec.Len() || len(s.State.Initial) != e.vec.Len() {
		return fmt.Errorf("%w: state shape", ErrSnapshotMismatch)
	}
	if s.Modifiers == nil || len(s.Modifiers.Multipliers) != e.vec.Len() {
		return fmt.Errorf("%w: modifier shape", ErrSnapshotMismatch)
	}
	if !validShrink(s.Modifiers.Decay.ShrinkMultiplier) || !validShrink(s.Modifiers.CapMultiplier) {
		return fmt.Errorf("%w: shrink multipliers must be in (0, 1]", ErrSnapshotMismatch)
	}
	for id := range s.Applied {
		if _, ok := e.catalog.Get(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownUpgrade, id)
		}
	}

	tracker := e.milestoneSystem.Tracker()
	missed := tracker.Count - s.MilestoneCount

	vec := s.State.Clone()
	vec.Names = e.vec.Names
	*e.vec = *vec
	*e.mods = *s.Modifiers.Clone()
	if missed > 0 {
		// The run is ahead of the snapshot: keep the effects of the
		// milestones the snapshot has not seen.
		tracker.ApplyEffects(missed, e.mods)
	}
	e.publicationSystem.Restore(s.Publication)
	tracker.Restore(s.MilestoneCount, s.PenaltyApplied, s.PenaltyMultiplier)
	e.applied = make(map[string]int, len(s.Applied))
	for id, lvl := range s.Applied {
		e.applied[id] = lvl
	}
	e.currency.Value = clampNonNegative(s.Currency)
	e.publicationSystem.Refresh(e.vec)

	e.emit(events.EventTypeStateRestored, map[string]interface{}{
		"sim_time":        e.vec.SimulatedTime,
		"currency":        e.currency.Value,
		"milestone_count": e.milestoneSystem.Tracker().Count,
	})
	e.logger.Info("snapshot restored",
		zap.Float64("sim_time", e.vec.SimulatedTime),
		zap.Int("publications", e.publicationSystem.State().Count))
	return nil
}

// RestoreProgress rebuilds permanent progress when only the event history
// survives: the publication accumulators are restored, milestones the total
// has crossed fire again (reapplying their effects), a recorded penalty is
// marked applied, and upgrade levels the host reports are reapplied.
// Returns the milestone indices fired.
func (e *Engine) RestoreProgress(pub rules.PublicationState, penaltyApplied bool) []int {
	e.publicationSystem.Restore(pub)
	e.milestoneSystem.Tracker().Restore(0, penaltyApplied, 0)
	e.publicationSystem.Refresh(e.vec)
	fired := e.milestoneSystem.Check(e.publicationSystem.State().TotalAccumulated)
	e.SyncUpgrades()
	e.logger.Info("progress rebuilt",
		zap.Float64("total", e.publicationSystem.State().TotalAccumulated),
		zap.Int("milestones", len(fired)))
	return fired
}

func validShrink(m float64) bool {
	return m > 0 && m <= 1
}
