package engine

import (
	"fmt"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/milestone"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

// MilestonePayload describes one fired milestone.
type MilestonePayload struct {
	Index            int            `json:"index"`
	Kind             milestone.Kind `json:"kind"`
	ShrinkMultiplier float64        `json:"shrink_multiplier"`
	CapMultiplier    float64        `json:"cap_multiplier"`
	TotalAccumulated float64        `json:"total_accumulated"`
}

// PenaltyPayload describes the one-time late-game penalty.
type PenaltyPayload struct {
	Multiplier float64 `json:"multiplier"`
	Currency   float64 `json:"currency"`
}

// MilestoneSystem watches the lifetime total and emits one event per crossing.
type MilestoneSystem struct {
	logger  *logger.Logger
	emit    func(events.EventType, interface{})
	tracker *milestone.Tracker
	mods    *rules.Modifiers
}

// NewMilestoneSystem creates a milestone system with count 0.
func NewMilestoneSystem(cfg milestone.Config, mods *rules.Modifiers, emit func(events.EventType, interface{}), log *logger.Logger) *MilestoneSystem {
	return &MilestoneSystem{
		logger:  log,
		emit:    emit,
		tracker: milestone.NewTracker(cfg),
		mods:    mods,
	}
}

// Check fires every milestone the total has crossed. Never batched: each
// index gets its own event.
func (ms *MilestoneSystem) Check(total float64) []int {
	fired := ms.tracker.CheckAndTrigger(total, ms.mods)
	for _, idx := range fired {
		kind := ms.tracker.SlotAt(idx).Kind
		ms.emit(events.EventTypeMilestoneFired, MilestonePayload{
			Index:            idx,
			Kind:             kind,
			ShrinkMultiplier: ms.mods.Decay.ShrinkMultiplier,
			CapMultiplier:    ms.mods.CapMultiplier,
			TotalAccumulated: total,
		})
		ms.logger.Event("MILESTONE_FIRED", "ENGINE", fmt.Sprintf("milestone %d (%s)", idx, kind))
	}
	return fired
}

// CheckPenalty applies the late-game penalty once.
func (ms *MilestoneSystem) CheckPenalty(currency float64) bool {
	if !ms.tracker.CheckPenalty(currency) {
		return false
	}
	ms.emit(events.EventTypePenaltyApplied, PenaltyPayload{
		Multiplier: ms.tracker.PenaltyMultiplier,
		Currency:   currency,
	})
	ms.logger.Warn("late milestone penalty applied")
	return true
}

// Terms returns the currency-rate contribution of the active slots.
func (ms *MilestoneSystem) Terms(values []float64, simTime float64) float64 {
	return ms.tracker.Terms(values, simTime)
}

// Bonus returns the additive publication reward.
func (ms *MilestoneSystem) Bonus() float64 {
	return ms.tracker.Bonus()
}

// Tracker exposes the underlying tracker.
func (ms *MilestoneSystem) Tracker() *milestone.Tracker {
	return ms.tracker
}
