// Package milestone tracks the permanent thresholds crossed by the lifetime
// publication total and the growth terms each crossing unlocks.
// This package is PURE and must NOT import any infrastructure packages.
package milestone

import (
	"math"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
)

// Target names the permanent field a milestone shrinks.
type Target string

const (
	TargetDecay   Target = "decay"   // DecayState.ShrinkMultiplier
	TargetSoftcap Target = "softcap" // Modifiers.CapMultiplier
)

// Config holds the per-variant milestone constants.
type Config struct {
	Step               float64 `json:"step" yaml:"step"`
	RewardPerMilestone float64 `json:"reward_per_milestone" yaml:"reward_per_milestone"`
	RewardGrowth       float64 `json:"reward_growth" yaml:"reward_growth"`
	Factor             float64 `json:"factor" yaml:"factor"`
	Target             Target  `json:"target" yaml:"target"`
	Slots              int     `json:"slots" yaml:"slots"`
	LateStart          int     `json:"late_start" yaml:"late_start"`
	EarlyWeight        float64 `json:"early_weight" yaml:"early_weight"`
	FlatWeight         float64 `json:"flat_weight" yaml:"flat_weight"`
	PenaltyThreshold   float64 `json:"penalty_threshold" yaml:"penalty_threshold"`
	PenaltyFactor      float64 `json:"penalty_factor" yaml:"penalty_factor"`
}

// DefaultConfig is shared by the built-in variants.
func DefaultConfig() Config {
	return Config{
		Step:               1e25,
		RewardPerMilestone: 1,
		Factor:             0.9,
		Target:             TargetDecay,
		Slots:              12,
		LateStart:          8,
		EarlyWeight:        0.5,
		FlatWeight:         0.01,
		PenaltyThreshold:   1e100,
		PenaltyFactor:      0.9,
	}
}

// Tracker fires one-shot permanent effects as the lifetime total crosses
// multiples of Step. Count never decreases and is not reset by publication.
type Tracker struct {
	cfg   Config
	slots []Slot

	Count             int     `json:"count"`
	PenaltyApplied    bool    `json:"penalty_applied"`
	PenaltyMultiplier float64 `json:"penalty_multiplier"`
}

// NewTracker creates a tracker with count 0 and its slot table built up front.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:               cfg,
		slots:             BuildSlots(cfg),
		PenaltyMultiplier: 1,
	}
}

// Config returns the tracker's constants.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Slots returns the full slot table, active or not.
func (t *Tracker) Slots() []Slot {
	return t.slots
}

// Active returns the table slots unlocked so far, in index order.
// Milestones past the table are counted by Overflow.
func (t *Tracker) Active() []Slot {
	n := t.Count
	if n > len(t.slots) {
		n = len(t.slots)
	}
	return t.slots[:n]
}

// Overflow is the number of unlocked milestones past the slot table. Each
// contributes a flat term.
func (t *Tracker) Overflow() int {
	if t.Count <= len(t.slots) {
		return 0
	}
	return t.Count - len(t.slots)
}

// SlotAt resolves a 1-based milestone index. Indices past the table are flat.
func (t *Tracker) SlotAt(idx int) Slot {
	if idx >= 1 && idx <= len(t.slots) {
		return t.slots[idx-1]
	}
	return Slot{Index: idx, Kind: KindFlat, Weight: t.cfg.FlatWeight}
}

// MaxFiredPerCheck bounds the indices one CheckAndTrigger call fires. A
// larger gap is closed by later checks against the same total.
const MaxFiredPerCheck = 4096

// CheckAndTrigger fires every milestone between the current count and
// floor(total/Step), one index at a time, applying the permanent effect to
// mods for each. It returns the 1-based indices fired by this call.
func (t *Tracker) CheckAndTrigger(total float64, mods *rules.Modifiers) []int {
	if t.cfg.Step <= 0 || math.IsNaN(total) || total <= 0 {
		return nil
	}
	target := math.Floor(total / t.cfg.Step)

	var fired []int
	for float64(t.Count) < target && len(fired) < MaxFiredPerCheck {
		t.Count++
		t.applyEffect(mods)
		fired = append(fired, t.Count)
	}
	return fired
}

// ApplyEffects reapplies n milestone effects to mods without moving Count.
func (t *Tracker) ApplyEffects(n int, mods *rules.Modifiers) {
	for i := 0; i < n; i++ {
		t.applyEffect(mods)
	}
}

func (t *Tracker) applyEffect(mods *rules.Modifiers) {
	if mods == nil {
		return
	}
	switch t.cfg.Target {
	case TargetSoftcap:
		mods.ShrinkCap(t.cfg.Factor)
	default:
		mods.Decay.Shrink(t.cfg.Factor)
	}
}

// Bonus is the additive publication reward: count * rewardPerMilestone,
// where the per-milestone reward grows linearly with RewardGrowth.
func (t *Tracker) Bonus() float64 {
	per := t.cfg.RewardPerMilestone * (1 + t.cfg.RewardGrowth*float64(t.Count))
	return float64(t.Count) * per
}

// LateActive reports whether any late (flat) slot is unlocked.
func (t *Tracker) LateActive() bool {
	if t.Overflow() > 0 {
		return true
	}
	for _, s := range t.Active() {
		if s.Kind == KindFlat {
			return true
		}
	}
	return false
}

// CheckPenalty applies the one-time penalty the first time value exceeds the
// penalty threshold while a late slot is active. It reports whether it fired.
func (t *Tracker) CheckPenalty(value float64) bool {
	if t.PenaltyApplied || !t.LateActive() || value <= t.cfg.PenaltyThreshold {
		return false
	}
	t.PenaltyApplied = true
	t.PenaltyMultiplier *= t.cfg.PenaltyFactor
	return true
}

// Terms sums the active slot terms, scaled by the penalty multiplier.
func (t *Tracker) Terms(values []float64, simTime float64) float64 {
	sum := 0.0
	for _, s := range t.Active() {
		sum += s.Term(values, simTime)
	}
	sum += float64(t.Overflow()) * t.cfg.FlatWeight
	return sum * t.PenaltyMultiplier
}

// Restore merges saved progress into the tracker. Count is never lowered and
// an applied penalty stays applied. A missing multiplier for an applied
// penalty falls back to PenaltyFactor.
func (t *Tracker) Restore(count int, penaltyApplied bool, penaltyMultiplier float64) {
	if count > t.Count {
		t.Count = count
	}
	if !penaltyApplied || t.PenaltyApplied {
		return
	}
	t.PenaltyApplied = true
	if penaltyMultiplier <= 0 || penaltyMultiplier >= 1 {
		penaltyMultiplier = t.cfg.PenaltyFactor
	}
	t.PenaltyMultiplier = penaltyMultiplier
}
