package milestone

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
)

func newMods() *rules.Modifiers {
	return rules.NewModifiers(2, nil, rules.NewDecayState(0.0002, 1e-7))
}

func TestBuildSlots_Layout(t *testing.T) {
	slots := BuildSlots(DefaultConfig())
	require.Len(t, slots, 12)

	want := []Kind{KindProduct, KindExponential, KindNorm, KindSum, KindProduct, KindExponential, KindNorm}
	for i, k := range want {
		assert.Equal(t, i+1, slots[i].Index)
		assert.Equal(t, k, slots[i].Kind, "slot %d", i+1)
	}
	for _, s := range slots[7:] {
		assert.Equal(t, KindFlat, s.Kind, "slot %d", s.Index)
		assert.NotEmpty(t, s.Symbol())
	}
}

func TestCheckAndTrigger_CrossingFiresOnce(t *testing.T) {
	// Setup
	tr := NewTracker(DefaultConfig())
	mods := newMods()

	// Act & Assert
	assert.Empty(t, tr.CheckAndTrigger(0.9e25, mods))
	assert.Equal(t, []int{1}, tr.CheckAndTrigger(1.1e25, mods))
	assert.Empty(t, tr.CheckAndTrigger(1.1e25, mods), "same total must not fire again")
	assert.Equal(t, 1, tr.Count)
	assert.InDelta(t, 0.9, mods.Decay.ShrinkMultiplier, 1e-12)
}

func TestCheckAndTrigger_FiresEveryIndexInBetween(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	mods := newMods()

	fired := tr.CheckAndTrigger(4.5e25, mods)

	assert.Equal(t, []int{1, 2, 3, 4}, fired)
	assert.InDelta(t, 0.9*0.9*0.9*0.9, mods.Decay.ShrinkMultiplier, 1e-12)
}

func TestCheckAndTrigger_CountsPastSlotTable(t *testing.T) {
	// Setup
	tr := NewTracker(DefaultConfig())
	mods := newMods()
	total := 20.5e25

	// Act
	fired := tr.CheckAndTrigger(total, mods)

	// Assert
	assert.Len(t, fired, 20)
	assert.Equal(t, 20, fired[19])
	assert.Equal(t, int(math.Floor(total/DefaultConfig().Step)), tr.Count)
	assert.InDelta(t, math.Pow(0.9, 20), mods.Decay.ShrinkMultiplier, 1e-12)
	assert.Len(t, tr.Active(), 12)
	assert.Equal(t, 8, tr.Overflow())

	late := tr.SlotAt(13)
	assert.Equal(t, KindFlat, late.Kind)
	assert.Equal(t, 13, late.Index)
	assert.Equal(t, KindProduct, tr.SlotAt(1).Kind)
}

func TestTerms_IncludeFlatTermsPastTable(t *testing.T) {
	atTable := NewTracker(DefaultConfig())
	atTable.CheckAndTrigger(12.5e25, nil)
	past := NewTracker(DefaultConfig())
	past.CheckAndTrigger(15.5e25, nil)

	values := []float64{10, 10}
	diff := past.Terms(values, 100) - atTable.Terms(values, 100)

	assert.InDelta(t, 3*DefaultConfig().FlatWeight, diff, 1e-12)
}

func TestCheckAndTrigger_LargeGapCatchesUpAcrossChecks(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	total := (2*MaxFiredPerCheck + 10.5) * DefaultConfig().Step

	assert.Len(t, tr.CheckAndTrigger(total, nil), MaxFiredPerCheck)
	assert.Len(t, tr.CheckAndTrigger(total, nil), MaxFiredPerCheck)
	fired := tr.CheckAndTrigger(total, nil)

	assert.Len(t, fired, 10)
	assert.Equal(t, 2*MaxFiredPerCheck+10, tr.Count)
	assert.Empty(t, tr.CheckAndTrigger(total, nil))
}

func TestCheckAndTrigger_SoftcapTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = TargetSoftcap
	tr := NewTracker(cfg)
	mods := newMods()

	tr.CheckAndTrigger(2.5e25, mods)

	assert.InDelta(t, 0.81, mods.CapMultiplier, 1e-12)
	assert.Equal(t, 1.0, mods.Decay.ShrinkMultiplier)
}

func TestPenalty_OnlyWithLateSlotAndOnlyOnce(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.CheckAndTrigger(7.5e25, nil)

	assert.False(t, tr.CheckPenalty(1e200), "no late slot active yet")

	tr.CheckAndTrigger(8.5e25, nil)
	assert.True(t, tr.LateActive())
	assert.False(t, tr.CheckPenalty(1e50), "below threshold")
	assert.True(t, tr.CheckPenalty(1e200))
	assert.False(t, tr.CheckPenalty(1e250), "penalty is one-time")
	assert.InDelta(t, 0.9, tr.PenaltyMultiplier, 1e-12)
}

func TestTermsAndBonus(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	assert.Zero(t, tr.Terms([]float64{10, 10}, 100))
	assert.Zero(t, tr.Bonus())

	tr.CheckAndTrigger(3.5e25, nil)
	assert.Greater(t, tr.Terms([]float64{10, 10}, 100), 0.0)
	assert.Equal(t, 3.0, tr.Bonus())
}

func TestSlotTerm_NonNegative(t *testing.T) {
	for _, s := range BuildSlots(DefaultConfig()) {
		assert.GreaterOrEqual(t, s.Term([]float64{0, 5, 1e30}, 0), 0.0, "slot %d", s.Index)
	}
	exp := Slot{Kind: KindExponential, Weight: 1}
	assert.Zero(t, exp.Term(nil, 0))
}

func TestRestore_NeverLowersCount(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.CheckAndTrigger(5.5e25, nil)

	tr.Restore(2, true, 0.9)

	assert.Equal(t, 5, tr.Count)
	assert.True(t, tr.PenaltyApplied)
	assert.Equal(t, 0.9, tr.PenaltyMultiplier)

	tr.Restore(7, true, 0)
	assert.Equal(t, 7, tr.Count)
	assert.Equal(t, 0.9, tr.PenaltyMultiplier, "non-positive multiplier is ignored")
}

func TestRestore_KeepsAppliedPenalty(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Restore(0, true, 0)
	assert.True(t, tr.PenaltyApplied)
	assert.Equal(t, DefaultConfig().PenaltyFactor, tr.PenaltyMultiplier)

	tr.Restore(0, false, 1)

	assert.True(t, tr.PenaltyApplied, "an older save cannot undo the penalty")
	assert.Equal(t, 0.9, tr.PenaltyMultiplier)
	tr.CheckAndTrigger(8.5e25, nil)
	assert.False(t, tr.CheckPenalty(1e200))
}
