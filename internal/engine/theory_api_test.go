package engine

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/variant"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
)

func TestEquationOverlay(t *testing.T) {
	calc, _, _ := newTestEngine(t, variant.Calculus, Options{})
	assert.Equal(t, `\dot{\rho} = (\sum_i c1+c2+c3+c4+c5) \cdot e^{-\lambda t}`, calc.EquationOverlay())

	soft, _, _ := newTestEngine(t, variant.Softcap, Options{})
	assert.Equal(t, `\dot{\rho} = (\sum_i a+b) / (1 + (x/10^{40})^{0.5}) \cdot e^{-\lambda t}`, soft.EquationOverlay())
}

func TestEquationOverlay_ShowsActiveSlots(t *testing.T) {
	e, _, _ := newTestEngine(t, variant.Matrix, Options{})

	e.RestoreProgress(rules.PublicationState{TotalAccumulated: 2.5e25}, false)

	overlay := e.EquationOverlay()
	assert.Contains(t, overlay, `\Pi (1+\log x_i)`)
	assert.Contains(t, overlay, `(1-e^{-t/\tau})`)
	assert.NotContains(t, overlay, `\|\log x\|`)
}

func TestPublicationMultiplier(t *testing.T) {
	e, _, _ := newTestEngine(t, variant.Calculus, Options{})

	assert.Equal(t, 1.0, e.PublicationMultiplier(0))
	assert.InDelta(t, 2.0, e.PublicationMultiplier(9), 1e-12)
	assert.Equal(t, "1 + log₁₀(1 + τ)", e.PublicationMultiplierFormula("τ"))
}

func TestTauAndGraph2D(t *testing.T) {
	e, _, _ := newTestEngine(t, variant.Calculus, Options{})
	assert.Zero(t, e.Tau())
	assert.Zero(t, e.Graph2DValue())

	require.NoError(t, e.SetInternalState("0 1e10"))
	assert.InDelta(t, 10.0, e.Tau(), 1e-9)

	require.NoError(t, e.SetInternalState("0 99"))
	assert.InDelta(t, 2.0, e.Graph2DValue(), 1e-12)
}

func TestGraph3DPoint(t *testing.T) {
	calc, _, _ := newTestEngine(t, variant.Calculus, Options{})
	p := calc.Graph3DPoint()
	for i := range p {
		assert.InDelta(t, math.Log10(2), p[i], 1e-12)
	}

	soft, _, _ := newTestEngine(t, variant.Softcap, Options{})
	quarter := strconv.FormatFloat(25*math.Pi, 'g', -1, 64)
	require.NoError(t, soft.SetInternalState(quarter+" 0"))
	p = soft.Graph3DPoint()
	assert.Zero(t, p[0])
	assert.Zero(t, p[1])
	assert.InDelta(t, 1.0, p[2], 1e-12, "two-variable variants fill the third axis with sin(t/50)")
}

func TestInternalState_RoundTrip(t *testing.T) {
	// Setup
	a, _, _ := newTestEngine(t, variant.Matrix, Options{})
	for i := 0; i < 7; i++ {
		a.Tick(1.37, 1)
	}
	s := a.InternalState()

	// Act
	b, _, _ := newTestEngine(t, variant.Matrix, Options{})
	require.NoError(t, b.SetInternalState(s))

	// Assert
	assert.Equal(t, s, b.InternalState())
	assert.Equal(t, a.State().SimulatedTime, b.State().SimulatedTime)
	assert.Equal(t, a.Currency(), b.Currency())
}

func TestInternalState_Format(t *testing.T) {
	e, _, eventLog := newTestEngine(t, variant.Calculus, Options{})
	assert.Equal(t, "0 0", e.InternalState())

	require.NoError(t, e.SetInternalState("  12.5\t3e10 "))

	assert.Equal(t, "12.5 3e+10", e.InternalState())
	assert.Len(t, eventLog.GetByType(events.EventTypeStateRestored), 1)
}

func TestSetInternalState_MalformedLeavesStateUntouched(t *testing.T) {
	e, _, _ := newTestEngine(t, variant.Calculus, Options{})
	require.NoError(t, e.SetInternalState("4 8"))

	for _, bad := range []string{"", "1", "a b", "1 b", "-1 2", "1 -2", "1 2 3", "NaN 1", "1 Inf"} {
		err := e.SetInternalState(bad)
		assert.True(t, errors.Is(err, ErrMalformedState), "%q: %v", bad, err)
		assert.Equal(t, "4 8", e.InternalState(), "%q must not change state", bad)
	}
}

func TestPenalty_AppliedOnceWithLateSlot(t *testing.T) {
	e, _, eventLog := newTestEngine(t, variant.Calculus, Options{})
	fired := e.RestoreProgress(rules.PublicationState{TotalAccumulated: 8.5e25}, false)
	require.Len(t, fired, 8)

	require.NoError(t, e.SetInternalState("0 1e101"))
	e.Tick(1, 1)
	e.Tick(1, 1)

	assert.Len(t, eventLog.GetByType(events.EventTypePenaltyApplied), 1)
	assert.True(t, strings.HasPrefix(e.EquationOverlay(), `\dot{\rho} = 0.9 \cdot (`))
}
