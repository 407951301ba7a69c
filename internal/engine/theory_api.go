package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
)

// EquationOverlay renders the currency equation with the active milestone terms.
func (e *Engine) EquationOverlay() string {
	terms := []string{`\sum_i ` + strings.Join(e.vec.Names, "+")}
	tracker := e.milestoneSystem.Tracker()
	for _, s := range tracker.Active() {
		terms = append(terms, s.Symbol())
	}
	if n := tracker.Overflow(); n > 0 {
		terms = append(terms, fmt.Sprintf(`%d \epsilon`, n))
	}

	var b strings.Builder
	b.WriteString(`\dot{\rho} = `)
	if pm := tracker.PenaltyMultiplier; pm != 1 {
		fmt.Fprintf(&b, `%g \cdot `, pm)
	}
	b.WriteString("(" + strings.Join(terms, " + ") + ")")
	if e.variant.Softcap != nil {
		fmt.Fprintf(&b, ` / (1 + (x/10^{%g})^{%g})`, e.variant.Softcap.CapLog10, e.variant.Softcap.K)
	}
	b.WriteString(` \cdot e^{-\lambda t}`)
	return b.String()
}

// PublicationMultiplier is 1 + log10(1 + tau).
func (e *Engine) PublicationMultiplier(tau float64) float64 {
	return rules.PublicationMultiplier(tau)
}

// PublicationMultiplierFormula renders PublicationMultiplier for a symbol.
func (e *Engine) PublicationMultiplierFormula(symbol string) string {
	return rules.PublicationMultiplierFormula(symbol)
}

// Tau is the host-facing tau: currency^0.1.
func (e *Engine) Tau() float64 {
	return math.Pow(e.currency.Value, 0.1)
}

// Graph2DValue is log10(currency + 1).
func (e *Engine) Graph2DValue() float64 {
	return math.Log10(e.currency.Value + 1)
}

// Graph3DPoint projects the state onto three axes: log10(1+x) of the first
// variables, with sin(t/50) filling the third axis for two-variable variants.
func (e *Engine) Graph3DPoint() [3]float64 {
	var p [3]float64
	for i := 0; i < 3; i++ {
		if i < e.vec.Len() {
			p[i] = math.Log10(1 + e.vec.Values[i])
		} else {
			p[i] = math.Sin(e.vec.SimulatedTime / 50)
		}
	}
	return p
}

// InternalState serialises "simulatedTime currency" with shortest round-trip formatting.
func (e *Engine) InternalState() string {
	return strconv.FormatFloat(e.vec.SimulatedTime, 'g', -1, 64) + " " +
		strconv.FormatFloat(e.currency.Value, 'g', -1, 64)
}

// SetInternalState restores the pair written by InternalState. Malformed input
// leaves the engine untouched and returns an error wrapping ErrMalformedState.
func (e *Engine) SetInternalState(s string) error {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return fmt.Errorf("%w: want 2 fields, got %d", ErrMalformedState, len(fields))
	}
	t, err := parseNonNegative(fields[0])
	if err != nil {
		return fmt.Errorf("%w: time: %v", ErrMalformedState, err)
	}
	c, err := parseNonNegative(fields[1])
	if err != nil {
		return fmt.Errorf("%w: currency: %v", ErrMalformedState, err)
	}

	e.vec.SimulatedTime = t
	e.currency.Value = c
	e.emit(events.EventTypeStateRestored, map[string]float64{"sim_time": t, "currency": c})
	e.logger.Debug("internal state restored", zap.Float64("sim_time", t), zap.Float64("currency", c))
	return nil
}

func parseNonNegative(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return v, nil
}
