// Package rules contains the pure calculation logic for the theory's equations.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import "math"

// GrowthKind selects the fixed formula that turns one variable into its raw growth term.
type GrowthKind string

const (
	GrowthLog        GrowthKind = "log"         // 1 + ln(max(x,1))
	GrowthSqrt       GrowthKind = "sqrt"        // sqrt(max(x,1))
	GrowthLinearTime GrowthKind = "linear_time" // 1 + k*t
	GrowthPower      GrowthKind = "power"       // max(x,1)^k, k in (0,1]
)

// Term is one row of a variant's formula table.
type Term struct {
	Kind GrowthKind `json:"kind" yaml:"kind"`
	K    float64    `json:"k" yaml:"k"`
}

// Eval returns the unscaled growth contribution of value x at simulated time t.
func (tm Term) Eval(x, t float64) float64 {
	x1 := math.Max(x, 1)
	switch tm.Kind {
	case GrowthLog:
		return 1 + math.Log(x1)
	case GrowthSqrt:
		return math.Sqrt(x1)
	case GrowthLinearTime:
		return 1 + tm.K*math.Max(t, 0)
	case GrowthPower:
		k := tm.K
		if k <= 0 || k > 1 {
			k = 1
		}
		return math.Pow(x1, k)
	}
	return 0
}

// Softcap attenuates growth as a value approaches 10^CapLog10.
// The cap lives in log10 space so caps beyond float64 range (e.g. e750) stay exact.
type Softcap struct {
	CapLog10 float64 `json:"cap_log10" yaml:"cap_log10"`
	K        float64 `json:"k" yaml:"k"`
}

// Divisor returns 1 + (x/cap)^k * capMultiplier. It is always >= 1.
func (s Softcap) Divisor(x, capMultiplier float64) float64 {
	if x <= 0 || capMultiplier <= 0 {
		return 1
	}
	ratio := math.Pow(10, s.K*(math.Log10(x)-s.CapLog10))
	d := 1 + ratio*capMultiplier
	if math.IsNaN(d) || d < 1 {
		return 1
	}
	return d
}

// GrowthInput is everything ComputeDerivative reads.
type GrowthInput struct {
	Values        []float64
	Time          float64
	Terms         []Term
	Multipliers   []float64
	Softcap       *Softcap
	CapMultiplier float64
	Coupling      Matrix
}

// ComputeDerivative returns the instantaneous growth of every variable.
// raw_i = mult_i * term_i(x_i, t), softcapped if configured; with a coupling
// matrix the result is raw + M*raw.
func ComputeDerivative(in GrowthInput) []float64 {
	n := len(in.Values)
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		if i >= len(in.Terms) {
			continue
		}
		mult := 1.0
		if i < len(in.Multipliers) {
			mult = in.Multipliers[i]
		}
		r := mult * in.Terms[i].Eval(in.Values[i], in.Time)
		if in.Softcap != nil {
			r /= in.Softcap.Divisor(in.Values[i], in.CapMultiplier)
		}
		raw[i] = r
	}

	if in.Coupling == nil {
		return raw
	}

	coupled := in.Coupling.MulVec(raw)
	out := make([]float64, n)
	for i := range raw {
		out[i] = raw[i]
		if i < len(coupled) {
			out[i] += coupled[i]
		}
	}
	return out
}
