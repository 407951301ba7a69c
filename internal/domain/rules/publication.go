package rules

import "math"

// PublicationExponent turns raw tau into the publication multiplier p.
const PublicationExponent = 0.18

// PublicationState is the prestige bookkeeping. P is transient; PLast and
// TotalAccumulated are permanent.
type PublicationState struct {
	P                float64 `json:"p"`
	PLast            float64 `json:"p_last"`
	TotalAccumulated float64 `json:"total_accumulated"`
	Count            int     `json:"count"`
}

// NewPublicationState returns p = pLast = 1 and nothing accumulated.
func NewPublicationState() PublicationState {
	return PublicationState{P: 1, PLast: 1}
}

// PublicationParams are the fixed per-variant publication constants.
type PublicationParams struct {
	Thresholds  []float64
	Exponents   []float64
	GateOnDelta bool
}

// Reward is the breakdown of one publication.
type Reward struct {
	RawTau         float64 `json:"raw_tau"`
	P              float64 `json:"p"`
	Delta          float64 `json:"delta"`
	Core           float64 `json:"core"`
	MilestoneBonus float64 `json:"milestone_bonus"`
	Total          float64 `json:"total"`
}

// RawTau returns Π (max(x_i - threshold_i, 0) + 1)^exponent_i - 1, never negative.
func RawTau(values []float64, params PublicationParams) float64 {
	logProduct := 0.0
	for i, x := range values {
		threshold, exponent := 0.0, 1.0
		if i < len(params.Thresholds) {
			threshold = params.Thresholds[i]
		}
		if i < len(params.Exponents) {
			exponent = params.Exponents[i]
		}
		eff := math.Max(x-threshold, 0)
		logProduct += exponent * math.Log1p(eff)
	}
	return clampFinite(math.Expm1(logProduct))
}

// Multiplier returns p = (rawTau + 1)^0.18.
func Multiplier(rawTau float64) float64 {
	return math.Pow(rawTau+1, PublicationExponent)
}

// ComputeReward evaluates the publication formula in its fixed order:
// thresholds, weighted product, p and its delta against pLast, then the
// unconditional milestone bonus.
func ComputeReward(values []float64, params PublicationParams, pub PublicationState, milestoneBonus float64) Reward {
	raw := RawTau(values, params)
	p := Multiplier(raw)
	delta := math.Max(p-pub.PLast, 0)

	core := raw
	if params.GateOnDelta {
		core = clampFinite(raw * delta)
	}
	bonus := math.Max(milestoneBonus, 0)

	return Reward{
		RawTau:         raw,
		P:              p,
		Delta:          delta,
		Core:           core,
		MilestoneBonus: bonus,
		Total:          clampFinite(core + bonus),
	}
}

// PublicationMultiplier is the host-facing multiplier 1 + log10(1 + tau).
func PublicationMultiplier(tau float64) float64 {
	return 1 + math.Log10(1+math.Max(tau, 0))
}

// PublicationMultiplierFormula renders PublicationMultiplier for a symbol.
func PublicationMultiplierFormula(symbol string) string {
	return "1 + log₁₀(1 + " + symbol + ")"
}

func clampFinite(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > math.MaxFloat64:
		return math.MaxFloat64
	}
	return x
}
