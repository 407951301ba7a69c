package rules

// DecayState holds the decay constants and the permanent shrink factor.
type DecayState struct {
	BaseRate         float64 `json:"base_rate"`
	GrowthRate       float64 `json:"growth_rate"`
	ShrinkMultiplier float64 `json:"shrink_multiplier"`
}

// NewDecayState returns a decay state with shrinkMultiplier = 1.
func NewDecayState(baseRate, growthRate float64) DecayState {
	return DecayState{BaseRate: baseRate, GrowthRate: growthRate, ShrinkMultiplier: 1}
}

// Shrink multiplies the shrink factor by f. Only factors in (0,1) are accepted,
// so the multiplier never grows back.
func (d *DecayState) Shrink(f float64) bool {
	if f <= 0 || f >= 1 {
		return false
	}
	d.ShrinkMultiplier *= f
	return true
}

// ComputeRate returns baseRate * (1 + growthRate*t) * shrinkMultiplier, never negative.
func ComputeRate(t float64, d DecayState) float64 {
	if t < 0 {
		t = 0
	}
	rate := d.BaseRate * (1 + d.GrowthRate*t) * d.ShrinkMultiplier
	if rate < 0 {
		return 0
	}
	return rate
}
