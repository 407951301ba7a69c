package rules

// Modifiers is the permanent set that upgrades and milestones act on.
// Nothing in here is touched by a publication.
type Modifiers struct {
	Multipliers   []float64  `json:"multipliers"`
	Coupling      Matrix     `json:"coupling,omitempty"`
	Decay         DecayState `json:"decay"`
	CapMultiplier float64    `json:"cap_multiplier"`
}

// NewModifiers returns unit multipliers for n variables, the given coupling
// matrix (may be nil) and a fresh decay state.
func NewModifiers(n int, coupling Matrix, decay DecayState) *Modifiers {
	mults := make([]float64, n)
	for i := range mults {
		mults[i] = 1
	}
	return &Modifiers{
		Multipliers:   mults,
		Coupling:      coupling.Clone(),
		Decay:         decay,
		CapMultiplier: 1,
	}
}

// Scale multiplies variable i's multiplier by f. Non-positive factors are ignored.
func (m *Modifiers) Scale(i int, f float64) {
	if i < 0 || i >= len(m.Multipliers) || f <= 0 {
		return
	}
	m.Multipliers[i] *= f
}

// ShrinkCap multiplies the softcap multiplier by f in (0,1).
func (m *Modifiers) ShrinkCap(f float64) bool {
	if f <= 0 || f >= 1 {
		return false
	}
	m.CapMultiplier *= f
	return true
}

// Clone returns a deep copy.
func (m *Modifiers) Clone() *Modifiers {
	return &Modifiers{
		Multipliers:   append([]float64(nil), m.Multipliers...),
		Coupling:      m.Coupling.Clone(),
		Decay:         m.Decay,
		CapMultiplier: m.CapMultiplier,
	}
}
