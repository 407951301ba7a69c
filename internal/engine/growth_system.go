package engine

import (
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/state"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

// GrowthSystem evaluates the variant's formula table against the current state.
type GrowthSystem struct {
	logger  *logger.Logger
	terms   []rules.Term
	softcap *rules.Softcap
	mods    *rules.Modifiers
}

// NewGrowthSystem creates a growth system for a fixed formula table.
func NewGrowthSystem(terms []rules.Term, softcap *rules.Softcap, mods *rules.Modifiers, log *logger.Logger) *GrowthSystem {
	return &GrowthSystem{
		logger:  log,
		terms:   terms,
		softcap: softcap,
		mods:    mods,
	}
}

// Derivative returns the growth of every variable for the current state.
func (gs *GrowthSystem) Derivative(vec *state.Vector) []float64 {
	return rules.ComputeDerivative(rules.GrowthInput{
		Values:        vec.Values,
		Time:          vec.SimulatedTime,
		Terms:         gs.terms,
		Multipliers:   gs.mods.Multipliers,
		Softcap:       gs.softcap,
		CapMultiplier: gs.mods.CapMultiplier,
		Coupling:      gs.mods.Coupling,
	})
}
