package engine

import (
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

// DecaySystem computes the proportional loss applied against the state each tick.
type DecaySystem struct {
	logger *logger.Logger
	mods   *rules.Modifiers
}

// NewDecaySystem creates a decay system over the engine's permanent modifiers.
func NewDecaySystem(mods *rules.Modifiers, log *logger.Logger) *DecaySystem {
	return &DecaySystem{logger: log, mods: mods}
}

// Rate returns the decay rate at simulated time t.
func (ds *DecaySystem) Rate(t float64) float64 {
	return rules.ComputeRate(t, ds.mods.Decay)
}
