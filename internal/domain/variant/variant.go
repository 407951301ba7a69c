// Package variant defines the fixed formula tables of each theory variant.
// This package is PURE and must NOT import any infrastructure packages.
package variant

import (
	"errors"
	"fmt"
	"math"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/milestone"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/upgrade"
)

// Shared pacing constants.
const (
	DefaultBaseDecay   = 0.0002
	DefaultDecayGrowth = 1e-7
)

// ErrUnknownVariant is returned by Lookup for names outside the registry.
var ErrUnknownVariant = errors.New("unknown variant")

// Var is one row of the formula table.
type Var struct {
	Name      string     `json:"name"`
	Initial   float64    `json:"initial"`
	Term      rules.Term `json:"term"`
	Threshold float64    `json:"threshold"` // publication threshold
	Exponent  float64    `json:"exponent"`  // publication weight
}

// Variant is a complete, fixed theory definition.
type Variant struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Vars        []Var                `json:"vars"`
	Coupling    rules.Matrix         `json:"coupling,omitempty"`
	Softcap     *rules.Softcap       `json:"softcap,omitempty"`
	BaseDecay   float64              `json:"base_decay"`
	DecayGrowth float64              `json:"decay_growth"`
	GateOnDelta bool                 `json:"gate_on_delta"`
	Milestones  milestone.Config     `json:"milestones"`
	Upgrades    []upgrade.Definition `json:"upgrades"`
}

// Names returns the variable names in order.
func (v Variant) Names() []string {
	out := make([]string, len(v.Vars))
	for i, x := range v.Vars {
		out[i] = x.Name
	}
	return out
}

// Initial returns the starting values in order.
func (v Variant) Initial() []float64 {
	out := make([]float64, len(v.Vars))
	for i, x := range v.Vars {
		out[i] = x.Initial
	}
	return out
}

// Terms returns the growth formula per variable.
func (v Variant) Terms() []rules.Term {
	out := make([]rules.Term, len(v.Vars))
	for i, x := range v.Vars {
		out[i] = x.Term
	}
	return out
}

// Publication returns the variant's publication constants.
func (v Variant) Publication() rules.PublicationParams {
	p := rules.PublicationParams{
		Thresholds:  make([]float64, len(v.Vars)),
		Exponents:   make([]float64, len(v.Vars)),
		GateOnDelta: v.GateOnDelta,
	}
	for i, x := range v.Vars {
		p.Thresholds[i] = x.Threshold
		p.Exponents[i] = x.Exponent
	}
	return p
}

// Decay returns a fresh decay state.
func (v Variant) Decay() rules.DecayState {
	return rules.NewDecayState(v.BaseDecay, v.DecayGrowth)
}

// Validate checks the structural constraints of a variant.
func (v Variant) Validate() error {
	n := len(v.Vars)
	if n < 2 || n > 5 {
		return fmt.Errorf("variant %s: %d variables, want 2..5", v.Name, n)
	}
	for _, x := range v.Vars {
		if x.Initial < 0 || math.IsNaN(x.Initial) {
			return fmt.Errorf("variant %s: variable %s has negative initial value", v.Name, x.Name)
		}
		if x.Term.Kind == rules.GrowthPower && (x.Term.K <= 0 || x.Term.K > 1) {
			return fmt.Errorf("variant %s: variable %s power exponent %g outside (0,1]", v.Name, x.Name, x.Term.K)
		}
	}
	if v.Coupling != nil {
		if len(v.Coupling) != n {
			return fmt.Errorf("variant %s: coupling matrix has %d rows, want %d", v.Name, len(v.Coupling), n)
		}
		for i, row := range v.Coupling {
			if len(row) != n {
				return fmt.Errorf("variant %s: coupling row %d has %d columns, want %d", v.Name, i, len(row), n)
			}
		}
	}
	if v.BaseDecay < 0 || v.DecayGrowth < 0 {
		return fmt.Errorf("variant %s: negative decay constants", v.Name)
	}
	if v.Milestones.Step <= 0 {
		return fmt.Errorf("variant %s: milestone step must be positive", v.Name)
	}
	if f := v.Milestones.Factor; f <= 0 || f >= 1 {
		return fmt.Errorf("variant %s: milestone factor %g outside (0,1)", v.Name, f)
	}
	if _, err := upgrade.NewCatalog(v.Upgrades); err != nil {
		return fmt.Errorf("variant %s: %w", v.Name, err)
	}
	return nil
}

// Lookup returns a copy of a registered variant.
func Lookup(name string) (Variant, error) {
	build, ok := Registry[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return build(), nil
}
