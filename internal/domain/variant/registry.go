package variant

import (
	"sort"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/milestone"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/upgrade"
)

// Built-in variant names.
const (
	Calculus = "calculus"
	Matrix   = "matrix"
	Softcap  = "softcap"
)

// Registry contains all built-in variants. Each entry builds a fresh copy so
// callers may mutate what they get.
var Registry = map[string]func() Variant{
	Calculus: calculusVariant,
	Matrix:   matrixVariant,
	Softcap:  softcapVariant,
}

// Names returns the registered variant names, sorted.
func Names() []string {
	out := make([]string, 0, len(Registry))
	for name := range Registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func scaleUpgrade(id, name string, v int, base, ratio float64) upgrade.Definition {
	return upgrade.Definition{
		ID:          id,
		Name:        name,
		Description: "Multiplies " + name + " growth by 1.5",
		Repeatable:  true,
		Cost:        upgrade.CostCurve{Base: base, Ratio: ratio},
		Effect:      upgrade.Effect{Kind: upgrade.EffectScale, Var: v, Factor: 1.5},
	}
}

func decayUpgrade() upgrade.Definition {
	return upgrade.Definition{
		ID:          "decay",
		Name:        "Half-life",
		Description: "Shrinks the decay rate by 15%",
		Repeatable:  true,
		MaxLevel:    10,
		Cost:        upgrade.CostCurve{Base: 1e4, Ratio: 10},
		Effect:      upgrade.Effect{Kind: upgrade.EffectShrinkDecay, Factor: 0.85},
	}
}

// calculusVariant runs five independent channels c1..c5 over the log, root,
// power and linear-time growth kinds, each priced on a steeper cost curve.
func calculusVariant() Variant {
	return Variant{
		Name:        Calculus,
		Description: "Five independent channels mixing log, root, power and time growth.",
		Vars: []Var{
			{Name: "c1", Initial: 1, Term: rules.Term{Kind: rules.GrowthLog}, Threshold: 0, Exponent: 0.2},
			{Name: "c2", Initial: 1, Term: rules.Term{Kind: rules.GrowthSqrt}, Threshold: 10, Exponent: 0.3},
			{Name: "c3", Initial: 1, Term: rules.Term{Kind: rules.GrowthPower, K: 0.5}, Threshold: 100, Exponent: 0.4},
			{Name: "c4", Initial: 1, Term: rules.Term{Kind: rules.GrowthLinearTime, K: 0.001}, Threshold: 1e3, Exponent: 0.5},
			{Name: "c5", Initial: 1, Term: rules.Term{Kind: rules.GrowthPower, K: 0.8}, Threshold: 1e4, Exponent: 0.6},
		},
		BaseDecay:   DefaultBaseDecay,
		DecayGrowth: DefaultDecayGrowth,
		GateOnDelta: true,
		Milestones:  milestone.DefaultConfig(),
		Upgrades: []upgrade.Definition{
			scaleUpgrade("c1", "c1", 0, 10, 1.4),
			scaleUpgrade("c2", "c2", 1, 20, 1.5),
			scaleUpgrade("c3", "c3", 2, 50, 1.7),
			scaleUpgrade("c4", "c4", 3, 100, 1.8),
			scaleUpgrade("c5", "c5", 4, 500, 2.0),
			decayUpgrade(),
		},
	}
}

func coupleUpgrade(id, name string, row, col int) upgrade.Definition {
	return upgrade.Definition{
		ID:          id,
		Name:        name,
		Description: "Strengthens cross-influence " + name,
		Repeatable:  true,
		MaxLevel:    5,
		Cost:        upgrade.CostCurve{Base: 1e3, Ratio: 4},
		Effect:      upgrade.Effect{Kind: upgrade.EffectCouple, Row: row, Col: col, Delta: 0.02},
	}
}

// matrixVariant couples three variables through a near-identity matrix.
func matrixVariant() Variant {
	return Variant{
		Name:        Matrix,
		Description: "Three variables coupled through a linear transform.",
		Vars: []Var{
			{Name: "x", Initial: 1, Term: rules.Term{Kind: rules.GrowthLog}, Threshold: 0, Exponent: 0.25},
			{Name: "y", Initial: 1, Term: rules.Term{Kind: rules.GrowthSqrt}, Threshold: 50, Exponent: 0.35},
			{Name: "z", Initial: 1, Term: rules.Term{Kind: rules.GrowthPower, K: 0.6}, Threshold: 500, Exponent: 0.5},
		},
		Coupling: rules.Matrix{
			{1, 0.01, 0},
			{0, 1, 0.01},
			{0.01, 0, 1},
		},
		BaseDecay:   DefaultBaseDecay,
		DecayGrowth: DefaultDecayGrowth,
		GateOnDelta: false,
		Milestones:  milestone.DefaultConfig(),
		Upgrades: []upgrade.Definition{
			scaleUpgrade("x", "x", 0, 10, 1.5),
			scaleUpgrade("y", "y", 1, 40, 1.7),
			scaleUpgrade("z", "z", 2, 200, 2.0),
			coupleUpgrade("m_xy", "x←y", 0, 1),
			coupleUpgrade("m_yz", "y←z", 1, 2),
			coupleUpgrade("m_zx", "z←x", 2, 0),
			decayUpgrade(),
		},
	}
}

// softcapVariant bounds two fast-growing variables with a softcap whose
// strength milestones wear down.
func softcapVariant() Variant {
	ms := milestone.DefaultConfig()
	ms.Target = milestone.TargetSoftcap
	return Variant{
		Name:        Softcap,
		Description: "Two variables held back by a softcap.",
		Vars: []Var{
			{Name: "a", Initial: 0, Term: rules.Term{Kind: rules.GrowthPower, K: 0.9}, Threshold: 0, Exponent: 0.3},
			{Name: "b", Initial: 0, Term: rules.Term{Kind: rules.GrowthLog}, Threshold: 100, Exponent: 0.6},
		},
		Softcap:     &rules.Softcap{CapLog10: 40, K: 0.5},
		BaseDecay:   DefaultBaseDecay,
		DecayGrowth: DefaultDecayGrowth,
		GateOnDelta: true,
		Milestones:  ms,
		Upgrades: []upgrade.Definition{
			scaleUpgrade("a", "a", 0, 15, 1.6),
			scaleUpgrade("b", "b", 1, 80, 1.9),
			decayUpgrade(),
		},
	}
}
