// Package upgrade defines the purchasable effects that mutate the theory's
// permanent modifiers.
// This package is PURE and must NOT import any infrastructure packages.
package upgrade

import (
	"fmt"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
)

// EffectKind tags what an upgrade does when applied.
type EffectKind string

const (
	EffectScale       EffectKind = "scale"        // multiplier[Var] *= Factor
	EffectShrinkDecay EffectKind = "shrink_decay" // shrinkMultiplier *= Factor
	EffectCouple      EffectKind = "couple"       // coupling[Row][Col] += Delta
)

// Effect is a single atomic set of field mutations.
type Effect struct {
	Kind   EffectKind `json:"kind" yaml:"kind"`
	Var    int        `json:"var,omitempty" yaml:"var"`
	Factor float64    `json:"factor,omitempty" yaml:"factor"`
	Row    int        `json:"row,omitempty" yaml:"row"`
	Col    int        `json:"col,omitempty" yaml:"col"`
	Delta  float64    `json:"delta,omitempty" yaml:"delta"`
}

// Apply mutates mods. It returns an error only for an effect that can never
// apply (unknown kind); out-of-range targets are ignored by the modifiers.
func (e Effect) Apply(mods *rules.Modifiers) error {
	switch e.Kind {
	case EffectScale:
		mods.Scale(e.Var, e.Factor)
	case EffectShrinkDecay:
		mods.Decay.Shrink(e.Factor)
	case EffectCouple:
		mods.Coupling.Add(e.Row, e.Col, e.Delta)
	default:
		return fmt.Errorf("unknown effect kind %q", e.Kind)
	}
	return nil
}

// CostCurve is the host's exponential cost: Base * Ratio^level.
type CostCurve struct {
	Base  float64 `json:"base" yaml:"base"`
	Ratio float64 `json:"ratio" yaml:"ratio"`
}

// Definition describes one upgrade of a variant.
type Definition struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Repeatable  bool      `json:"repeatable" yaml:"repeatable"`
	MaxLevel    int       `json:"max_level" yaml:"max_level"` // 0 = unlimited
	Cost        CostCurve `json:"cost" yaml:"cost"`
	Effect      Effect    `json:"effect" yaml:"effect"`
}

// Limit returns the highest level the upgrade can reach, 0 meaning unlimited.
func (d Definition) Limit() int {
	if !d.Repeatable {
		return 1
	}
	return d.MaxLevel
}

// Catalog is an ordered upgrade list with lookup by id.
type Catalog struct {
	defs  []Definition
	index map[string]int
}

// NewCatalog indexes defs. Duplicate ids are rejected.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  append([]Definition(nil), defs...),
		index: make(map[string]int, len(defs)),
	}
	for i, d := range c.defs {
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate upgrade id %q", d.ID)
		}
		c.index[d.ID] = i
	}
	return c, nil
}

// Get looks up an upgrade by id.
func (c *Catalog) Get(id string) (Definition, bool) {
	i, ok := c.index[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []Definition {
	return c.defs
}
