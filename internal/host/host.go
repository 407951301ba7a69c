// Package host is the theory's view of the surrounding game: currency objects,
// upgrade levels and their cost curves. Ledger is the in-memory host used by
// the server and the simulator.
package host

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/upgrade"
)

var (
	ErrUnknownUpgrade    = errors.New("unknown upgrade")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMaxLevel          = errors.New("upgrade at max level")
)

// Host is the contract the engine consumes.
type Host interface {
	CreateCurrency(symbol string) *Currency
	LevelOf(id string) int
	CostOf(id string, level int) float64
}

// Currency is a host-owned number the theory writes into every tick.
type Currency struct {
	Symbol string
	Value  float64
}

// ExponentialCost returns base * ratio^level.
func ExponentialCost(c upgrade.CostCurve, level int) float64 {
	if level < 0 {
		level = 0
	}
	return c.Base * math.Pow(c.Ratio, float64(level))
}

type entry struct {
	def   upgrade.Definition
	level int
}

// Ledger tracks levels and charges the currency for purchases.
type Ledger struct {
	mu       sync.Mutex
	currency *Currency
	entries  map[string]*entry
}

// NewLedger registers every upgrade at level 0.
func NewLedger(defs []upgrade.Definition) *Ledger {
	l := &Ledger{entries: make(map[string]*entry, len(defs))}
	for _, d := range defs {
		l.entries[d.ID] = &entry{def: d}
	}
	return l
}

// CreateCurrency creates the ledger's currency. Calling it again returns the same object.
func (l *Ledger) CreateCurrency(symbol string) *Currency {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currency == nil {
		l.currency = &Currency{Symbol: symbol}
	}
	return l.currency
}

// LevelOf returns the purchased level of an upgrade, 0 if unknown.
func (l *Ledger) LevelOf(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		return e.level
	}
	return 0
}

// CostOf returns the price of buying the given level of an upgrade.
func (l *Ledger) CostOf(id string, level int) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return math.Inf(1)
	}
	return ExponentialCost(e.def.Cost, level)
}

// Buy charges the currency for the next level and bumps it.
// The caller forwards the purchase to the engine afterwards.
func (l *Ledger) Buy(id string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUpgrade, id)
	}
	if limit := e.def.Limit(); limit > 0 && e.level >= limit {
		return e.level, fmt.Errorf("%w: %s", ErrMaxLevel, id)
	}
	cost := ExponentialCost(e.def.Cost, e.level)
	if l.currency == nil || l.currency.Value < cost {
		return e.level, fmt.Errorf("%w: %s costs %g", ErrInsufficientFunds, id, cost)
	}
	l.currency.Value -= cost
	e.level++
	return e.level, nil
}

// Levels returns a copy of every level keyed by upgrade id.
func (l *Ledger) Levels() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.entries))
	for id, e := range l.entries {
		out[id] = e.level
	}
	return out
}

// SetLevel overwrites a level, e.g. when loading a save.
func (l *Ledger) SetLevel(id string, level int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok && level >= 0 {
		e.level = level
	}
}

// IDs returns the registered upgrade ids, sorted.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var _ Host = (*Ledger)(nil)
