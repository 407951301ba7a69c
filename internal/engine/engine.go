package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/state"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/upgrade"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/variant"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/host"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

var (
	ErrUnknownUpgrade = errors.New("unknown upgrade")
	ErrUpgradeMaxed   = errors.New("upgrade already applied")
	ErrNoPendingLevel = errors.New("no purchased level to apply")
	ErrMalformedState = errors.New("malformed internal state")
)

// CurrencySymbol is the symbol of the currency the engine creates at init.
const CurrencySymbol = "ρ"

// Options are the engine switches that are not part of a variant.
type Options struct {
	// ResetTimeOnPublish clears simulated time on every publication. When
	// false, time (and so decay growth) carries across publications and only
	// Restart clears it.
	ResetTimeOnPublish bool
}

// TickReport summarises one Tick call.
type TickReport struct {
	Dt         float64   `json:"dt"`
	DecayRate  float64   `json:"decay_rate"`
	Derivative []float64 `json:"derivative"`
	Fired      []int     `json:"fired,omitempty"`
}

// UpgradePayload records an applied upgrade level.
type UpgradePayload struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// Engine is the central orchestrator: one instance owns one theory run.
type Engine struct {
	variant variant.Variant
	host    host.Host
	sink    events.Sink
	logger  *logger.Logger
	opts    Options

	catalog *upgrade.Catalog
	applied map[string]int

	// Sub-systems
	decaySystem       *DecaySystem
	growthSystem      *GrowthSystem
	publicationSystem *PublicationSystem
	milestoneSystem   *MilestoneSystem

	// State
	vec      *state.Vector
	mods     *rules.Modifiers
	currency *host.Currency
}

// NewEngine validates the variant and runs the one-time init: the currency
// is created through the host and every sub-system is wired to the same
// permanent modifiers. sink may be nil.
func NewEngine(v variant.Variant, h host.Host, sink events.Sink, log *logger.Logger, opts Options) (*Engine, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errors.New("engine: nil host")
	}
	if log == nil {
		log = logger.NewNop()
	}
	catalog, err := upgrade.NewCatalog(v.Upgrades)
	if err != nil {
		return nil, err
	}

	mods := rules.NewModifiers(len(v.Vars), v.Coupling, v.Decay())
	e := &Engine{
		variant: v,
		host:    h,
		sink:    sink,
		logger:  log,
		opts:    opts,
		catalog: catalog,
		applied: make(map[string]int),
		vec:     state.NewVector(v.Names(), v.Initial()),
		mods:    mods,
	}
	e.decaySystem = NewDecaySystem(mods, log)
	e.growthSystem = NewGrowthSystem(v.Terms(), v.Softcap, mods, log)
	e.publicationSystem = NewPublicationSystem(v.Publication(), log)
	e.milestoneSystem = NewMilestoneSystem(v.Milestones, mods, e.emit, log)
	e.init()
	return e, nil
}

func (e *Engine) init() {
	e.currency = e.host.CreateCurrency(CurrencySymbol)
	if e.currency == nil {
		e.currency = &host.Currency{Symbol: CurrencySymbol}
	}
	e.publicationSystem.Refresh(e.vec)
	e.logger.Info("theory initialised",
		zap.String("variant", e.variant.Name),
		zap.Int("vars", e.vec.Len()),
		zap.Bool("reset_time_on_publish", e.opts.ResetTimeOnPublish))
}

// Tick advances the run by elapsed*multiplier of simulated time.
// Order is fixed: decay rate, derivative, integration, then milestones.
func (e *Engine) Tick(elapsed, multiplier float64) TickReport {
	dt := elapsed * multiplier
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return TickReport{}
	}

	rate := e.decaySystem.Rate(e.vec.SimulatedTime)
	deriv := e.growthSystem.Derivative(e.vec)
	slotTerms := e.milestoneSystem.Terms(e.vec.Values, e.vec.SimulatedTime)
	currencyRate := rules.CurrencyRate(e.vec.Values, slotTerms, e.currency.Value)

	e.vec.Integrate(deriv, rate, dt)
	e.currency.Value = clampNonNegative(e.currency.Value + currencyRate*dt)
	e.publicationSystem.Refresh(e.vec)

	fired := e.milestoneSystem.Check(e.publicationSystem.State().TotalAccumulated)
	e.milestoneSystem.CheckPenalty(e.currency.Value)

	return TickReport{Dt: dt, DecayRate: rate, Derivative: deriv, Fired: fired}
}

// PreviewReward returns what Publish would pay right now.
func (e *Engine) PreviewReward() rules.Reward {
	return e.publicationSystem.Preview(e.vec, e.milestoneSystem.Bonus())
}

// Publish converts current progress into permanent reward and resets the
// transient state. Multipliers, coupling, decay shrink and milestones survive.
func (e *Engine) Publish() rules.Reward {
	reward := e.PreviewReward()
	e.publicationSystem.Commit(reward)

	if e.opts.ResetTimeOnPublish {
		e.vec.Restart()
	} else {
		e.vec.Reset()
	}
	e.currency.Value = 0
	e.publicationSystem.Refresh(e.vec)

	pub := e.publicationSystem.State()
	e.emit(events.EventTypePublished, PublishedPayload{
		Reward:           reward,
		TotalAccumulated: pub.TotalAccumulated,
		PLast:            pub.PLast,
		Publication:      pub.Count,
		MilestoneCount:   e.milestoneSystem.Tracker().Count,
	})
	e.logger.Info("published",
		zap.Float64("reward", reward.Total),
		zap.Float64("total", pub.TotalAccumulated),
		zap.Float64("p_last", pub.PLast))

	e.milestoneSystem.Check(pub.TotalAccumulated)
	return reward
}

// OnPurchase applies every level of an upgrade the host has sold but the
// engine has not applied yet.
func (e *Engine) OnPurchase(id string) error {
	def, ok := e.catalog.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUpgrade, id)
	}

	level := e.host.LevelOf(id)
	if limit := def.Limit(); limit > 0 && level > limit {
		level = limit
	}
	applied := e.applied[id]
	if applied >= level {
		if !def.Repeatable && applied > 0 {
			return fmt.Errorf("%w: %s", ErrUpgradeMaxed, id)
		}
		return fmt.Errorf("%w: %s", ErrNoPendingLevel, id)
	}

	for applied < level {
		if err := def.Effect.Apply(e.mods); err != nil {
			return fmt.Errorf("apply %s: %w", id, err)
		}
		applied++
		e.applied[id] = applied
		e.emit(events.EventTypeUpgradeApplied, UpgradePayload{ID: id, Level: applied})
	}
	e.logger.Debug("upgrade applied", zap.String("id", id), zap.Int("level", applied))
	return nil
}

// SyncUpgrades applies any levels the host reports beyond what was applied,
// e.g. after loading host levels from a save.
func (e *Engine) SyncUpgrades() {
	for _, def := range e.catalog.All() {
		level := e.host.LevelOf(def.ID)
		if limit := def.Limit(); limit > 0 && level > limit {
			level = limit
		}
		if level > e.applied[def.ID] {
			if err := e.OnPurchase(def.ID); err != nil {
				e.logger.Warn("upgrade sync failed", zap.String("id", def.ID), zap.Error(err))
			}
		}
	}
}

// Restart is a hard restart of the run: state, time and currency are
// cleared. Permanent progress is kept.
func (e *Engine) Restart() {
	e.vec.Restart()
	e.currency.Value = 0
	e.publicationSystem.Refresh(e.vec)
	e.emit(events.EventTypeRestart, nil)
}

// UpgradeInfo is the display row of one upgrade.
type UpgradeInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Level       int     `json:"level"`
	Applied     int     `json:"applied"`
	NextCost    float64 `json:"next_cost"`
	Maxed       bool    `json:"maxed"`
}

// Upgrades lists every upgrade with its host level and next cost.
func (e *Engine) Upgrades() []UpgradeInfo {
	defs := e.catalog.All()
	out := make([]UpgradeInfo, 0, len(defs))
	for _, d := range defs {
		level := e.host.LevelOf(d.ID)
		limit := d.Limit()
		out = append(out, UpgradeInfo{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Level:       level,
			Applied:     e.applied[d.ID],
			NextCost:    e.host.CostOf(d.ID, level),
			Maxed:       limit > 0 && level >= limit,
		})
	}
	return out
}

// Variant returns the variant the engine runs.
func (e *Engine) Variant() variant.Variant {
	return e.variant
}

// State returns a copy of the state vector.
func (e *Engine) State() *state.Vector {
	return e.vec.Clone()
}

// Modifiers returns a copy of the permanent modifiers.
func (e *Engine) Modifiers() *rules.Modifiers {
	return e.mods.Clone()
}

// Publication returns the publication bookkeeping.
func (e *Engine) Publication() rules.PublicationState {
	return e.publicationSystem.State()
}

// MilestoneCount returns how many milestones have fired.
func (e *Engine) MilestoneCount() int {
	return e.milestoneSystem.Tracker().Count
}

// Currency returns the current currency value.
func (e *Engine) Currency() float64 {
	return e.currency.Value
}

func (e *Engine) emit(t events.EventType, payload interface{}) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(events.GameEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      t,
		ActorID:   "ENGINE",
		Payload:   payload,
		SimTime:   e.vec.SimulatedTime,
	})
}

func clampNonNegative(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > math.MaxFloat64:
		return math.MaxFloat64
	}
	return x
}
