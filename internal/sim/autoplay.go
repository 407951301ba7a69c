// Package sim plays a theory headlessly: it ticks a session at a fixed step,
// buys the cheapest affordable upgrade and publishes when the multiplier has
// improved enough. Used by the simulate command and the pacing harness.
package sim

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/engine"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

// Strategy controls the automated player.
type Strategy struct {
	// PublishRatio publishes once p >= pLast*PublishRatio and the reward is positive.
	PublishRatio float64
	// MaxBuysPerTick caps purchases per tick. Zero disables buying.
	MaxBuysPerTick int
	// MinPublishGap is the least simulated time between publications.
	MinPublishGap float64
}

// DefaultStrategy is a greedy buyer that publishes at a 1.5x multiplier gain.
func DefaultStrategy() Strategy {
	return Strategy{PublishRatio: 1.5, MaxBuysPerTick: 4, MinPublishGap: 60}
}

// Summary is the outcome of a run.
type Summary struct {
	Variant          string  `json:"variant"`
	Ticks            int     `json:"ticks"`
	SimTime          float64 `json:"sim_time"`
	Publications     int     `json:"publications"`
	Purchases        int     `json:"purchases"`
	Milestones       int     `json:"milestones"`
	TotalAccumulated float64 `json:"total_accumulated"`
	PLast            float64 `json:"p_last"`
	Currency         float64 `json:"currency"`
	InternalState    string  `json:"internal_state"`
}

// Autoplayer drives one session.
type Autoplayer struct {
	session  *engine.Session
	strategy Strategy
	logger   *logger.Logger

	lastPublish float64
	purchases   int
}

// NewAutoplayer creates a player for session.
func NewAutoplayer(session *engine.Session, strategy Strategy, log *logger.Logger) *Autoplayer {
	if log == nil {
		log = logger.NewNop()
	}
	if strategy.PublishRatio < 1 {
		strategy.PublishRatio = 1
	}
	return &Autoplayer{session: session, strategy: strategy, logger: log}
}

// Step runs one tick of dt simulated seconds followed by the buy and publish
// decisions. It reports whether a publication happened.
func (a *Autoplayer) Step(dt float64) bool {
	a.session.Tick(dt, 1)
	a.buy()
	return a.maybePublish()
}

// Run performs ticks steps, stopping early if ctx is cancelled.
func (a *Autoplayer) Run(ctx context.Context, ticks int, dt float64) (Summary, error) {
	if ticks < 0 || dt <= 0 || math.IsNaN(dt) {
		return Summary{}, errors.New("sim: ticks must be >= 0 and dt > 0")
	}
	var err error
	done := 0
	for ; done < ticks; done++ {
		if err = ctx.Err(); err != nil {
			break
		}
		a.Step(dt)
	}
	return a.Summary(done), err
}

func (a *Autoplayer) buy() {
	for i := 0; i < a.strategy.MaxBuysPerTick; i++ {
		st := a.session.Status()
		best := ""
		bestCost := math.Inf(1)
		for _, u := range st.Upgrades {
			if u.Maxed || u.NextCost > st.Currency || u.NextCost >= bestCost {
				continue
			}
			best, bestCost = u.ID, u.NextCost
		}
		if best == "" {
			return
		}
		if _, err := a.session.Purchase(best); err != nil {
			a.logger.Debug("autoplay purchase failed", zap.String("id", best), zap.Error(err))
			return
		}
		a.purchases++
	}
}

func (a *Autoplayer) maybePublish() bool {
	st := a.session.Status()
	if st.SimTime-a.lastPublish < a.strategy.MinPublishGap && st.Publication.Count > 0 {
		return false
	}
	if st.Preview.Total <= 0 || st.Preview.P < st.Publication.PLast*a.strategy.PublishRatio {
		return false
	}
	r := a.session.Publish()
	a.lastPublish = a.session.Status().SimTime
	a.logger.Debug("autoplay published", zap.Float64("reward", r.Total), zap.Float64("p", r.P))
	return true
}

// Summary reports the session's progress after ticks steps.
func (a *Autoplayer) Summary(ticks int) Summary {
	st := a.session.Status()
	view := a.session.View()
	return Summary{
		Variant:          view.Variant,
		Ticks:            ticks,
		SimTime:          st.SimTime,
		Publications:     st.Publication.Count,
		Purchases:        a.purchases,
		Milestones:       st.MilestoneCount,
		TotalAccumulated: st.Publication.TotalAccumulated,
		PLast:            st.Publication.PLast,
		Currency:         st.Currency,
		InternalState:    view.InternalState,
	}
}
