package engine

import (
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/state"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

// PublishedPayload records a publication for audit.
type PublishedPayload struct {
	Reward           rules.Reward `json:"reward"`
	TotalAccumulated float64      `json:"total_accumulated"`
	PLast            float64      `json:"p_last"`
	Publication      int          `json:"publication"` // 1-based publication number
	MilestoneCount   int          `json:"milestone_count"`
}

// PublicationSystem computes the tau reward and tracks p / pLast.
type PublicationSystem struct {
	logger *logger.Logger
	params rules.PublicationParams
	state  rules.PublicationState
}

// NewPublicationSystem creates a publication system with p = pLast = 1.
func NewPublicationSystem(params rules.PublicationParams, log *logger.Logger) *PublicationSystem {
	return &PublicationSystem{
		logger: log,
		params: params,
		state:  rules.NewPublicationState(),
	}
}

// Refresh recomputes the current multiplier p from the state.
func (ps *PublicationSystem) Refresh(vec *state.Vector) {
	ps.state.P = rules.Multiplier(rules.RawTau(vec.Values, ps.params))
}

// Preview returns what publishing now would pay.
func (ps *PublicationSystem) Preview(vec *state.Vector, milestoneBonus float64) rules.Reward {
	return rules.ComputeReward(vec.Values, ps.params, ps.state, milestoneBonus)
}

// Commit folds a reward into the permanent accumulators and clears p.
// pLast only ever moves up.
func (ps *PublicationSystem) Commit(r rules.Reward) {
	ps.state.TotalAccumulated = clampNonNegative(ps.state.TotalAccumulated + r.Total)
	if r.P > ps.state.PLast {
		ps.state.PLast = r.P
	}
	ps.state.P = 1
	ps.state.Count++
}

// State returns a copy of the publication bookkeeping.
func (ps *PublicationSystem) State() rules.PublicationState {
	return ps.state
}

// Restore overwrites the bookkeeping from a save. Permanent fields never move down.
func (ps *PublicationSystem) Restore(s rules.PublicationState) {
	if s.TotalAccumulated > ps.state.TotalAccumulated {
		ps.state.TotalAccumulated = s.TotalAccumulated
	}
	if s.PLast > ps.state.PLast {
		ps.state.PLast = s.PLast
	}
	if s.Count > ps.state.Count {
		ps.state.Count = s.Count
	}
	if s.P >= 1 {
		ps.state.P = s.P
	}
}
