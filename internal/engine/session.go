package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/host"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/metrics"
)

// Session serialises access to one Engine and its Ledger so the ticker and
// network handlers can share them. The Engine itself stays single-threaded.
type Session struct {
	mu      sync.Mutex
	engine  *Engine
	ledger  *host.Ledger
	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewSession wraps an engine built on ledger. m may be nil.
func NewSession(e *Engine, ledger *host.Ledger, m *metrics.Collector, log *logger.Logger) *Session {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Session{engine: e, ledger: ledger, metrics: m, logger: log}
}

// Tick advances the engine and records tick metrics.
func (s *Session) Tick(elapsed, multiplier float64) TickReport {
	start := time.Now()
	s.mu.Lock()
	report := s.engine.Tick(elapsed, multiplier)
	simTime := s.engine.vec.SimulatedTime
	s.mu.Unlock()

	s.metrics.RecordTick(time.Since(start), simTime)
	s.metrics.RecordMilestones(len(report.Fired))
	return report
}

// Publish publishes and records the reward.
func (s *Session) Publish() rules.Reward {
	s.mu.Lock()
	before := s.engine.MilestoneCount()
	r := s.engine.Publish()
	fired := s.engine.MilestoneCount() - before
	s.mu.Unlock()

	s.metrics.RecordPublish(r.Total)
	s.metrics.RecordMilestones(fired)
	return r
}

// Purchase buys the next level from the ledger and applies it to the engine.
func (s *Session) Purchase(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	level, err := s.ledger.Buy(id)
	if err == nil {
		err = s.engine.OnPurchase(id)
	}
	s.metrics.RecordPurchase(err)
	if err != nil {
		s.logger.Debug("purchase rejected", zap.String("id", id), zap.Error(err))
	}
	return level, err
}

// Restart hard-restarts the run.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Restart()
}

// SetInternalState applies a host state string.
func (s *Session) SetInternalState(str string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetInternalState(str)
}

// Do runs fn with exclusive access to the engine and ledger.
func (s *Session) Do(fn func(e *Engine, l *host.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine, s.ledger)
}

// View is a read-only summary of a run for clients.
type View struct {
	Variant           string                 `json:"variant"`
	InternalState     string                 `json:"internal_state"`
	Names             []string               `json:"names"`
	Values            []float64              `json:"values"`
	Currency          float64                `json:"currency"`
	Tau               float64                `json:"tau"`
	Graph2D           float64                `json:"graph_2d"`
	Graph3D           [3]float64             `json:"graph_3d"`
	Equation          string                 `json:"equation"`
	Publication       rules.PublicationState `json:"publication"`
	PendingReward     rules.Reward           `json:"pending_reward"`
	PublicationFactor float64                `json:"publication_factor"`
	MilestoneCount    int                    `json:"milestone_count"`
	DecayRate         float64                `json:"decay_rate"`
	Upgrades          []UpgradeInfo          `json:"upgrades"`
}

// View captures the current run for display.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.engine
	tau := e.Tau()
	return View{
		Variant:           e.variant.Name,
		InternalState:     e.InternalState(),
		Names:             append([]string(nil), e.vec.Names...),
		Values:            append([]float64(nil), e.vec.Values...),
		Currency:          e.currency.Value,
		Tau:               tau,
		Graph2D:           e.Graph2DValue(),
		Graph3D:           e.Graph3DPoint(),
		Equation:          e.EquationOverlay(),
		Publication:       e.Publication(),
		PendingReward:     e.PreviewReward(),
		PublicationFactor: e.PublicationMultiplier(tau),
		MilestoneCount:    e.MilestoneCount(),
		DecayRate:         e.decaySystem.Rate(e.vec.SimulatedTime),
		Upgrades:          e.Upgrades(),
	}
}

// Status is the small subset of View an automated player needs.
type Status struct {
	SimTime        float64                `json:"sim_time"`
	Currency       float64                `json:"currency"`
	Publication    rules.PublicationState `json:"publication"`
	Preview        rules.Reward           `json:"preview"`
	MilestoneCount int                    `json:"milestone_count"`
	Upgrades       []UpgradeInfo          `json:"upgrades"`
}

// Status captures the current run without rendering equations or graphs.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.engine
	return Status{
		SimTime:        e.vec.SimulatedTime,
		Currency:       e.currency.Value,
		Publication:    e.Publication(),
		Preview:        e.PreviewReward(),
		MilestoneCount: e.MilestoneCount(),
		Upgrades:       e.Upgrades(),
	}
}

// InternalState returns the host state string.
func (s *Session) InternalState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.InternalState()
}
