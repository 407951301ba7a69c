// Package test - pacing.go
// Pacing harness: plays every variant headlessly and checks that the
// progression invariants hold at every step.
package test

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/variant"
	"github.com/MRamiBalles/CalculusMatrix/internal/engine"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/host"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
	"github.com/MRamiBalles/CalculusMatrix/internal/sim"
)

// PacingTest runs one scenario per variant.
type PacingTest struct {
	Ticks   int
	Dt      float64
	logger  *logger.Logger
	results []TestResult
}

// TestResult captures the outcome of each scenario.
type TestResult struct {
	ScenarioName string
	Summary      sim.Summary
	Passed       bool
	Reason       string
}

// NewPacingTest creates the harness.
func NewPacingTest(ticks int, dt float64, log *logger.Logger) *PacingTest {
	if log == nil {
		log = logger.NewNop()
	}
	return &PacingTest{Ticks: ticks, Dt: dt, logger: log}
}

type run struct {
	session  *engine.Session
	engine   *engine.Engine
	eventLog *events.EventLog
}

func newRun(name string, opts engine.Options, log *logger.Logger) (*run, error) {
	v, err := variant.Lookup(name)
	if err != nil {
		return nil, err
	}
	el := events.NewEventLog(nil)
	ledger := host.NewLedger(v.Upgrades)
	e, err := engine.NewEngine(v, ledger, el, log, opts)
	if err != nil {
		return nil, err
	}
	return &run{session: engine.NewSession(e, ledger, nil, log), engine: e, eventLog: el}, nil
}

// RunVariant plays one variant and checks the invariants after every step.
func (t *PacingTest) RunVariant(ctx context.Context, name string, opts engine.Options) TestResult {
	result := TestResult{ScenarioName: fmt.Sprintf("%s (reset_time_on_publish=%v)", name, opts.ResetTimeOnPublish)}

	r, err := newRun(name, opts, t.logger)
	if err != nil {
		result.Reason = err.Error()
		t.results = append(t.results, result)
		return result
	}
	player := sim.NewAutoplayer(r.session, sim.DefaultStrategy(), t.logger)

	prev := r.session.Status()
	for i := 0; i < t.Ticks; i++ {
		if ctx.Err() != nil {
			result.Reason = ctx.Err().Error()
			break
		}
		player.Step(t.Dt)
		cur := r.session.Status()
		if reason := checkStep(prev, cur, r.engine.State().Values); reason != "" {
			result.Reason = fmt.Sprintf("tick %d: %s", i+1, reason)
			break
		}
		prev = cur
	}

	if result.Reason == "" {
		result.Reason = checkEnd(r)
	}
	result.Summary = player.Summary(t.Ticks)
	result.Passed = result.Reason == ""
	if result.Passed {
		result.Reason = "all invariants held"
	}
	t.results = append(t.results, result)
	return result
}

func checkStep(prev, cur engine.Status, values []float64) string {
	switch {
	case cur.Currency < 0 || math.IsNaN(cur.Currency):
		return fmt.Sprintf("currency went invalid: %g", cur.Currency)
	case cur.Publication.TotalAccumulated < prev.Publication.TotalAccumulated:
		return "total accumulated decreased"
	case cur.Publication.PLast < prev.Publication.PLast:
		return "pLast decreased"
	case cur.MilestoneCount < prev.MilestoneCount:
		return "milestone count decreased"
	}
	for i, x := range values {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Sprintf("variable %d out of range: %g", i, x)
		}
	}
	return ""
}

func checkEnd(r *run) string {
	fired := len(r.eventLog.GetByType(events.EventTypeMilestoneFired))
	if fired != r.engine.MilestoneCount() {
		return fmt.Sprintf("%d milestone events for count %d", fired, r.engine.MilestoneCount())
	}
	published := len(r.eventLog.GetByType(events.EventTypePublished))
	if published != r.engine.Publication().Count {
		return fmt.Sprintf("%d publish events for count %d", published, r.engine.Publication().Count)
	}

	state := r.engine.InternalState()
	clone, err := newRun(r.engine.Variant().Name, engine.Options{}, logger.NewNop())
	if err != nil {
		return err.Error()
	}
	if err := clone.engine.SetInternalState(state); err != nil {
		return "internal state rejected: " + err.Error()
	}
	if got := clone.engine.InternalState(); got != state {
		return fmt.Sprintf("internal state round trip: %q != %q", got, state)
	}
	return ""
}

// RunAll runs every registered variant with both time-reset policies.
func (t *PacingTest) RunAll(ctx context.Context) []TestResult {
	for _, name := range variant.Names() {
		for _, reset := range []bool{false, true} {
			res := t.RunVariant(ctx, name, engine.Options{ResetTimeOnPublish: reset})
			mark := "PASS"
			if !res.Passed {
				mark = "FAIL"
			}
			fmt.Printf("%s  %-45s %s\n", mark, res.ScenarioName, res.Reason)
			fmt.Printf("      publications=%d milestones=%d purchases=%d state=%q\n",
				res.Summary.Publications, res.Summary.Milestones, res.Summary.Purchases, res.Summary.InternalState)
		}
	}
	fmt.Println(strings.Repeat("=", 60))
	return t.results
}

// GetResults returns all results so far.
func (t *PacingTest) GetResults() []TestResult {
	return t.results
}
