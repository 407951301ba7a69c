package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
)

// DefaultTickRate is how often the server advances a session in real time.
const DefaultTickRate = 100 * time.Millisecond

// Ticker drives a Session from a wall clock. It knows nothing about the
// theory itself, only about elapsed time and the speed multiplier.
type Ticker struct {
	session    *Session
	logger     *logger.Logger
	interval   time.Duration
	multiplier float64
	tickNumber int64
	stopChan   chan struct{}
}

// NewTicker creates a ticker. Non-positive arguments fall back to defaults.
func NewTicker(s *Session, interval time.Duration, multiplier float64, log *logger.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultTickRate
	}
	if multiplier <= 0 {
		multiplier = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Ticker{
		session:    s,
		logger:     log,
		interval:   interval,
		multiplier: multiplier,
		stopChan:   make(chan struct{}),
	}
}

// Start runs the loop until ctx is cancelled or Stop is called.
func (t *Ticker) Start(ctx context.Context) error {
	t.logger.Info("ticker started",
		zap.Duration("interval", t.interval),
		zap.Float64("multiplier", t.multiplier))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("ticker stopped by context", zap.Int64("ticks", t.Ticks()))
			return nil
		case <-t.stopChan:
			t.logger.Info("ticker stopped manually", zap.Int64("ticks", t.Ticks()))
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			tick := atomic.AddInt64(&t.tickNumber, 1)
			report := t.session.Tick(elapsed, t.multiplier)
			for _, idx := range report.Fired {
				t.logger.Info("milestone reached", zap.Int("index", idx), zap.Int64("tick", tick))
			}
		}
	}
}

// Stop gracefully stops the ticker. Safe to call once.
func (t *Ticker) Stop() {
	close(t.stopChan)
}

// Ticks returns how many ticks have run.
func (t *Ticker) Ticks() int64 {
	return atomic.LoadInt64(&t.tickNumber)
}
