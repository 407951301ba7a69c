// Package metrics provides observability for the theory server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers run and transport metrics.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time
	SimTime        float64

	// Progression metrics
	Publications    int64
	RewardSum       float64
	MilestonesFired int64
	Purchases       int64
	PurchaseErrors  int64

	// Event persistence
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	StartTime time.Time
	mu        sync.RWMutex
}

var collector = New()

// New returns an empty collector.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the process-wide collector.
func Get() *Collector {
	return collector
}

func storeMax(addr *int64, v int64) {
	for {
		cur := atomic.LoadInt64(addr)
		if v <= cur || atomic.CompareAndSwapInt64(addr, cur, v) {
			return
		}
	}
}

// RecordTick records one engine tick and the simulated time it reached.
func (c *Collector) RecordTick(latency time.Duration, simTime float64) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.SimTime = simTime
	c.mu.Unlock()
}

// RecordPublish records a publication and its reward.
func (c *Collector) RecordPublish(reward float64) {
	atomic.AddInt64(&c.Publications, 1)
	c.mu.Lock()
	c.RewardSum += reward
	c.mu.Unlock()
}

// RecordMilestones records fired milestones.
func (c *Collector) RecordMilestones(n int) {
	if n > 0 {
		atomic.AddInt64(&c.MilestonesFired, int64(n))
	}
}

// RecordPurchase records an upgrade purchase attempt.
func (c *Collector) RecordPurchase(err error) {
	if err != nil {
		atomic.AddInt64(&c.PurchaseErrors, 1)
		return
	}
	atomic.AddInt64(&c.Purchases, 1)
}

// RecordEventWrite records an event write to durable storage.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	var tickAvg, eventAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      c.LastTickTime.Format(time.RFC3339),
			"sim_time":       c.SimTime,
		},

		"progression": map[string]interface{}{
			"publications":     atomic.LoadInt64(&c.Publications),
			"reward_sum":       c.RewardSum,
			"milestones_fired": atomic.LoadInt64(&c.MilestonesFired),
			"purchases":        atomic.LoadInt64(&c.Purchases),
			"purchase_errors":  atomic.LoadInt64(&c.PurchaseErrors),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler serving the snapshot as JSON.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter(w, "theory_tick_count", "Total engine ticks", atomic.LoadInt64(&c.TickCount))
		fmt.Fprintf(w, "# HELP theory_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE theory_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "theory_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		counter(w, "theory_publications_total", "Total publications", atomic.LoadInt64(&c.Publications))
		counter(w, "theory_milestones_total", "Total milestones fired", atomic.LoadInt64(&c.MilestonesFired))
		counter(w, "theory_purchases_total", "Total applied purchases", atomic.LoadInt64(&c.Purchases))
		counter(w, "theory_events_written", "Total events persisted", atomic.LoadInt64(&c.EventsWritten))
		counter(w, "theory_event_write_errors", "Total event write errors", atomic.LoadInt64(&c.EventWriteErrors))

		fmt.Fprintf(w, "# HELP theory_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE theory_ws_connections gauge\n")
		fmt.Fprintf(w, "theory_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP theory_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE theory_ws_messages_total counter\n")
		fmt.Fprintf(w, "theory_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "theory_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		c.mu.RLock()
		fmt.Fprintf(w, "# HELP theory_reward_sum Total tau paid out by publications\n")
		fmt.Fprintf(w, "# TYPE theory_reward_sum counter\n")
		fmt.Fprintf(w, "theory_reward_sum %g\n\n", c.RewardSum)
		fmt.Fprintf(w, "# HELP theory_sim_time Simulated time of the last tick\n")
		fmt.Fprintf(w, "# TYPE theory_sim_time gauge\n")
		fmt.Fprintf(w, "theory_sim_time %g\n", c.SimTime)
		c.mu.RUnlock()
	}
}

func counter(w http.ResponseWriter, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}
