package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/domain/variant"
	"github.com/MRamiBalles/CalculusMatrix/internal/engine"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/host"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/metrics"
)

func newTestHub(t *testing.T) (*Hub, *events.EventLog) {
	t.Helper()
	v, err := variant.Lookup(variant.Calculus)
	require.NoError(t, err)
	ledger := host.NewLedger(v.Upgrades)
	eventLog := events.NewEventLog(nil)
	e, err := engine.NewEngine(v, ledger, eventLog, logger.NewNop(), engine.Options{})
	require.NoError(t, err)
	m := metrics.New()
	hub, err := NewHub(engine.NewSession(e, ledger, m, nil), Options{MaxClients: 4}, m, nil)
	require.NoError(t, err)
	return hub, eventLog
}

func TestHub_Handle(t *testing.T) {
	hub, _ := newTestHub(t)

	r := hub.Handle([]byte(`{"type":"SET_STATE","state":"0 100"}`))
	require.True(t, r.OK, r.Error)

	r = hub.Handle([]byte(`{"type":"PURCHASE","upgrade_id":"c1","id":"r1"}`))
	require.True(t, r.OK, r.Error)
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, map[string]interface{}{"upgrade_id": "c1", "level": 1}, r.Data)

	r = hub.Handle([]byte(`{"type":"PURCHASE","upgrade_id":"ghost"}`))
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "unknown upgrade")

	r = hub.Handle([]byte(`{"type":"SET_STATE","state":"-1 2"}`))
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "malformed internal state")

	r = hub.Handle([]byte(`{"type":"VIEW"}`))
	require.True(t, r.OK)
	view, ok := r.Data.(engine.View)
	require.True(t, ok)
	assert.Equal(t, "0 90", view.InternalState)

	r = hub.Handle([]byte(`{"type":"PUBLISH"}`))
	require.True(t, r.OK)
	_, ok = r.Data.(rules.Reward)
	assert.True(t, ok)

	r = hub.Handle([]byte(`{"type":"RESTART"}`))
	assert.True(t, r.OK)

	r = hub.Handle([]byte(`{"type":"NOPE"}`))
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "invalid command")
}

func TestHub_ExecuteWithoutSession(t *testing.T) {
	hub, err := NewHub(nil, Options{}, nil, nil)
	require.NoError(t, err)

	r := hub.Execute(Command{Type: CommandPublish, ID: "x"})
	assert.False(t, r.OK)
	assert.Equal(t, "x", r.ID)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	hub.Broadcast(Envelope{Type: "VIEW"})
	cancel()
	require.NoError(t, <-done)

	// After shutdown broadcasts and registrations must not block.
	for i := 0; i < 1000; i++ {
		hub.Broadcast(Envelope{Type: "VIEW"})
	}
	c := &Client{hub: hub, send: make(chan []byte, 1)}
	assert.False(t, c.Register())
}

func TestHub_PollEventsBroadcastsNewEvents(t *testing.T) {
	hub, eventLog := newTestHub(t)
	hub.session.Tick(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.PollEvents(ctx, eventLog, 5*time.Millisecond) }()

	// The poller starts from the log length it first sees, so keep emitting
	// until one restart lands after that point.
	var env Envelope
	deadline := time.After(2 * time.Second)
wait:
	for {
		hub.session.Restart()
		select {
		case msg := <-hub.broadcast:
			require.NoError(t, json.Unmarshal(msg, &env))
			break wait
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no broadcast")
		}
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "EVENT", env.Type)
	require.NotNil(t, env.Event)
	assert.Equal(t, events.EventTypeRestart, env.Event.Type)
}

func TestClient_RateLimit(t *testing.T) {
	hub, err := NewHub(nil, Options{MaxMessagesPerSecond: 2}, nil, nil)
	require.NoError(t, err)
	c := NewClient(hub, nil)
	now := time.Now()

	assert.True(t, c.allow(now))
	assert.True(t, c.allow(now.Add(10*time.Millisecond)))
	assert.False(t, c.allow(now.Add(20*time.Millisecond)))
	assert.True(t, c.allow(now.Add(1100*time.Millisecond)), "window resets after a second")
}

func TestWebSocket_CommandReply(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Setup
	hub, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- hub.Run(ctx) }()
	srv := httptest.NewServer(hub.NewRouter())
	defer func() {
		cancel()
		<-runDone
		srv.Close()
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Act
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SET_STATE","state":"3 4","id":"a"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	// Assert
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, "REPLY", env.Type)
	require.NotNil(t, env.Reply)
	assert.True(t, env.Reply.OK)
	assert.Equal(t, "a", env.Reply.ID)
	assert.Equal(t, "3 4", hub.session.InternalState())
}

func TestRouter(t *testing.T) {
	hub, _ := newTestHub(t)
	router := hub.NewRouter()

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodPut, "/api/internal-state", "5 7")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(http.MethodGet, "/api/internal-state", "")
	assert.Equal(t, "5 7", rec.Body.String())
	rec = do(http.MethodPut, "/api/internal-state", "five")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view engine.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, variant.Calculus, view.Variant)
	assert.Equal(t, "5 7", view.InternalState)

	rec = do(http.MethodPost, "/api/command", `{"type":"RESTART","id":"z"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var reply Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.True(t, reply.OK)
	assert.Equal(t, "z", reply.ID)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/command", `{"type":"PURCHASE"}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(http.MethodGet, "/api/command", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(http.MethodPost, "/api/state", "").Code)
	assert.Equal(t, "ok", do(http.MethodGet, "/healthz", "").Body.String())
	assert.Contains(t, do(http.MethodGet, "/metrics/prometheus", "").Body.String(), "theory_tick_count")
}
