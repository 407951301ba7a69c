package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	c := New()

	c.RecordTick(2*time.Millisecond, 10)
	c.RecordTick(5*time.Millisecond, 20)
	c.RecordPublish(3.5)
	c.RecordMilestones(2)
	c.RecordMilestones(0)
	c.RecordPurchase(nil)
	c.RecordPurchase(errors.New("broke"))
	c.RecordEventWrite(time.Millisecond, errors.New("disk"))

	assert.Equal(t, int64(2), c.TickCount)
	assert.Equal(t, int64(5*time.Millisecond), c.TickLatencyMax)
	assert.Equal(t, 20.0, c.SimTime)
	assert.Equal(t, 3.5, c.RewardSum)
	assert.Equal(t, int64(2), c.MilestonesFired)
	assert.Equal(t, int64(1), c.Purchases)
	assert.Equal(t, int64(1), c.PurchaseErrors)
	assert.Equal(t, int64(1), c.EventWriteErrors)
	assert.NotSame(t, c, Get())
}

func TestHandler_JSON(t *testing.T) {
	c := New()
	c.RecordPublish(1)
	rec := httptest.NewRecorder()

	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, section := range []string{"tick", "progression", "events", "websocket"} {
		assert.Contains(t, body, section)
	}
	progression := body["progression"].(map[string]interface{})
	assert.Equal(t, 1.0, progression["publications"])
}

func TestPrometheusHandler(t *testing.T) {
	c := New()
	c.RecordPublish(1)
	c.RecordWSConnection(2)
	c.RecordWSMessage(true)
	rec := httptest.NewRecorder()

	c.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))

	out := rec.Body.String()
	assert.Contains(t, out, "theory_publications_total 1\n")
	assert.Contains(t, out, "theory_ws_connections 2\n")
	assert.Contains(t, out, `theory_ws_messages_total{direction="in"} 1`)
	assert.Contains(t, out, "# TYPE theory_sim_time gauge")
}
