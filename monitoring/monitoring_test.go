package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversEstimates(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.PublishEstimate(Estimate{
		RequestID: "req-1",
		Model:     "ridge",
		Estimate:  181500,
		Inputs:    map[string]string{"Lot Area": "8450"},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, EstimateEvent, msg.Type)
	assert.NotEmpty(t, msg.ID)

	var estimate Estimate
	require.NoError(t, json.Unmarshal(msg.Data, &estimate))
	assert.Equal(t, "req-1", estimate.RequestID)
	assert.Equal(t, 181500.0, estimate.Estimate)
	assert.Equal(t, "8450", estimate.Inputs["Lot Area"])

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Clients())
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < 300; i++ {
		assert.NoError(t, hub.PublishEstimate(Estimate{RequestID: "r", Estimate: 1}))
	}
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrCounter("predictions_total", 1)
	mc.IncrCounter("predictions_total", 1)
	mc.IncrCounter("prediction_errors_total", 1)
	mc.RecordLatency("predict", 10*time.Millisecond)
	mc.RecordLatency("predict", 30*time.Millisecond)

	assert.Equal(t, 2.0, mc.Counter("predictions_total"))
	assert.Zero(t, mc.Counter("unknown"))

	snap := mc.Snapshot()
	assert.Equal(t, 1.0, snap.Counters["prediction_errors_total"])
	latency := snap.Latencies["predict"]
	assert.Equal(t, int64(2), latency.Count)
	assert.InDelta(t, 10, latency.MinMs, 1e-9)
	assert.InDelta(t, 30, latency.MaxMs, 1e-9)
	assert.InDelta(t, 20, latency.AverageMs, 1e-9)
	assert.Greater(t, snap.Goroutines, 0)

	mc.IncrCounter("predictions_total", 1)
	assert.Equal(t, 2.0, snap.Counters["predictions_total"], "snapshot is a copy")
}
