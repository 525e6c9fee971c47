package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/miretskiy/handovertrace/scenario"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*server, *httptest.Server) {
	t.Helper()
	base := scenario.Default()
	base.Engine.NumEntities = 3
	base.Engine.DurationSec = 3

	reg := prometheus.NewRegistry()
	srv, err := newServer(base, logging.Noop(), reg)
	require.NoError(t, err)
	srv.tickInterval = 10 * time.Millisecond

	ts := httptest.NewServer(srv.routes(reg))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips messages until one of the given type arrives
func readUntil(t *testing.T, conn *websocket.Conn, typ string) ServerMessage {
	t.Helper()
	for {
		msg := read(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
}

func TestServeHome(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Handover Trace Viewer")

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_RunToCompletion(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)

	status := read(t, conn)
	require.Equal(t, "status", status.Type)
	require.False(t, *status.Running)
	require.Equal(t, 3.0, status.Config.DurationSec)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "start"}))

	// Ticks may race the status reply, so count from the start command on
	records := 0
	for done := false; !done; {
		msg := read(t, conn)
		switch msg.Type {
		case "records":
			records += len(msg.Records)
		case "entities":
			require.Len(t, msg.Entities, 3)
		case "summary":
			done = true
		}
	}
	// Snapshot ticks at t=1 and t=2 for 3 entities
	require.Equal(t, 6, records)

	status = readUntil(t, conn, "status")
	require.False(t, *status.Running)

	// /metrics reflects the last tick
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `handover_records{kind="MEASUREMENT"} 6`)
	require.Contains(t, string(body), "handover_viewer_clients 1")
}

func TestWebSocket_ConfigUpdate(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dial(t, ts)
	read(t, conn)

	cfg := correlator.DefaultConfig()
	cfg.DurationSec = 42
	cfg.ThroughputMode = correlator.ThroughputInterval
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "config_update", Config: &cfg}))
	status := readUntil(t, conn, "status")
	require.Equal(t, 42.0, status.Config.DurationSec)
	require.Equal(t, correlator.ThroughputInterval, status.Config.ThroughputMode)

	bad := cfg
	bad.DurationSec = -1
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "config_update", Config: &bad}))
	msg := readUntil(t, conn, "error")
	require.Contains(t, msg.Error, "durationSec")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "bogus"}))
	msg = readUntil(t, conn, "error")
	require.Contains(t, msg.Error, "unknown command")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "reset"}))
	status = readUntil(t, conn, "status")
	require.Equal(t, 42.0, status.Config.DurationSec)
}

func TestQuitHandler(t *testing.T) {
	srv, ts := newTestServer(t)
	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/quitquitquit")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	select {
	case <-srv.quit:
	default:
		t.Fatal("quit channel not closed")
	}
}
