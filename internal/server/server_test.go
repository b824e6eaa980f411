package server

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantilt-tracker/internal/protocol"
	"pantilt-tracker/internal/ptz"
	"pantilt-tracker/internal/sim"
	"pantilt-tracker/internal/state"
	"pantilt-tracker/internal/tracker"
)

type fixedHealth struct {
	h tracker.Health
}

func (f fixedHealth) Health() tracker.Health { return f.h }

var staticFS = fstest.MapFS{
	"web/index.html": {Data: []byte("<title>pan/tilt tracker</title>")},
}

func newTestServer(t *testing.T, cfg Config, health HealthReporter) (*Server, *httptest.Server) {
	t.Helper()
	cells := state.New(160, 120)
	cells.SetObject(ptz.Pan, 240)
	cells.SetObject(ptz.Tilt, 200)
	cells.SetOutput(ptz.Pan, -7.5)

	mount := sim.NewRecordingMount(12, -4)
	s, err := New(cfg, staticFS, cells, health, mount)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Stop()
		ts.Close()
	})
	return s, ts
}

func healthy() fixedHealth {
	return fixedHealth{tracker.Health{Status: "healthy", Units: map[string]tracker.UnitState{"locator": tracker.StateRunning}}}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, Config{}, healthy())
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	degraded := fixedHealth{tracker.Health{Status: "degraded", Units: map[string]tracker.UnitState{"locator": tracker.StateFailed}}}
	_, ts = newTestServer(t, Config{}, degraded)
	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var h tracker.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, tracker.StateFailed, h.Units["locator"])
}

func TestServesIndex(t *testing.T) {
	_, ts := newTestServer(t, Config{}, nil)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "pan/tilt tracker")
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, msgType string) *protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg protocol.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return &msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketStatusAndPing(t *testing.T) {
	_, ts := newTestServer(t, Config{Mode: "pid", Actuator: "sim", Camera: "usb"}, healthy())
	conn := dial(t, ts)

	var status protocol.StatusPayload
	require.NoError(t, readMessage(t, conn, protocol.TypeStatus).ParsePayload(&status))
	assert.Equal(t, "pid", status.Mode)
	assert.Equal(t, "sim", status.Actuator)
	assert.Equal(t, "mjpeg", status.VideoProtocol)
	assert.Equal(t, "healthy", status.Health)
	assert.NotEmpty(t, status.ClientID)

	send(t, conn, protocol.TypePing, protocol.PingPayload{Timestamp: 42})
	var pong protocol.PongPayload
	require.NoError(t, readMessage(t, conn, protocol.TypePong).ParsePayload(&pong))
	assert.Equal(t, int64(42), pong.ClientTimestamp)
	assert.NotZero(t, pong.ServerTimestamp)
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	_, ts := newTestServer(t, Config{}, nil)
	conn := dial(t, ts)

	send(t, conn, "ptz_command", map[string]float64{"pan": 1})
	var perr protocol.ErrorPayload
	require.NoError(t, readMessage(t, conn, protocol.TypeError).ParsePayload(&perr))
	assert.Equal(t, protocol.ErrUnknownType, perr.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	require.NoError(t, readMessage(t, conn, protocol.TypeError).ParsePayload(&perr))
	assert.Equal(t, protocol.ErrInvalidMessage, perr.Code)
}

func TestWebSocketTelemetry(t *testing.T) {
	s, ts := newTestServer(t, Config{Telemetry: 10 * time.Millisecond}, healthy())
	go s.broadcastTelemetry()
	conn := dial(t, ts)

	var tel protocol.TelemetryPayload
	require.NoError(t, readMessage(t, conn, protocol.TypeTelemetry).ParsePayload(&tel))
	assert.Equal(t, 240.0, tel.ObjectX)
	assert.Equal(t, 200.0, tel.ObjectY)
	assert.Equal(t, int64(160), tel.CenterX)
	assert.Equal(t, -7.5, tel.PanOutput)
	assert.Equal(t, 12.0, tel.PanAngle)
	assert.Equal(t, -4.0, tel.TiltAngle)
	assert.Equal(t, "healthy", tel.Health)
}

func TestMJPEGStream(t *testing.T) {
	s, ts := newTestServer(t, Config{}, nil)
	feed := s.Feed()
	assert.False(t, feed.Active())

	resp, err := http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/x-mixed-replace", mediaType)
	require.Eventually(t, feed.Active, time.Second, 5*time.Millisecond)

	feed.Publish([]byte("jpeg-1"))
	mr := multipart.NewReader(resp.Body, params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	body, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-1", string(body))

	feed.Publish([]byte("jpeg-2"))
	part, err = mr.NextPart()
	require.NoError(t, err)
	body, _ = io.ReadAll(part)
	assert.Equal(t, "jpeg-2", string(body))

	resp.Body.Close()
	assert.Eventually(t, func() bool { return !feed.Active() }, time.Second, 5*time.Millisecond)
}

func TestFeedKeepsNewest(t *testing.T) {
	feed := NewFeed()
	feed.Publish([]byte("a"))
	_, ready := feed.current()
	feed.Publish([]byte("b"))
	feed.Publish([]byte("c"))

	select {
	case <-ready:
	default:
		t.Fatal("waiter not woken")
	}
	frame, _ := feed.current()
	assert.Equal(t, "c", string(frame))
}
