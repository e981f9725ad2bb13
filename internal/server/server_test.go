package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/taptone/internal/tracker"
	"github.com/RyanBlaney/taptone/pkg/events"
)

type fakeController struct {
	mu        sync.Mutex
	threshold int
	min, max  float64
	averages  int
	averaging bool
	hold      bool
	resets    int
}

func (f *fakeController) SetThreshold(percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if percent < 0 || percent > 100 {
		return errors.New("threshold out of range")
	}
	f.threshold = percent
	return nil
}

func (f *fakeController) SetFrequencyWindow(min, max float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.min, f.max = min, max
	return nil
}

func (f *fakeController) SetMaxAverages(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.averages = n
	return nil
}

func (f *fakeController) SetAveraging(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.averaging = enabled
}

func (f *fakeController) SetHold(hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = hold
}

func (f *fakeController) ResetAveraging() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeController) Display() tracker.DisplayState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return tracker.DisplayState{
		State:    tracker.StateIdle,
		StateStr: tracker.StateIdle.String(),
		Settings: tracker.Settings{ThresholdPercent: f.threshold},
	}
}

func TestCommandHandler(t *testing.T) {
	ctrl := &fakeController{}
	h := NewCommandHandler(ctrl, logging.NewDefaultLogger())

	tests := []struct {
		name    string
		cmd     WSCommand
		wantErr bool
	}{
		{"threshold", WSCommand{Type: "set_threshold", Data: json.RawMessage(`{"percent":40}`)}, false},
		{"threshold out of range", WSCommand{Type: "set_threshold", Data: json.RawMessage(`{"percent":140}`)}, true},
		{"window", WSCommand{Type: "set_frequency_window", Data: json.RawMessage(`{"min_hz":50,"max_hz":900}`)}, false},
		{"max averages", WSCommand{Type: "set_max_averages", Data: json.RawMessage(`{"count":4}`)}, false},
		{"averaging", WSCommand{Type: "set_averaging", Data: json.RawMessage(`{"enabled":true}`)}, false},
		{"hold", WSCommand{Type: "set_hold", Data: json.RawMessage(`{"hold":true}`)}, false},
		{"reset", WSCommand{Type: "reset_averaging"}, false},
		{"missing data", WSCommand{Type: "set_hold"}, true},
		{"bad data", WSCommand{Type: "set_threshold", Data: json.RawMessage(`{"percent":"high"}`)}, true},
		{"unknown", WSCommand{Type: "explode"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := h.Handle(tt.cmd)
			assert.Equal(t, tt.cmd.Type, reply.Command)
			if tt.wantErr {
				assert.Equal(t, "error", reply.Type)
				assert.NotEmpty(t, reply.Error)
			} else {
				assert.Equal(t, "ack", reply.Type)
				assert.Empty(t, reply.Error)
			}
		})
	}

	assert.Equal(t, 40, ctrl.threshold)
	assert.Equal(t, 50.0, ctrl.min)
	assert.Equal(t, 900.0, ctrl.max)
	assert.Equal(t, 4, ctrl.averages)
	assert.True(t, ctrl.averaging)
	assert.True(t, ctrl.hold)
	assert.Equal(t, 1, ctrl.resets)

	reply := h.Handle(WSCommand{Type: "get_display", ID: "7"})
	assert.Equal(t, "7", reply.ID)
	state, ok := reply.Data.(tracker.DisplayState)
	require.True(t, ok)
	assert.Equal(t, 40, state.Settings.ThresholdPercent)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketStream(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ctrl := &fakeController{threshold: 25}

	s := NewServer("127.0.0.1:0", bus, ctrl, logging.NewDefaultLogger())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	initial := readMessage(t, conn)
	assert.Equal(t, "ack", initial["type"])
	assert.Equal(t, "get_display", initial["command"])
	data, ok := initial["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "idle", data["state"])

	bus.Publish(events.AmplitudeEvent{Amplitude: 72})
	msg := readMessage(t, conn)
	assert.Equal(t, "amplitude", msg["type"])
	payload, ok := msg["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 72.0, payload["amplitude"])

	require.NoError(t, conn.WriteJSON(WSCommand{
		Type: "set_threshold",
		ID:   "a1",
		Data: json.RawMessage(`{"percent":55}`),
	}))
	reply := readMessage(t, conn)
	assert.Equal(t, "ack", reply["type"])
	assert.Equal(t, "a1", reply["id"])

	require.NoError(t, conn.WriteJSON(WSCommand{Type: "nope"}))
	reply = readMessage(t, conn)
	assert.Equal(t, "error", reply["type"])

	ctrl.mu.Lock()
	assert.Equal(t, 55, ctrl.threshold)
	ctrl.mu.Unlock()
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s := NewServer("127.0.0.1:0", bus, &fakeController{}, logging.NewDefaultLogger())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAllowedOrigin(t *testing.T) {
	const host = "127.0.0.1:8642"

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://127.0.0.1:8642", true},
		{"http://localhost:3000", true},
		{"https://LOCALHOST", true},
		{"http://127.0.0.2:8080", true},
		{"http://192.168.1.20", true},
		{"http://10.0.0.5:8642", true},
		{"http://172.16.4.1", true},
		{"http://[::1]:8642", true},
		{"https://localhost.attacker.example", false},
		{"https://evil10.example", false},
		{"http://127.0.0.1:8642.attacker.example", false},
		{"http://192.168.1.1.attacker.example", false},
		{"https://attacker.example", false},
		{"https://attacker.example/?localhost", false},
		{"http://8.8.8.8", false},
		{"null", false},
		{"file://localhost/index.html", false},
	}

	for _, tt := range tests {
		if got := allowedOrigin(tt.origin, host); got != tt.want {
			t.Errorf("allowedOrigin(%q, %q): want %v, got %v", tt.origin, host, tt.want, got)
		}
	}
}

func TestWebSocketRejectsLookalikeOrigins(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	s := NewServer("127.0.0.1:0", bus, &fakeController{}, &logging.NoOpLogger{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	for _, origin := range []string{"https://localhost.attacker.example", "https://evil10.example"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{origin}})
		require.Error(t, err, origin)
		require.NotNil(t, resp, origin)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, origin)
		resp.Body.Close()
	}
}

func TestHealth(t *testing.T) {
	s := NewServer("127.0.0.1:0", events.NewBus(), &fakeController{}, logging.NewDefaultLogger())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", events.NewBus(), &fakeController{}, logging.NewDefaultLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.Addr() + "/healthz")
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}
