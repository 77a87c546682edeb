package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sweeney/touchwake/internal/status"
	"github.com/sweeney/touchwake/internal/touchwake"
)

type testEnv struct {
	ts      *httptest.Server
	srv     *Server
	tracker *status.Tracker
	ctrl    *touchwake.Controller
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		HeartbeatMs:   900000,
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":8080",
		Digitizer:     "sysfs",
		WakeLock:      "sysfs",
		SuspendSource: "logind",
	}
	tr := status.NewTracker(start, cfg)
	ctrl := touchwake.NewController(touchwake.Config{
		Scheduler: touchwake.NewFakeScheduler(),
		Delay:     touchwake.DefaultDelay,
		OnEvent:   tr.Record,
	})
	t.Cleanup(ctrl.Close)

	srv := New(":0", tr, ctrl)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(func() {
		srv.hub.Close()
		ts.Close()
	})
	return &testEnv{ts: ts, srv: srv, tracker: tr, ctrl: ctrl}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestJSONEndpoint(t *testing.T) {
	e := newTestServer(t)
	e.ctrl.SetEnabled(true)
	e.ctrl.Suspend()
	e.tracker.SetMQTTConnected(true)

	resp, body := e.do(t, http.MethodGet, "/index.json", "")

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Mode != "SUSPENDED_WAITING_TOUCH" {
		t.Errorf("Mode: got %q", sj.Status.Mode)
	}
	if sj.Status.LastEvent != "SUSPEND" {
		t.Errorf("LastEvent: got %q", sj.Status.LastEvent)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected")
	}
	if sj.Status.Counts.Suspends != 1 {
		t.Errorf("Counts.Suspends: got %d", sj.Status.Counts.Suspends)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	e := newTestServer(t)
	e.ctrl.Suspend()

	resp, body := e.do(t, http.MethodGet, "/", "")

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	if !strings.Contains(body, `id="mode" class="off">SUSPENDED_DIGITIZER_OFF<`) {
		t.Error("page should show the current mode")
	}
	if !strings.Contains(body, "5000ms") {
		t.Error("page should show the delay")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	e := newTestServer(t)

	resp, _ := e.do(t, http.MethodGet, "/index.html", "")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	e := newTestServer(t)

	resp, _ := e.do(t, http.MethodGet, "/nonexistent", "")
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestAttrRead(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{"/enabled", "0\n"},
		{"/delay", "5000\n"},
		{"/version", touchwake.Version + "\n"},
		{"/debug", "timed_out : 1\n"},
	}
	for _, tt := range tests {
		resp, body := e.do(t, http.MethodGet, tt.path, "")
		if resp.StatusCode != 200 {
			t.Errorf("GET %s: status %d", tt.path, resp.StatusCode)
		}
		if body != tt.want {
			t.Errorf("GET %s: got %q, want %q", tt.path, body, tt.want)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("GET %s: Content-Type %q", tt.path, ct)
		}
	}
}

func TestAttrWrite(t *testing.T) {
	e := newTestServer(t)

	resp, _ := e.do(t, http.MethodPut, "/enabled", "1\n")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("PUT /enabled: status %d, want 204", resp.StatusCode)
	}
	if !e.ctrl.Enabled() {
		t.Error("enabled should be set")
	}

	resp, _ = e.do(t, http.MethodPost, "/delay", "1200")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("POST /delay: status %d, want 204", resp.StatusCode)
	}
	if d := e.ctrl.Delay(); d != 1200*time.Millisecond {
		t.Errorf("delay: got %v", d)
	}
}

func TestAttrWriteIgnoredInputStillSucceeds(t *testing.T) {
	e := newTestServer(t)

	resp, _ := e.do(t, http.MethodPut, "/enabled", "banana")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status %d, want 204", resp.StatusCode)
	}
	if e.ctrl.Enabled() {
		t.Error("malformed input should be ignored")
	}
}

func TestAttrWriteReadOnly(t *testing.T) {
	e := newTestServer(t)

	for _, path := range []string{"/version", "/debug"} {
		resp, _ := e.do(t, http.MethodPut, path, "2")
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("PUT %s: status %d, want 405", path, resp.StatusCode)
		}
	}
}

func TestAttrBadMethod(t *testing.T) {
	e := newTestServer(t)

	resp, _ := e.do(t, http.MethodDelete, "/enabled", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status %d, want 405", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); allow == "" {
		t.Error("expected Allow header")
	}
}

func TestSettingsDisabled(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New(":0", tr, nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/enabled")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	e := newTestServer(t)

	var sj1 status.StatusJSON
	_, body := e.do(t, http.MethodGet, "/index.json", "")
	json.Unmarshal([]byte(body), &sj1)
	if sj1.Status.Enabled {
		t.Error("expected Enabled=false initially")
	}

	e.do(t, http.MethodPut, "/enabled", "1")

	var sj2 status.StatusJSON
	_, body = e.do(t, http.MethodGet, "/index.json", "")
	json.Unmarshal([]byte(body), &sj2)
	if !sj2.Status.Enabled {
		t.Error("expected Enabled=true after write")
	}
	if sj2.Status.LastEvent != "SETTINGS" {
		t.Errorf("LastEvent: got %q", sj2.Status.LastEvent)
	}
}

func TestWebsocketBroadcast(t *testing.T) {
	e := newTestServer(t)

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for e.srv.Hub().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if e.srv.Hub().Len() != 1 {
		t.Fatalf("expected 1 client, got %d", e.srv.Hub().Len())
	}

	e.srv.Hub().Broadcast([]byte(`{"touchwake":{"event":"SUSPEND"}}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"touchwake":{"event":"SUSPEND"}}` {
		t.Errorf("message: got %s", msg)
	}
}

func TestWebsocketClosedOnHubClose(t *testing.T) {
	e := newTestServer(t)

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for e.srv.Hub().Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	e.srv.Hub().Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}
