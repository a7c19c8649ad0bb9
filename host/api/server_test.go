package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"simpit/host/metrics"
	"simpit/host/simpit"
	"simpit/host/telemetry"
	"simpit/protocol"
)

type call struct {
	op    string
	group protocol.ActionGroup
	index int
	text  string
}

type fakeController struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeController) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeController) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return call{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeController) State() simpit.State { return simpit.StateEstablished }
func (f *fakeController) Dispatching() bool   { return true }
func (f *fakeController) SendEcho(m string) error {
	return f.record(call{op: "echo", text: m})
}
func (f *fakeController) ActivateStandardActionGroup(g protocol.ActionGroup) error {
	return f.record(call{op: "std-activate", group: g})
}
func (f *fakeController) DeactivateStandardActionGroup(g protocol.ActionGroup) error {
	return f.record(call{op: "std-deactivate", group: g})
}
func (f *fakeController) ToggleStandardActionGroup(g protocol.ActionGroup) error {
	return f.record(call{op: "std-toggle", group: g})
}
func (f *fakeController) ActivateCustomActionGroup(i int) error {
	if i < simpit.MinCustomActionGroup || i > simpit.MaxCustomActionGroup {
		return simpit.ErrInvalidActionGroup
	}
	return f.record(call{op: "custom-activate", index: i})
}
func (f *fakeController) DeactivateCustomActionGroup(i int) error {
	return f.record(call{op: "custom-deactivate", index: i})
}
func (f *fakeController) ToggleCustomActionGroup(i int) error {
	return f.record(call{op: "custom-toggle", index: i})
}

func newTestServer() (*Server, *fakeController, *telemetry.Cache, *metrics.Engine) {
	ctrl := &fakeController{}
	cache := telemetry.NewCache(zerolog.Nop())
	m := metrics.NewEngine()
	return New(ctrl, cache, m, zerolog.Nop()), ctrl, cache, m
}

func do(s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer()
	rec := do(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"handshake":"established"`) {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
}

func TestStatus(t *testing.T) {
	s, _, cache, _ := newTestServer()
	cache.Set(protocol.DatagramAltitude, protocol.Altitude{SeaLevel: 120, Surface: 80})

	rec := do(s, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp struct {
		Handshake   string `json:"handshake"`
		Dispatching bool   `json:"dispatching"`
		Telemetry   map[string]struct {
			Text string `json:"text"`
		} `json:"telemetry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if resp.Handshake != "established" || !resp.Dispatching {
		t.Errorf("Unexpected engine state %+v", resp)
	}
	if entry, ok := resp.Telemetry["altitude"]; !ok || entry.Text != "Sea Level: 120, Surface: 80" {
		t.Errorf("Unexpected telemetry %+v", resp.Telemetry)
	}
}

func TestStatusChannel(t *testing.T) {
	s, _, cache, _ := newTestServer()
	cache.Set(protocol.DatagramSphereOfInfluence, protocol.SphereOfInfluence("Mun"))

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/status/sphere_of_influence", http.StatusOK, `"value":"Mun"`},
		{"/status/altitude", http.StatusNotFound, "no Altitude received yet"},
		{"/status/warp_drive", http.StatusNotFound, "unknown channel"},
	}
	for _, tt := range tests {
		rec := do(s, http.MethodGet, tt.path, "")
		if rec.Code != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.status, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s: expected body to contain %q, got %s", tt.path, tt.want, rec.Body.String())
		}
	}
}

func TestStandardActionGroups(t *testing.T) {
	s, ctrl, _, _ := newTestServer()

	tests := []struct {
		op    string
		body  string
		want  call
		state int
	}{
		{"activate", "SAS", call{op: "std-activate", group: protocol.ActionSAS}, http.StatusOK},
		{"deactivate", "GEAR_ACTION", call{op: "std-deactivate", group: protocol.ActionGear}, http.StatusOK},
		{"toggle", " LIGHT\n", call{op: "std-toggle", group: protocol.ActionLight}, http.StatusOK},
	}
	for _, tt := range tests {
		rec := do(s, http.MethodPost, "/actiongroup/standard/"+tt.op, tt.body)
		if rec.Code != tt.state {
			t.Errorf("%s: expected %d, got %d (%s)", tt.op, tt.state, rec.Code, rec.Body.String())
			continue
		}
		if got := ctrl.last(); got != tt.want {
			t.Errorf("%s: expected %+v, got %+v", tt.op, tt.want, got)
		}
	}

	if rec := do(s, http.MethodPost, "/actiongroup/standard/toggle", "WARP"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown group, got %d", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/actiongroup/standard/explode", "SAS"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown operation, got %d", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/actiongroup/standard/toggle", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty body, got %d", rec.Code)
	}
}

func TestCustomActionGroups(t *testing.T) {
	s, ctrl, _, _ := newTestServer()

	rec := do(s, http.MethodPost, "/actiongroup/custom/toggle", "4")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := ctrl.last(); got.op != "custom-toggle" || got.index != 4 {
		t.Errorf("Unexpected call %+v", got)
	}

	if rec := do(s, http.MethodPost, "/actiongroup/custom/activate", "x"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-integer body, got %d", rec.Code)
	}
	if rec := do(s, http.MethodPost, "/actiongroup/custom/activate", "42"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out of range index, got %d", rec.Code)
	}
}

func TestEchoAndSendFailure(t *testing.T) {
	s, ctrl, _, _ := newTestServer()

	if rec := do(s, http.MethodPost, "/echo", "hello kerbin"); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := ctrl.last(); got.text != "hello kerbin" {
		t.Errorf("Unexpected echo text %q", got.text)
	}

	ctrl.err = errors.New("incomplete write")
	rec := do(s, http.MethodPost, "/echo", "again")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 for failed send, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _, _ := newTestServer()
	do(s, http.MethodGet, "/status/altitude", "")

	rec := do(s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `simpit_http_requests_total{method="GET",path="/status/{channel}",status="404"} 1`) {
		t.Errorf("Expected request metric by route pattern, got:\n%s", rec.Body.String())
	}
}

func TestStream(t *testing.T) {
	s, _, cache, _ := newTestServer()
	cache.Set(protocol.DatagramAltitude, protocol.Altitude{SeaLevel: 1, Surface: 1})

	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var entry struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := conn.ReadJSON(&entry); err != nil {
		t.Fatalf("Read snapshot failed: %v", err)
	}
	if entry.Type != "altitude" {
		t.Errorf("Expected altitude snapshot, got %+v", entry)
	}

	deadline := time.Now().Add(time.Second)
	for cache.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cache.Set(protocol.DatagramApsides, protocol.Apsides{Periapsis: 70000, Apoapsis: 90000})

	var raw map[string]any
	if err := conn.ReadJSON(&raw); err != nil {
		t.Fatalf("Read update failed: %v", err)
	}
	if raw["type"] != "apsides" {
		t.Errorf("Expected apsides update, got %v", raw)
	}
}
