package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	bridge "github.com/nerrad567/vicare-bridge/internal/bridges/vicare"
	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vicare-bridge/internal/registry"
	vc "github.com/nerrad567/vicare-bridge/internal/vicare"
)

const (
	testSecret = "test-secret-key-at-least-32-characters-long"
	boilerTemp = "1234/7571381681420106/0/boiler_temperature"
	waterID    = "1234/7571381681420106/0/water"
)

// fakeEntity is a fixed entity snapshot.
type fakeEntity struct {
	info  entity.Info
	state *entity.State
}

func (f *fakeEntity) Info() entity.Info { return f.info }
func (f *fakeEntity) State() (*entity.State, bool) {
	return f.state, f.state != nil
}
func (f *fakeEntity) Available() bool { return f.state != nil }
func (f *fakeEntity) Update(context.Context) (entity.Outcome, error) {
	return entity.OutcomeIdle, nil
}

// fakeBridge records dispatched commands and answers with a canned ack.
type fakeBridge struct {
	mu       sync.Mutex
	entities []entity.Entity
	health   bridge.HealthMessage
	ackCode  string
	commands []bridge.CommandMessage
	services []string
	listener func(bridge.StateMessage)
	metrics  *bridge.Metrics
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		entities: []entity.Entity{
			&fakeEntity{
				info: entity.Info{ID: boilerTemp, DeviceID: "1234/7571381681420106/0", Platform: entity.PlatformSensor, Key: "boiler_temperature", Name: "ViCare Boiler Temperature", Unit: "°C"},
				state: &entity.State{Value: 63.0, Unit: "°C"},
			},
			&fakeEntity{
				info: entity.Info{ID: waterID, DeviceID: "1234/7571381681420106/0", Platform: entity.PlatformWaterHeater, Key: "water", Name: "ViCare Water"},
				state: &entity.State{Value: 52.0, Target: entity.Float(50), Mode: "on"},
			},
			&fakeEntity{
				info: entity.Info{ID: "1234/7571381681420106/0/outside_temperature", DeviceID: "1234/7571381681420106/0", Platform: entity.PlatformSensor, Key: "outside_temperature"},
			},
		},
		health:  bridge.HealthMessage{Bridge: "vicare-test", Status: bridge.HealthHealthy},
		metrics: bridge.NewMetrics(func() vc.Stats { return vc.Stats{} }),
	}
}

func (f *fakeBridge) Entities() []entity.Entity { return f.entities }

func (f *fakeBridge) Entity(id string) (entity.Entity, error) {
	for _, e := range f.entities {
		if e.Info().ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", bridge.ErrEntityNotFound, id)
}

func (f *fakeBridge) Devices() []bridge.DeviceSummary {
	return []bridge.DeviceSummary{{ID: "1234/7571381681420106/0", Model: "E3_Vitodens_100_0421", Online: true, Entities: len(f.entities)}}
}

func (f *fakeBridge) Health() bridge.HealthMessage { return f.health }

func (f *fakeBridge) Dispatch(_ context.Context, entityID string, cmd bridge.CommandMessage) bridge.AckMessage {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	code := f.ackCode
	f.mu.Unlock()

	ack := bridge.AckMessage{CommandID: "cmd-1", EntityID: entityID, Command: cmd.Command, Status: bridge.AckAccepted}
	if _, err := f.Entity(entityID); err != nil {
		code = bridge.ErrCodeNotFound
	}
	if code != "" {
		ack.Status = bridge.AckFailed
		ack.Error = &bridge.AckError{Code: code, Message: "rejected"}
	}
	return ack
}

func (f *fakeBridge) CallService(ctx context.Context, name string, msg bridge.ServiceMessage) bridge.AckMessage {
	f.mu.Lock()
	f.services = append(f.services, name)
	f.mu.Unlock()
	if name != bridge.ServiceSetVicareMode && name != bridge.ServiceSetHeatingCurve {
		return bridge.AckMessage{EntityID: msg.EntityID, Command: name, Status: bridge.AckFailed,
			Error: &bridge.AckError{Code: bridge.ErrCodeInvalidCommand, Message: "unknown service"}}
	}
	return f.Dispatch(ctx, msg.EntityID, bridge.CommandMessage{Command: name, Parameters: msg.Parameters})
}

func (f *fakeBridge) SetStateListener(fn func(bridge.StateMessage)) {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
}

func (f *fakeBridge) emit(msg bridge.StateMessage) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (f *fakeBridge) Metrics() *bridge.Metrics { return f.metrics }

// fakeStore serves persisted records.
type fakeStore struct {
	records []registry.Entity
}

func (s *fakeStore) ListEntities(context.Context) []registry.Entity { return s.records }

func (s *fakeStore) GetEntity(_ context.Context, id string) (*registry.Entity, error) {
	for i := range s.records {
		if s.records[i].ID == id {
			return &s.records[i], nil
		}
	}
	return nil, registry.ErrEntityNotFound
}

func (s *fakeStore) Stats() registry.Stats {
	return registry.Stats{Entities: len(s.records)}
}

func testServer(t *testing.T, secret string) (*Server, *fakeBridge) {
	t.Helper()

	fb := newFakeBridge()
	log := logging.Discard()
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			JWT:      config.JWTConfig{Secret: secret},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger: log,
		Bridge: fb,
		Registry: &fakeStore{records: []registry.Entity{
			{ID: boilerTemp, DeviceID: "1234/7571381681420106/0", Platform: "sensor", State: json.RawMessage(`{"value":63}`), Available: true},
		}},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, fb
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNewRequiresBridge(t *testing.T) {
	log := logging.Discard()
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Fatal("New() without bridge should fail")
	}
	if _, err := New(Deps{Bridge: newFakeBridge()}); err == nil {
		t.Fatal("New() without logger should fail")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status bridge.HealthStatus
		want   int
	}{
		{bridge.HealthHealthy, http.StatusOK},
		{bridge.HealthDegraded, http.StatusOK},
		{bridge.HealthStarting, http.StatusServiceUnavailable},
		{bridge.HealthStopping, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			srv, fb := testServer(t, "")
			fb.health.Status = tt.status
			w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "", nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			resp := decode[map[string]any](t, w)
			if resp["status"] != string(tt.status) {
				t.Errorf("status field = %v, want %s", resp["status"], tt.status)
			}
			if resp["version"] != "test" {
				t.Errorf("version = %v, want test", resp["version"])
			}
		})
	}
}

func TestListEntities(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"platform filter", "?platform=sensor", 2},
		{"device filter", "?device_id=1234/7571381681420106/0", 3},
		{"no match", "?device_id=other", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, "/api/v1/entities"+tt.query, "", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			resp := decode[struct {
				Entities []EntityView `json:"entities"`
				Count    int          `json:"count"`
			}](t, w)
			if resp.Count != tt.want || len(resp.Entities) != tt.want {
				t.Errorf("count = %d (%d entities), want %d", resp.Count, len(resp.Entities), tt.want)
			}
		})
	}
}

func TestGetEntity(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/entities/"+waterID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	view := decode[EntityView](t, w)
	if view.ID != waterID || view.Platform != entity.PlatformWaterHeater {
		t.Errorf("entity = %+v", view.Info)
	}
	if !view.Available || view.State == nil || view.State.Mode != "on" {
		t.Errorf("state = %+v, available = %v", view.State, view.Available)
	}

	w = do(t, router, http.MethodGet, "/api/v1/entities/1234/7571381681420106/0/outside_temperature", "", nil)
	view = decode[EntityView](t, w)
	if view.Available || view.State != nil {
		t.Errorf("unread entity should be unavailable, got %+v", view)
	}

	w = do(t, router, http.MethodGet, "/api/v1/entities/1234/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing entity status = %d, want 404", w.Code)
	}
}

func TestListDevices(t *testing.T) {
	srv, _ := testServer(t, "")
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/devices", "", nil)
	resp := decode[struct {
		Devices []bridge.DeviceSummary `json:"devices"`
	}](t, w)
	if len(resp.Devices) != 1 || resp.Devices[0].Model != "E3_Vitodens_100_0421" {
		t.Errorf("devices = %+v", resp.Devices)
	}
}

func TestRegistryRecords(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/registry", "", nil)
	resp := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}

	w = do(t, router, http.MethodGet, "/api/v1/registry/"+boilerTemp, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	rec := decode[registry.Entity](t, w)
	if string(rec.State) != `{"value":63}` {
		t.Errorf("state = %s", rec.State)
	}

	w = do(t, router, http.MethodGet, "/api/v1/registry/"+waterID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown record status = %d, want 404", w.Code)
	}
}

func TestRegistryNotConfigured(t *testing.T) {
	srv, _ := testServer(t, "")
	srv.registry = nil
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/registry", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestCommand(t *testing.T) {
	srv, fb := testServer(t, "")
	router := srv.buildRouter()

	w := do(t, router, http.MethodPost, "/api/v1/commands/"+waterID,
		`{"command":"set_temperature","parameters":{"temperature":55}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	ack := decode[bridge.AckMessage](t, w)
	if ack.Status != bridge.AckAccepted || ack.EntityID != waterID {
		t.Errorf("ack = %+v", ack)
	}
	if len(fb.commands) != 1 {
		t.Fatalf("dispatched %d commands, want 1", len(fb.commands))
	}
	if got := fb.commands[0]; got.Source != bridge.SourceAPI || got.Parameters["temperature"] != 55.0 {
		t.Errorf("dispatched = %+v", got)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		ackCode string
		want    int
	}{
		{"invalid json", "/api/v1/commands/" + waterID, `{`, "", http.StatusBadRequest},
		{"missing command", "/api/v1/commands/" + waterID, `{}`, "", http.StatusBadRequest},
		{"unknown entity", "/api/v1/commands/1234/missing", `{"command":"turn_on"}`, "", http.StatusNotFound},
		{"invalid parameters", "/api/v1/commands/" + waterID, `{"command":"set_temperature"}`, bridge.ErrCodeInvalidParameters, http.StatusBadRequest},
		{"rejected", "/api/v1/commands/" + waterID, `{"command":"set_temperature"}`, bridge.ErrCodeCommandRejected, http.StatusUnprocessableEntity},
		{"rate limited", "/api/v1/commands/" + waterID, `{"command":"set_temperature"}`, bridge.ErrCodeRateLimited, http.StatusTooManyRequests},
		{"timeout", "/api/v1/commands/" + waterID, `{"command":"set_temperature"}`, bridge.ErrCodeTimeout, http.StatusGatewayTimeout},
		{"unreachable", "/api/v1/commands/" + waterID, `{"command":"set_temperature"}`, bridge.ErrCodeDeviceUnreachable, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, fb := testServer(t, "")
			fb.ackCode = tt.ackCode
			w := do(t, srv.buildRouter(), http.MethodPost, tt.path, tt.body, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestService(t *testing.T) {
	srv, fb := testServer(t, "")
	router := srv.buildRouter()

	w := do(t, router, http.MethodPost, "/api/v1/services/set_vicare_mode",
		`{"entity_id":"`+waterID+`","parameters":{"vicare_mode":"standby"}}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if len(fb.services) != 1 || fb.services[0] != bridge.ServiceSetVicareMode {
		t.Errorf("services = %v", fb.services)
	}

	w = do(t, router, http.MethodPost, "/api/v1/services/bogus", `{"entity_id":"`+waterID+`"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown service status = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/api/v1/services/set_vicare_mode", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing entity status = %d, want 400", w.Code)
	}
}

func TestAuth(t *testing.T) {
	srv, fb := testServer(t, testSecret)
	router := srv.buildRouter()
	body := `{"command":"turn_on"}`
	path := "/api/v1/commands/" + waterID

	valid, err := IssueToken(testSecret, "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	expired, err := IssueToken(testSecret, "operator", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	foreign, err := IssueToken("another-secret-key-at-least-32-characters", "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			w := do(t, router, http.MethodPost, path, body, h)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
	if len(fb.commands) != 1 {
		t.Errorf("dispatched %d commands, want 1", len(fb.commands))
	}

	// Reads stay open.
	if w := do(t, router, http.MethodGet, "/api/v1/entities", "", nil); w.Code != http.StatusOK {
		t.Errorf("entities status = %d, want 200", w.Code)
	}
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	if _, err := IssueToken("", "operator", time.Hour); err == nil {
		t.Fatal("IssueToken with empty secret should fail")
	}
	tok, err := IssueToken(testSecret, "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	sub, err := ParseToken(testSecret, tok)
	if err != nil || sub != "operator" {
		t.Errorf("ParseToken = %q, %v", sub, err)
	}
}

func TestTicketsAreSingleUse(t *testing.T) {
	ts := newTicketStore()
	ticket := ts.issue()
	if !ts.consume(ticket) {
		t.Fatal("first consume should succeed")
	}
	if ts.consume(ticket) {
		t.Error("second consume should fail")
	}
	if ts.consume("unknown") {
		t.Error("unknown ticket should fail")
	}

	ts.tickets["stale"] = time.Now().Add(-time.Second)
	ts.cleanExpired()
	if _, ok := ts.tickets["stale"]; ok {
		t.Error("expired ticket not cleaned")
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/health", "", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing generated X-Request-ID")
	}
	w = do(t, router, http.MethodGet, "/api/v1/health", "", http.Header{"X-Request-Id": {"abc"}})
	if got := w.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", got)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := testServer(t, "")
	srv.cfg.CORS.AllowedOrigins = []string{"http://ha.local"}
	router := srv.buildRouter()

	w := do(t, router, http.MethodOptions, "/api/v1/entities", "", http.Header{"Origin": {"http://ha.local"}})
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ha.local" {
		t.Errorf("allow origin = %q", got)
	}

	w = do(t, router, http.MethodGet, "/api/v1/entities", "", http.Header{"Origin": {"http://evil.example"}})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t, "")
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	m := decode[SystemMetrics](t, w)
	if m.Version != "test" || m.Registry == nil || m.Registry.Entities != 1 {
		t.Errorf("metrics = %+v", m)
	}

	w = do(t, router, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("prometheus status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("prometheus output missing go collector")
	}
}

func TestAckStatus(t *testing.T) {
	if got := ackStatus(bridge.AckMessage{Status: bridge.AckAccepted}); got != http.StatusOK {
		t.Errorf("accepted = %d, want 200", got)
	}
	got := ackStatus(bridge.AckMessage{Error: &bridge.AckError{Code: bridge.ErrCodeBridgeError}})
	if got != http.StatusInternalServerError {
		t.Errorf("bridge error = %d, want 500", got)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func startWS(t *testing.T, secret string) (*Server, *fakeBridge, *httptest.Server) {
	t.Helper()
	srv, fb := testServer(t, secret)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)
	fb.SetStateListener(func(msg bridge.StateMessage) {
		srv.hub.Broadcast(ChannelStateChanged, stateEvent{msg})
	})
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return srv, fb, ts
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketStateEvents(t *testing.T) {
	srv, fb, ts := startWS(t, "")
	conn := dialWS(t, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws")
	waitClients(t, srv.hub, 1)

	sub := `{"type":"subscribe","id":"1","payload":{"channels":["entity.state_changed"],"entity_ids":["` + waterID + `"]}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	// Filtered out, then delivered.
	fb.emit(bridge.StateMessage{EntityID: boilerTemp, Available: true})
	fb.emit(bridge.StateMessage{EntityID: waterID, Available: true, State: &entity.State{Value: 52.0}})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelStateChanged {
		t.Fatalf("event = %+v", msg)
	}
	var state bridge.StateMessage
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if state.EntityID != waterID {
		t.Errorf("entity_id = %q, want %q", state.EntityID, waterID)
	}
}

func TestWebSocketPing(t *testing.T) {
	_, _, ts := startWS(t, "")
	conn := dialWS(t, "ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","id":"p"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p" {
		t.Errorf("reply = %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply = %+v, want error", msg)
	}
}

func TestWebSocketTicket(t *testing.T) {
	_, _, ts := startWS(t, testSecret)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial without ticket should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v, want 401", resp)
	}
	resp.Body.Close()

	token, err := IssueToken(testSecret, "operator", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/auth/ws-ticket", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	tr, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("ticket request: %v", err)
	}
	defer tr.Body.Close()
	var ticket struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(tr.Body).Decode(&ticket); err != nil || ticket.Ticket == "" {
		t.Fatalf("ticket = %+v, err = %v", ticket, err)
	}

	dialWS(t, wsURL+"?ticket="+ticket.Ticket)
}

func TestWSFilter(t *testing.T) {
	var f wsFilter
	if f.match(ChannelStateChanged, waterID) {
		t.Fatal("empty filter matched")
	}

	f.add(WSSubscribePayload{Channels: []string{ChannelStateChanged}})
	if !f.match(ChannelStateChanged, boilerTemp) || !f.match(ChannelStateChanged, "") {
		t.Error("channel subscription without entity filter should match everything")
	}

	f.add(WSSubscribePayload{Channels: []string{ChannelStateChanged}, EntityIDs: []string{waterID}})
	if f.match(ChannelStateChanged, boilerTemp) {
		t.Error("entity filter not applied")
	}
	if !f.match(ChannelStateChanged, waterID) {
		t.Error("filtered entity rejected")
	}

	f.remove(WSSubscribePayload{Channels: []string{ChannelStateChanged}})
	f.add(WSSubscribePayload{Channels: []string{ChannelStateChanged}})
	if !f.match(ChannelStateChanged, boilerTemp) {
		t.Error("entity filter survived removal of the last channel")
	}
}
