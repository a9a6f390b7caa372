package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/persistence"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

const testKey = "secret"

func newTestServer(t *testing.T, money int64) (*Server, http.Handler) {
	t.Helper()
	g := world.NewGrid(10, 10)
	c := company.New("Test Co", money)
	sim := engine.NewSimulation(g, nil, []*company.Company{c}, entropy.NewSeeded(1), vehicle.DefaultSettings())
	sim.PlaceContent(2, 2, world.NewTown("Springfield", 1000, 1.0))

	lock := &sync.Mutex{}
	s := &Server{
		Sim:      sim,
		Eng:      engine.NewEngine(sim, lock),
		Lock:     lock,
		AdminKey: testKey,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return s, s.Handler(ctx)
}

func do(t *testing.T, h http.Handler, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestStatusAndMap(t *testing.T) {
	s, h := newTestServer(t, 1_000_000)
	s.Sim.Tick()

	rec := do(t, h, http.MethodGet, "/api/v1/status", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var resp struct {
		Status engine.Status `json:"status"`
		Speed  float64       `json:"speed"`
	}
	decode(t, rec, &resp)
	if resp.Status.Tick != 1 || resp.Status.Towns != 1 || resp.Status.Width != 10 {
		t.Errorf("status = %+v", resp.Status)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/map?format=text", "", false)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n"); len(lines) != 10 {
		t.Errorf("rendered %d rows, want 10", len(lines))
	}

	rec = do(t, h, http.MethodGet, "/api/v1/map", "", false)
	var m struct {
		Rows  []string      `json:"rows"`
		Towns []world.Coord `json:"towns"`
	}
	decode(t, rec, &m)
	if len(m.Rows) != 10 || len(m.Towns) != 1 {
		t.Errorf("map rows=%d towns=%d", len(m.Rows), len(m.Towns))
	}
}

func TestTileEndpoint(t *testing.T) {
	_, h := newTestServer(t, 1_000_000)

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/tile/2/2", http.StatusOK},
		{"/api/v1/tile/10/0", http.StatusNotFound},
		{"/api/v1/tile/a/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "", false)
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
		})
	}

	var view engine.TileView
	decode(t, do(t, h, http.MethodGet, "/api/v1/tile/2/2", "", false), &view)
	if view.Content != "town" {
		t.Errorf("content = %q, want town", view.Content)
	}
}

func TestAdminAuth(t *testing.T) {
	s, h := newTestServer(t, 1_000_000)
	body := `{"x":4,"y":4,"kind":"road"}`

	if rec := do(t, h, http.MethodPost, "/api/v1/build", body, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: code = %d, want 401", rec.Code)
	}
	for _, header := range []string{"Bearer secre", "Bearer secret2", "secret", "Bearer "} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/build", strings.NewReader(body))
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: code = %d, want 401", header, rec.Code)
		}
	}

	s.AdminKey = ""
	h = s.Handler(context.Background())
	if rec := do(t, h, http.MethodPost, "/api/v1/build", body, true); rec.Code != http.StatusForbidden {
		t.Errorf("disabled: code = %d, want 403", rec.Code)
	}
}

func TestBuildErrors(t *testing.T) {
	_, h := newTestServer(t, 1_000_000)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"ok", `{"x":4,"y":4,"kind":"station"}`, http.StatusOK},
		{"occupied", `{"x":4,"y":4,"kind":"road"}`, http.StatusConflict},
		{"town tile", `{"x":2,"y":2,"kind":"road"}`, http.StatusConflict},
		{"out of bounds", `{"x":40,"y":4,"kind":"road"}`, http.StatusBadRequest},
		{"unknown kind", `{"x":5,"y":5,"kind":"castle"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"airport", `{"x":6,"y":6,"kind":"airport"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/build", tt.body, true)
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
		})
	}
}

func TestBuildInsufficientFunds(t *testing.T) {
	s, h := newTestServer(t, 20_000)

	rec := do(t, h, http.MethodPost, "/api/v1/build", `{"x":4,"y":4,"kind":"station"}`, true)
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("code = %d, want 402", rec.Code)
	}
	if got := s.Sim.Companies[0].Money; got != 20_000 {
		t.Errorf("money = %d, failed build should not charge", got)
	}
}

func TestVehicleLifecycle(t *testing.T) {
	s, h := newTestServer(t, 1_000_000)
	if rec := do(t, h, http.MethodPost, "/api/v1/build", `{"x":3,"y":2,"kind":"bus_stop"}`, true); rec.Code != http.StatusOK {
		t.Fatalf("build: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodPost, "/api/v1/vehicles", `{"type":"bus","x":3,"y":2}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("buy: %d %s", rec.Code, rec.Body.String())
	}
	var st vehicle.Status
	decode(t, rec, &st)

	if rec := do(t, h, http.MethodPost, "/api/v1/vehicles", `{"type":"zeppelin","x":3,"y":2}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type: code = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/routes", `{"name":"loop","stops":[{"x":3,"y":2},{"x":2,"y":2}],"cargo":["passengers"]}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create route: %d %s", rec.Code, rec.Body.String())
	}
	var route struct {
		company.Route
		Estimate engine.RouteEstimate `json:"estimate"`
	}
	decode(t, rec, &route)
	if route.Estimate.Length != 2 || len(route.Estimate.PerUnit) != 1 || route.Estimate.PerUnit[0].Cargo != "passengers" {
		t.Errorf("estimate = %+v, want a 2-tile lap priced for passengers", route.Estimate)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/routes", `{"stops":[{"x":3,"y":2}]}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("one-stop route: code = %d", rec.Code)
	}

	path := "/api/v1/vehicles/" + itoa(uint64(st.ID))
	body := `{"route_id":` + itoa(uint64(route.ID)) + `}`
	if rec := do(t, h, http.MethodPost, path+"/route", body, true); rec.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, path+"/route", `{"route_id":99}`, true); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route: code = %d", rec.Code)
	}

	s.Sim.Tick()
	rec = do(t, h, http.MethodGet, path, "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("get vehicle: %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, path+"/stop", "", true); rec.Code != http.StatusOK {
		t.Errorf("stop: code = %d", rec.Code)
	}
	v, _ := s.Sim.Vehicle(st.ID)
	if _, ok := v.State.(vehicle.Idle); !ok {
		t.Errorf("state after stop = %s", vehicle.StateName(v.State))
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/vehicles/999", "", false); rec.Code != http.StatusNotFound {
		t.Errorf("missing vehicle: code = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/vehicles/999/stop", "", true); rec.Code != http.StatusNotFound {
		t.Errorf("stop missing vehicle: code = %d", rec.Code)
	}

	var list []vehicle.Status
	decode(t, do(t, h, http.MethodGet, "/api/v1/vehicles", "", false), &list)
	if len(list) != 1 {
		t.Errorf("vehicles = %d, want 1", len(list))
	}
}

func TestEventsFilter(t *testing.T) {
	_, h := newTestServer(t, 1_000_000)
	for i := range 3 {
		body := `{"x":` + itoa(uint64(5+i)) + `,"y":5,"kind":"road"}`
		if rec := do(t, h, http.MethodPost, "/api/v1/build", body, true); rec.Code != http.StatusOK {
			t.Fatalf("build: %d", rec.Code)
		}
	}

	var events []engine.Event
	decode(t, do(t, h, http.MethodGet, "/api/v1/events?category=build&limit=2", "", false), &events)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if !strings.Contains(events[1].Description, "(7,5)") {
		t.Errorf("newest event = %q", events[1].Description)
	}

	decode(t, do(t, h, http.MethodGet, "/api/v1/events?category=market", "", false), &events)
	if len(events) != 0 {
		t.Errorf("market events = %d, want 0", len(events))
	}
}

func TestSpeed(t *testing.T) {
	s, h := newTestServer(t, 1_000_000)

	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":4}`, true); rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if s.Eng.Speed() != 4 {
		t.Errorf("speed = %v", s.Eng.Speed())
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":5000}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range: code = %d", rec.Code)
	}
}

func TestSnapshotToFiles(t *testing.T) {
	s, h := newTestServer(t, 1_000_000)
	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", true); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no storage: code = %d", rec.Code)
	}

	fs, err := persistence.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.Files = fs
	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", true); rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d %s", rec.Code, rec.Body.String())
	}
	if _, err := fs.Load(s.Sim.WorldID.String()); err != nil {
		t.Errorf("snapshot not on disk: %v", err)
	}
}

func TestCommandRateLimit(t *testing.T) {
	s, _ := newTestServer(t, 1_000_000)
	s.CommandRate = 2
	h := s.Handler(context.Background())

	for i := range 3 {
		rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":1}`, true)
		want := http.StatusOK
		if i == 2 {
			want = http.StatusTooManyRequests
		}
		if rec.Code != want {
			t.Errorf("request %d: code = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestFailedAuthIsRateLimited(t *testing.T) {
	s, _ := newTestServer(t, 1_000_000)
	s.CommandRate = 2
	h := s.Handler(context.Background())

	for i := range 2 {
		if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":1}`, false); rec.Code != http.StatusUnauthorized {
			t.Errorf("attempt %d: code = %d, want 401", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":1}`, true)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("after failed attempts: code = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(ctx, 1, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("a") {
		t.Fatal("second request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own bucket")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Errorf("RetryAfter = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("window reset should refill the bucket")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name, xff, remote, want string
	}{
		{"forwarded", "10.0.0.1, 10.0.0.2", "1.2.3.4:5", "10.0.0.1"},
		{"socket", "", "1.2.3.4:5", "1.2.3.4"},
		{"bare", "", "1.2.3.4", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// No subscribers: publishing must not block.
	for range 200 {
		hub.Publish(Message{Type: "tick"})
	}
	if hub.Clients() != 0 {
		t.Errorf("clients = %d", hub.Clients())
	}
}

func itoa(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
