// Package api serves the simulation over HTTP.
// GET endpoints are public (read-only projections).
// POST endpoints require a bearer token and act as the player's company.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/persistence"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	Lock     sync.Locker // shared with the engine loop
	Hub      *Hub
	DB       *persistence.DB
	Files    *persistence.FileStore
	Company  int    // company index that admin commands act as
	Addr     string // listen address, e.g. ":8080"
	AdminKey string // bearer token for POST endpoints; empty disables them

	// CommandRate limits admin POSTs per client per minute. 0 = 120.
	CommandRate int

	srv *http.Server
}

// Handler builds the routing table. Exposed for tests.
func (s *Server) Handler(ctx context.Context) http.Handler {
	rate := s.CommandRate
	if rate <= 0 {
		rate = 120
	}
	limiter := NewRateLimiter(ctx, rate, time.Minute)
	// Failed token checks count against the limit too.
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimitMiddleware(limiter, s.adminOnly(h))
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/tile/{x}/{y}", s.handleTile)
	mux.HandleFunc("GET /api/v1/vehicles", s.handleVehicles)
	mux.HandleFunc("GET /api/v1/vehicles/{id}", s.handleVehicle)
	mux.HandleFunc("GET /api/v1/market", s.handleMarket)
	mux.HandleFunc("GET /api/v1/company", s.handleCompany)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)
	if s.Hub != nil {
		mux.HandleFunc("GET /api/v1/ws", s.Hub.ServeWS)
	}

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/build", admin(s.handleBuild))
	mux.HandleFunc("POST /api/v1/vehicles", admin(s.handleBuyVehicle))
	mux.HandleFunc("POST /api/v1/routes", admin(s.handleCreateRoute))
	mux.HandleFunc("POST /api/v1/vehicles/{id}/route", admin(s.handleVehicleRoute))
	mux.HandleFunc("POST /api/v1/vehicles/{id}/stop", admin(s.handleStopVehicle))
	mux.HandleFunc("POST /api/v1/speed", admin(s.handleSpeed))
	mux.HandleFunc("POST /api/v1/snapshot", admin(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start serves the API in a goroutine until Shutdown.
func (s *Server) Start(ctx context.Context) {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "websocket", s.Hub != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// CORS_ORIGINS holds a comma-separated allow list; localhost dev servers are
// always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.AdminKey)) == 1
}

// adminOnly rejects requests without the admin bearer token.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no TYCOON_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// locked runs fn with the simulation lock held.
func (s *Server) locked(fn func()) {
	if s.Lock != nil {
		s.Lock.Lock()
		defer s.Lock.Unlock()
	}
	fn()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st engine.Status
	s.locked(func() { st = s.Sim.Status() })

	resp := map[string]any{
		"name":   "Freight Tycoon",
		"status": st,
	}
	if s.Eng != nil {
		resp["speed"] = s.Eng.Speed()
		resp["running"] = s.Eng.Running()
	}
	if s.Hub != nil {
		resp["subscribers"] = s.Hub.Clients()
	}
	writeJSON(w, resp)
}

// handleMap returns the rendered map. ?format=text returns plain text.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var rendered string
	var width, height int
	var towns, industries, stations []world.Coord
	s.locked(func() {
		rendered = s.Sim.Render()
		width, height = s.Sim.Grid.Width, s.Sim.Grid.Height
		towns, industries, stations = s.Sim.Grid.Towns(), s.Sim.Grid.Industries(), s.Sim.Grid.Stations()
	})

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, rendered)
		return
	}
	writeJSON(w, map[string]any{
		"width":      width,
		"height":     height,
		"rows":       strings.Split(strings.TrimSuffix(rendered, "\n"), "\n"),
		"towns":      towns,
		"industries": industries,
		"stations":   stations,
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	x, err1 := strconv.Atoi(r.PathValue("x"))
	y, err2 := strconv.Atoi(r.PathValue("y"))
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	var view engine.TileView
	var ok bool
	s.locked(func() { view, ok = s.Sim.TileView(x, y) })
	if !ok {
		http.Error(w, "tile not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	owner := -1
	if o := r.URL.Query().Get("company"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil {
			http.Error(w, "invalid company", http.StatusBadRequest)
			return
		}
		owner = n
	}
	var out []vehicle.Status
	s.locked(func() { out = s.Sim.VehicleStatuses(owner) })
	writeJSON(w, out)
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid vehicle id", http.StatusBadRequest)
		return
	}
	var st vehicle.Status
	var ok bool
	s.locked(func() {
		var v *vehicle.Vehicle
		if v, ok = s.Sim.Vehicle(vehicle.ID(id)); ok {
			st = v.Status()
		}
	})
	if !ok {
		http.Error(w, "vehicle not found", http.StatusNotFound)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	var report any
	s.locked(func() { report = s.Sim.MarketReport() })
	writeJSON(w, report)
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	idx := s.Company
	if c := r.URL.Query().Get("id"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			http.Error(w, "invalid company", http.StatusBadRequest)
			return
		}
		idx = n
	}
	var resp json.RawMessage
	var err error
	s.locked(func() {
		stats, e := s.Sim.CompanyStats(idx)
		if e != nil {
			err = e
			return
		}
		// Routes are live pointers; encode before releasing the lock.
		resp, err = json.Marshal(map[string]any{"stats": stats, "routes": s.Sim.Companies[idx].Routes})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= engine.MaxEvents {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.locked(func() { events = s.Sim.RecentEvents(0) })

	if category != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	writeJSON(w, events)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

type coordJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func toCoords(in []coordJSON) []world.Coord {
	out := make([]world.Coord, len(in))
	for i, c := range in {
		out[i] = world.Coord{X: c.X, Y: c.Y}
	}
	return out
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X    int    `json:"x"`
		Y    int    `json:"y"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	kind, err := engine.ParseBuildKind(req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	var money int64
	s.locked(func() {
		if err = s.Sim.Build(s.Company, req.X, req.Y, kind); err == nil {
			money = s.Sim.Companies[s.Company].Money
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishCommand("build", map[string]any{"x": req.X, "y": req.Y, "kind": kind.String()})
	writeJSON(w, map[string]any{"built": kind.String(), "x": req.X, "y": req.Y, "money": money})
}

func (s *Server) handleBuyVehicle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"` // empty or "auto" picks from the tile
		X    int    `json:"x"`
		Y    int    `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var id vehicle.ID
	var st vehicle.Status
	var err error
	s.locked(func() {
		var p vehicle.PurchaseType
		if req.Type == "" || strings.EqualFold(req.Type, "auto") {
			p, err = s.Sim.RecommendClass(req.X, req.Y)
		} else {
			p, err = vehicle.ParsePurchaseType(req.Type)
		}
		if err != nil {
			return
		}
		if id, err = s.Sim.BuyVehicle(s.Company, p, req.X, req.Y); err != nil {
			return
		}
		v, _ := s.Sim.Vehicle(id)
		st = v.Status()
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishCommand("buy_vehicle", st)
	writeJSONStatus(w, http.StatusCreated, st)
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string      `json:"name"`
		Stops []coordJSON `json:"stops"`
		Cargo []string    `json:"cargo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	cargo := make([]world.CargoKind, 0, len(req.Cargo))
	for _, name := range req.Cargo {
		k, ok := world.ParseCargo(name)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown cargo %q", name), http.StatusBadRequest)
			return
		}
		cargo = append(cargo, k)
	}

	var resp json.RawMessage
	var err error
	s.locked(func() {
		route, e := s.Sim.CreateRoute(s.Company, req.Name, toCoords(req.Stops), cargo)
		if e != nil {
			err = e
			return
		}
		resp, err = json.Marshal(struct {
			*company.Route
			Estimate engine.RouteEstimate `json:"estimate"`
		}{route, s.Sim.EstimateRoute(route)})
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.publishCommand("create_route", resp)
	writeJSONStatus(w, http.StatusCreated, resp)
}

// handleVehicleRoute assigns a named route ({"route_id": n}) or an ad-hoc
// list of stops ({"stops": [...]}).
func (s *Server) handleVehicleRoute(w http.ResponseWriter, r *http.Request) {
	id, perr := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if perr != nil {
		http.Error(w, "invalid vehicle id", http.StatusBadRequest)
		return
	}
	var req struct {
		RouteID uint32      `json:"route_id"`
		Stops   []coordJSON `json:"stops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var st vehicle.Status
	var err error
	s.locked(func() {
		if req.RouteID != 0 {
			err = s.Sim.AssignRoute(vehicle.ID(id), req.RouteID)
		} else {
			err = s.Sim.SetRoute(vehicle.ID(id), toCoords(req.Stops))
		}
		if err == nil {
			v, _ := s.Sim.Vehicle(vehicle.ID(id))
			st = v.Status()
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleStopVehicle(w http.ResponseWriter, r *http.Request) {
	id, perr := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if perr != nil {
		http.Error(w, "invalid vehicle id", http.StatusBadRequest)
		return
	}
	var err error
	s.locked(func() { err = s.Sim.StopVehicle(vehicle.ID(id)) })
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"stopped": id})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil && s.Files == nil {
		http.Error(w, "no storage configured", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{}
	var err error
	s.locked(func() {
		snap := persistence.Capture(s.Sim)
		resp["tick"] = snap.Tick
		resp["snapshot_id"] = snap.ID
		if s.DB != nil {
			if err = s.DB.Save(r.Context(), snap); err != nil {
				return
			}
		}
		if s.Files != nil {
			var path string
			if path, err = s.Files.Save(snap); err != nil {
				return
			}
			resp["file"] = path
		}
	})
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	resp["message"] = "snapshot saved"
	writeJSON(w, resp)
}

func (s *Server) publishCommand(name string, data any) {
	if s.Hub == nil {
		return
	}
	var tick uint64
	s.locked(func() { tick = s.Sim.CurrentTick() })
	s.Hub.Publish(Message{Type: "command", Tick: tick, Data: map[string]any{"command": name, "result": data}})
}

// PublishTick forwards a tick report to websocket subscribers. Wire it to
// Engine.OnTick.
func (s *Server) PublishTick(r engine.TickReport) {
	if s.Hub != nil {
		s.Hub.Publish(Message{Type: "tick", Tick: r.Tick, Data: r})
	}
}

// statusFor maps command errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownVehicle), errors.Is(err, engine.ErrUnknownRoute), errors.Is(err, engine.ErrUnknownCompany):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrTileOccupied):
		return http.StatusConflict
	case errors.Is(err, engine.ErrOutOfBounds), errors.Is(err, engine.ErrBadTerrain),
		errors.Is(err, engine.ErrRouteTooShort), errors.Is(err, engine.ErrUnknownBuild),
		errors.Is(err, vehicle.ErrUnknownPurchase):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
