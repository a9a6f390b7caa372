package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

// midPathSim returns a world with a bus part-way along a road and a
// second vehicle on a named route.
func midPathSim(t *testing.T) *engine.Simulation {
	t.Helper()
	g := world.NewGrid(12, 8)
	c := company.New("Test Co", 2_000_000)
	sim := engine.NewSimulation(g, nil, []*company.Company{c}, entropy.NewSeeded(3), vehicle.DefaultSettings())

	sim.PlaceContent(1, 1, world.NewTown("Chester", 1200, 0.5))
	sim.PlaceContent(2, 1, &world.Station{Name: "Bus Stop 1", Type: world.StationRoad})
	sim.PlaceContent(9, 1, world.NewTown("Franklin", 900, 0.3))
	sim.PlaceContent(8, 1, &world.Station{Name: "Bus Stop 2", Type: world.StationRoad})
	sim.PlaceContent(4, 5, world.NewIndustry(world.CoalMine, 40))
	for x := 3; x < 8; x++ {
		sim.PlaceContent(x, 1, world.Road{})
	}
	if err := sim.Build(0, 5, 6, engine.BuildStation); err != nil {
		t.Fatal(err)
	}

	bus, err := sim.BuyVehicle(0, vehicle.BuyBus, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	r, err := sim.CreateRoute(0, "east-west", []world.Coord{{X: 8, Y: 1}, {X: 2, Y: 1}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sim.AssignRoute(bus, r.ID); err != nil {
		t.Fatal(err)
	}
	truck, _ := sim.BuyVehicle(0, vehicle.BuySmallTruck, 5, 6)
	if err := sim.SetRoute(truck, []world.Coord{{X: 5, Y: 6}}); err != nil {
		t.Fatal(err)
	}

	for range 8 {
		sim.Tick()
	}
	v, _ := sim.Vehicle(bus)
	if _, ok := v.State.(vehicle.Moving); !ok {
		t.Fatalf("bus should be mid-path, state = %s", vehicle.StateName(v.State))
	}
	return sim
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func assertSameWorld(t *testing.T, want, got *engine.Simulation) {
	t.Helper()
	if got.WorldID != want.WorldID || got.LastTick != want.LastTick || got.NextVehicleID != want.NextVehicleID {
		t.Errorf("header mismatch: got %v/%d/%d want %v/%d/%d",
			got.WorldID, got.LastTick, got.NextVehicleID, want.WorldID, want.LastTick, want.NextVehicleID)
	}
	checks := []struct {
		name      string
		want, got any
	}{
		{"grid", want.Grid.State(), got.Grid.State()},
		{"market", want.Market, got.Market},
		{"vehicles", want.Vehicles, got.Vehicles},
		{"companies", want.Companies, got.Companies},
	}
	for _, c := range checks {
		if w, g := mustJSON(t, c.want), mustJSON(t, c.got); w != g {
			t.Errorf("%s differs after round trip:\nwant %s\ngot  %s", c.name, w, g)
		}
	}
	if len(got.Events) != len(want.Events) {
		t.Errorf("events = %d, want %d", len(got.Events), len(want.Events))
	}
}

// assertSameFuture ticks both worlds with identical randomness and checks
// that the vehicles end up in the same place.
func assertSameFuture(t *testing.T, a, b *engine.Simulation) {
	t.Helper()
	a.SetRand(entropy.NewSeeded(11))
	b.SetRand(entropy.NewSeeded(11))
	for range 25 {
		a.Tick()
		b.Tick()
	}
	if w, g := mustJSON(t, a.Vehicles), mustJSON(t, b.Vehicles); w != g {
		t.Errorf("restored world diverged:\nwant %s\ngot  %s", w, g)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Options{Dialect: DialectSQLite, SQLitePath: filepath.Join(t.TempDir(), "world.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Load(ctx); !errors.Is(err, ErrNoWorld) {
		t.Fatalf("empty db Load err = %v, want ErrNoWorld", err)
	}

	sim := midPathSim(t)
	if err := db.Save(ctx, Capture(sim)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A second save fully replaces the first.
	if err := db.Save(ctx, Capture(sim)); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if !db.HasWorldState(ctx) {
		t.Fatal("HasWorldState = false after save")
	}
	if tick, _ := db.GetMeta(ctx, "last_tick"); tick != "8" {
		t.Errorf("last_tick meta = %q", tick)
	}

	snap, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	restored, err := snap.Restore(entropy.NewSeeded(3))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	assertSameWorld(t, sim, restored)
	assertSameFuture(t, sim, restored)
}

func TestMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "world.db")
	for range 2 {
		db, err := Open(ctx, Options{SQLitePath: path})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if db.Dialect() != DialectSQLite {
			t.Errorf("default dialect = %q", db.Dialect())
		}
		db.Close()
	}
}

func TestOpenRejectsBadOptions(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{Dialect: "oracle"}); err == nil {
		t.Error("unknown dialect should fail")
	}
	if _, err := Open(ctx, Options{Dialect: DialectPostgres}); err == nil {
		t.Error("postgres without DSN should fail")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sim := midPathSim(t)

	path, err := fs.Save(Capture(sim))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != sim.WorldID.String()+".json" {
		t.Errorf("path = %s", path)
	}
	ids, err := fs.List()
	if err != nil || len(ids) != 1 || ids[0] != sim.WorldID.String() {
		t.Fatalf("List = %v, %v", ids, err)
	}

	snap, err := fs.Load(sim.WorldID.String())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	restored, err := snap.Restore(entropy.NewSeeded(3))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	assertSameWorld(t, sim, restored)
	assertSameFuture(t, sim, restored)

	if err := fs.Delete(sim.WorldID.String()); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Load(sim.WorldID.String()); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestRestoreRejectsBadSnapshot(t *testing.T) {
	sim := midPathSim(t)

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"tile count", func(s *Snapshot) { s.Grid.Tiles = s.Grid.Tiles[:3] }},
		{"index mismatch", func(s *Snapshot) { s.Grid.Towns = append(s.Grid.Towns, world.Coord{X: 0, Y: 0}) }},
		{"missing market", func(s *Snapshot) { s.Market = nil }},
		{"orphan vehicle", func(s *Snapshot) { s.Companies = nil }},
		{"duplicate vehicle id", func(s *Snapshot) {
			s.Vehicles = append(append([]*vehicle.Vehicle(nil), s.Vehicles...), s.Vehicles[0])
		}},
		{"duplicate town", func(s *Snapshot) { s.Grid.Towns = append(s.Grid.Towns, s.Grid.Towns[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Capture(sim)
			snap.Grid.Tiles = append([]world.Tile(nil), snap.Grid.Tiles...)
			tt.mutate(&snap)
			if _, err := snap.Restore(entropy.NewSeeded(1)); err == nil {
				t.Error("Restore should fail")
			}
		})
	}
}
