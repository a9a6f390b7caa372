package world

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/talgya/freight-tycoon/internal/entropy"
)

func TestTileBounds(t *testing.T) {
	g := NewGrid(10, 8)

	tests := []struct {
		name string
		x, y int
		want bool
	}{
		{"origin", 0, 0, true},
		{"far corner", 9, 7, true},
		{"negative x", -1, 0, false},
		{"negative y", 0, -1, false},
		{"x equals width", 10, 0, false},
		{"y equals height", 0, 8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := g.Tile(tt.x, tt.y); ok != tt.want {
				t.Errorf("Tile(%d, %d) ok = %v, want %v", tt.x, tt.y, ok, tt.want)
			}
		})
	}
}

func TestSetContentOutOfBoundsIsNoop(t *testing.T) {
	g := NewGrid(4, 4)
	g.SetContent(4, 0, NewTown("Nowhere", 100, 1))
	g.SetContent(-1, 2, &Station{Name: "Ghost"})
	if len(g.Towns()) != 0 || len(g.Stations()) != 0 {
		t.Fatalf("out-of-bounds writes were indexed: %s", g)
	}
}

func TestSetContentReindexes(t *testing.T) {
	g := NewGrid(4, 4)
	g.SetContent(1, 1, NewTown("A", 100, 1))
	g.SetContent(2, 2, NewTown("B", 100, 1))
	g.SetContent(1, 1, &Station{Name: "Station 1"})

	towns := g.Towns()
	if len(towns) != 1 || towns[0] != (Coord{2, 2}) {
		t.Errorf("towns = %v, want [(2,2)]", towns)
	}
	if st := g.Stations(); len(st) != 1 || st[0] != (Coord{1, 1}) {
		t.Errorf("stations = %v, want [(1,1)]", st)
	}
}

func TestSetContentKeepsCreationOrder(t *testing.T) {
	g := NewGrid(4, 4)
	g.SetContent(1, 1, NewTown("A", 100, 1))
	g.SetContent(2, 2, NewTown("B", 100, 1))
	g.SetContent(3, 3, NewTown("C", 100, 1))
	g.SetContent(1, 1, NewTown("A2", 200, 1))

	want := []Coord{{1, 1}, {2, 2}, {3, 3}}
	towns := g.Towns()
	if len(towns) != len(want) {
		t.Fatalf("towns = %v, want %v", towns, want)
	}
	for i := range want {
		if towns[i] != want[i] {
			t.Errorf("towns = %v, want %v", towns, want)
			break
		}
	}
	if town, _ := g.TownAt(Coord{1, 1}); town.Name != "A2" {
		t.Errorf("town at (1,1) = %q, want A2", town.Name)
	}
}

func TestTownGrowth(t *testing.T) {
	g := NewGrid(10, 10)
	g.SetContent(2, 2, NewTown("Springfield", 1000, 1.0))

	g.TickUpdate()

	town, _ := g.TownAt(Coord{2, 2})
	if town.Population != 1010 {
		t.Errorf("population = %d, want 1010", town.Population)
	}
	if town.Demand[CargoFood] != 10 || town.Demand[CargoGoods] != 5 || town.Demand[CargoMail] != 2 {
		t.Errorf("demand food/goods/mail = %d/%d/%d, want 10/5/2",
			town.Demand[CargoFood], town.Demand[CargoGoods], town.Demand[CargoMail])
	}
	// 1010/200 = 5 generated; no station so half (2) leaves anyway.
	if town.Supply[CargoPassengers] != 3 {
		t.Errorf("passenger supply = %d, want 3", town.Supply[CargoPassengers])
	}
}

func TestTownPopulationSaturates(t *testing.T) {
	town := NewTown("Mega", math.MaxUint32-5, 2.0)
	growTown(town)
	if town.Population != math.MaxUint32 {
		t.Errorf("population = %d, want saturation at MaxUint32", town.Population)
	}
}

func TestScenarioTenByTen(t *testing.T) {
	g := NewGrid(10, 10)
	g.SetContent(2, 2, NewTown("Springfield", 1000, 1.0))
	g.SetContent(3, 2, &Station{Name: "Station 1", Type: StationRoad})

	g.TickUpdate()

	st, _ := g.StationAt(Coord{3, 2})
	if st.CargoWaiting[CargoPassengers] != 2 {
		t.Errorf("station passengers = %d, want 2", st.CargoWaiting[CargoPassengers])
	}
	town, _ := g.TownAt(Coord{2, 2})
	if town.Supply[CargoPassengers] != 3 {
		t.Errorf("town passenger supply = %d, want 3", town.Supply[CargoPassengers])
	}
}

func TestIndustryProductionAndDiffusion(t *testing.T) {
	g := NewGrid(12, 12)
	g.SetContent(5, 5, NewIndustry(IndustryCoalMine, 40))
	g.SetContent(7, 5, &Station{Name: "Near"})
	g.SetContent(2, 8, &Station{Name: "Corner"}) // Chebyshev 3
	g.SetContent(9, 5, &Station{Name: "Far"})    // Chebyshev 4

	g.TickUpdate()

	ind, _ := g.IndustryAt(Coord{5, 5})
	// 40 produced, 10 pushed out once regardless of station count.
	if ind.Stockpile[CargoCoal] != 30 {
		t.Errorf("stockpile = %d, want 30", ind.Stockpile[CargoCoal])
	}
	for _, tc := range []struct {
		at   Coord
		want uint32
	}{{Coord{7, 5}, 10}, {Coord{2, 8}, 10}, {Coord{9, 5}, 0}} {
		st, _ := g.StationAt(tc.at)
		if got := st.CargoWaiting[CargoCoal]; got != tc.want {
			t.Errorf("station %s coal = %d, want %d", st.Name, got, tc.want)
		}
	}
}

func TestInputIndustryDoesNotProduce(t *testing.T) {
	g := NewGrid(5, 5)
	g.SetContent(2, 2, NewIndustry(IndustrySteelMill, 50))
	for i := 0; i < 5; i++ {
		g.TickUpdate()
	}
	ind, _ := g.IndustryAt(Coord{2, 2})
	if !ind.Stockpile.IsZero() {
		t.Errorf("steel mill stockpile = %v, want empty", ind.Stockpile)
	}
}

func TestSmallStockpileMovesAtLeastOne(t *testing.T) {
	g := NewGrid(5, 5)
	ind := NewIndustry(IndustryCoalMine, 0)
	ind.Stockpile[CargoCoal] = 3
	g.SetContent(1, 1, ind)
	g.SetContent(2, 1, &Station{Name: "S"})

	g.TickUpdate()

	if ind.Stockpile[CargoCoal] != 2 {
		t.Errorf("stockpile = %d, want 2", ind.Stockpile[CargoCoal])
	}
	st, _ := g.StationAt(Coord{2, 1})
	if st.CargoWaiting[CargoCoal] != 1 {
		t.Errorf("station coal = %d, want 1", st.CargoWaiting[CargoCoal])
	}
}

func TestTownPushesToFirstStationOnly(t *testing.T) {
	g := NewGrid(8, 8)
	g.SetContent(3, 3, NewTown("T", 4000, 0))
	g.SetContent(2, 3, &Station{Name: "West"})
	g.SetContent(4, 3, &Station{Name: "East"})

	g.TickUpdate()

	west, _ := g.StationAt(Coord{2, 3})
	east, _ := g.StationAt(Coord{4, 3})
	if west.CargoWaiting[CargoPassengers] != 10 {
		t.Errorf("west passengers = %d, want 10", west.CargoWaiting[CargoPassengers])
	}
	if east.CargoWaiting[CargoPassengers] != 0 {
		t.Errorf("east passengers = %d, want 0", east.CargoWaiting[CargoPassengers])
	}
}

func TestGridStateRoundTrip(t *testing.T) {
	g := NewGrid(6, 4)
	g.SetTerrain(0, 0, TerrainWater, 0)
	g.SetContent(1, 1, NewTown("Marion", 2500, 0.5))
	g.SetContent(2, 1, &Station{Name: "Station 1", Type: StationTrain})
	g.SetContent(3, 1, Track{Shape: TrackHorizontal})
	g.SetContent(4, 1, Road{})
	g.SetContent(4, 2, NewIndustry(IndustryRefinery, 30))

	data, err := json.Marshal(g.State())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var s GridState
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back, err := FromState(s)
	if err != nil {
		t.Fatalf("FromState: %v", err)
	}

	if back.Render(nil) != g.Render(nil) {
		t.Errorf("render mismatch:\n%s\nvs\n%s", back.Render(nil), g.Render(nil))
	}
	ind, ok := back.IndustryAt(Coord{4, 2})
	if !ok || len(ind.Input) != 1 || ind.Input[0] != CargoOil {
		t.Errorf("industry inputs not restored: %+v", ind)
	}
	if tr, _ := back.TileAt(Coord{3, 1}); tr.Content != (Track{Shape: TrackHorizontal}) {
		t.Errorf("track = %#v", tr.Content)
	}
}

func TestFromStateRejectsBadIndex(t *testing.T) {
	g := NewGrid(3, 3)
	g.SetContent(0, 0, NewTown("A", 100, 0))
	g.SetContent(2, 2, &Station{Name: "S"})

	tests := []struct {
		name   string
		mutate func(*GridState)
	}{
		{"points at empty tile", func(s *GridState) { s.Towns = append(s.Towns, Coord{1, 1}) }},
		{"duplicate town", func(s *GridState) { s.Towns = append(s.Towns, Coord{0, 0}) }},
		{"missing station", func(s *GridState) { s.Stations = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := g.State()
			tt.mutate(&s)
			if _, err := FromState(s); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := FromState(g.State()); err != nil {
		t.Errorf("valid state rejected: %v", err)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg, entropy.NewSeeded(1))
	b := Generate(cfg, entropy.NewSeeded(1))
	if a.Render(nil) != b.Render(nil) {
		t.Error("same seed produced different worlds")
	}
	for _, c := range a.Towns() {
		tile, _ := a.TileAt(c)
		if tile.Terrain != TerrainGrass && tile.Terrain != TerrainForest {
			t.Errorf("town at %v on %s", c, TerrainName(tile.Terrain))
		}
		town, _ := a.TownAt(c)
		if town.Population < 500 || town.Population > 5000 {
			t.Errorf("town population %d out of range", town.Population)
		}
	}
	for _, c := range a.Industries() {
		tile, _ := a.TileAt(c)
		if tile.Terrain == TerrainWater {
			t.Errorf("industry at %v on water", c)
		}
	}
}

func TestGlyphs(t *testing.T) {
	tests := []struct {
		tile  Tile
		want  rune
		color string
	}{
		{Tile{Terrain: TerrainGrass, Content: Empty{}}, ' ', "lightgreen"},
		{Tile{Terrain: TerrainWater, Content: Empty{}}, '~', "blue"},
		{Tile{Terrain: TerrainMountain, Content: Empty{}}, '^', "white"},
		{Tile{Content: &Town{}}, '◉', "blue"},
		{Tile{Content: &Industry{}}, '▓', "red"},
		{Tile{Content: &Station{}}, '■', "green"},
		{Tile{Content: Track{Shape: TrackVertical}}, '│', "yellow"},
		{Tile{Terrain: TerrainForest, Content: Road{}}, '.', "gray"},
	}
	for _, tt := range tests {
		if got := Glyph(tt.tile); got != tt.want {
			t.Errorf("Glyph(%s) = %q, want %q", Describe(tt.tile), got, tt.want)
		}
		if got := Color(tt.tile); got != tt.color {
			t.Errorf("Color(%s) = %q, want %q", Describe(tt.tile), got, tt.color)
		}
	}
}

func TestCargoMapJSON(t *testing.T) {
	var m CargoMap
	m.Add(CargoIronOre, 7)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"iron_ore":7}` {
		t.Errorf("json = %s", data)
	}
	var back CargoMap
	if err := json.Unmarshal([]byte(`{"bogus":1}`), &back); err == nil {
		t.Error("expected error for unknown cargo name")
	}
}
