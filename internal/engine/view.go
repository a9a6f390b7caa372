package engine

import (
	"fmt"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/economy"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

// TileView is the read-only projection of one tile.
type TileView struct {
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Terrain  string         `json:"terrain"`
	Height   uint8          `json:"height"`
	Content  string         `json:"content"`
	Label    string         `json:"label"`
	Glyph    string         `json:"glyph"`
	Color    string         `json:"color"`
	Vehicle  string         `json:"vehicle,omitempty"` // glyph of a vehicle standing here
	VColor   string         `json:"vehicle_color,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Stations []world.Coord  `json:"stations_nearby,omitempty"`
}

// TileView projects (x, y). False if out of bounds.
func (s *Simulation) TileView(x, y int) (TileView, bool) {
	t, ok := s.Grid.Tile(x, y)
	if !ok {
		return TileView{}, false
	}
	at := world.Coord{X: x, Y: y}
	view := TileView{
		X:        x,
		Y:        y,
		Terrain:  world.TerrainName(t.Terrain),
		Height:   t.Height,
		Content:  contentName(t.Content),
		Label:    world.Describe(t),
		Glyph:    string(world.Glyph(t)),
		Color:    world.Color(t),
		Stations: s.Grid.StationsWithin(at, 2),
	}
	if v := s.vehicleAt(at); v != nil {
		view.Vehicle = string(vehicle.Glyph(v.Kind))
		view.VColor = vehicle.Color(v.Kind)
	}

	switch c := t.Content.(type) {
	case *world.Town:
		view.Details = map[string]any{
			"population":  c.Population,
			"growth_rate": c.GrowthRate,
			"demand":      c.Demand,
			"supply":      c.Supply,
		}
	case *world.Industry:
		view.Details = map[string]any{
			"production_rate": c.ProductionRate,
			"input":           c.Input,
			"output":          c.Output,
			"stockpile":       c.Stockpile,
		}
	case *world.Station:
		view.Details = map[string]any{
			"type":          c.Type.String(),
			"cargo_waiting": c.CargoWaiting,
			"connections":   c.Connections,
		}
	case world.Track:
		view.Details = map[string]any{"shape": c.Shape}
	}
	return view, true
}

func contentName(c world.Content) string {
	switch c.(type) {
	case *world.Town:
		return "town"
	case *world.Industry:
		return "industry"
	case *world.Station:
		return "station"
	case world.Track:
		return "track"
	case world.Road:
		return "road"
	}
	return "empty"
}

func (s *Simulation) vehicleAt(at world.Coord) *vehicle.Vehicle {
	for _, v := range s.Vehicles {
		if v.Pos == at {
			return v
		}
	}
	return nil
}

// VehicleStatuses projects every vehicle, ascending by id. A negative
// company index means all companies.
func (s *Simulation) VehicleStatuses(idx int) []vehicle.Status {
	out := make([]vehicle.Status, 0, len(s.Vehicles))
	for _, v := range s.Vehicles {
		if idx >= 0 && v.Owner != idx {
			continue
		}
		out = append(out, v.Status())
	}
	return out
}

// MarketReport projects the market.
func (s *Simulation) MarketReport() economy.Report {
	return s.Market.Report()
}

// CargoValue is the market value of one unit of a cargo kind.
type CargoValue struct {
	Cargo string  `json:"cargo"`
	Price float64 `json:"price"`
}

// RouteEstimate values one unit of each carried cargo over a full lap of a
// route at current market prices.
type RouteEstimate struct {
	Length  int          `json:"length"`
	PerUnit []CargoValue `json:"per_unit"`
}

// EstimateRoute prices a route with Market.PriceFor. Settlement still pays
// the flat delivery rate, so this is a planning figure only.
func (s *Simulation) EstimateRoute(r *company.Route) RouteEstimate {
	cargo := r.Cargo
	if len(cargo) == 0 {
		cargo = world.AllCargo()
	}
	est := RouteEstimate{Length: r.Length()}
	for _, k := range cargo {
		est.PerUnit = append(est.PerUnit, CargoValue{
			Cargo: k.String(),
			Price: s.Market.PriceFor(k, float64(est.Length)),
		})
	}
	return est
}

// CompanyStats summarises company idx.
func (s *Simulation) CompanyStats(idx int) (company.Stats, error) {
	c := s.company(idx)
	if c == nil {
		return company.Stats{}, fmt.Errorf("%w: %d", ErrUnknownCompany, idx)
	}
	return c.Stats(s.Fleet(idx)), nil
}

// Render draws the map with vehicles on top.
func (s *Simulation) Render() string {
	occupied := make(map[world.Coord]rune, len(s.Vehicles))
	for _, v := range s.Vehicles {
		if _, taken := occupied[v.Pos]; !taken {
			occupied[v.Pos] = vehicle.Glyph(v.Kind)
		}
	}
	return s.Grid.Render(func(c world.Coord) (rune, bool) {
		r, ok := occupied[c]
		return r, ok
	})
}

// Status is the headline summary of the whole world.
type Status struct {
	WorldID    string `json:"world_id"`
	Tick       uint64 `json:"tick"`
	Date       string `json:"date"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Towns      int    `json:"towns"`
	Industries int    `json:"industries"`
	Stations   int    `json:"stations"`
	Vehicles   int    `json:"vehicles"`
	Population uint64 `json:"population"`
	Economy    string `json:"economy"`
	Companies  int    `json:"companies"`
}

// Status returns the world summary.
func (s *Simulation) Status() Status {
	st := Status{
		WorldID:    s.WorldID.String(),
		Tick:       s.LastTick,
		Date:       SimTime(s.LastTick),
		Width:      s.Grid.Width,
		Height:     s.Grid.Height,
		Towns:      len(s.Grid.Towns()),
		Industries: len(s.Grid.Industries()),
		Stations:   len(s.Grid.Stations()),
		Vehicles:   len(s.Vehicles),
		Economy:    s.Market.State.String(),
		Companies:  len(s.Companies),
	}
	for _, c := range s.Grid.Towns() {
		if t, ok := s.Grid.TownAt(c); ok {
			st.Population += uint64(t.Population)
		}
	}
	return st
}
