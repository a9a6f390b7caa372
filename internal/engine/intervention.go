package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

var (
	ErrOutOfBounds    = errors.New("coordinate out of bounds")
	ErrTileOccupied   = errors.New("tile is not empty")
	ErrBadTerrain     = errors.New("terrain does not allow this")
	ErrUnknownVehicle = errors.New("unknown vehicle")
	ErrUnknownCompany = errors.New("unknown company")
	ErrUnknownBuild   = errors.New("unknown build kind")

	ErrInsufficientFunds = company.ErrInsufficientFunds
	ErrUnknownRoute      = company.ErrUnknownRoute
	ErrRouteTooShort     = company.ErrRouteTooShort
)

// BuildKind is something a company can construct on a tile.
type BuildKind uint8

const (
	BuildTrack BuildKind = iota
	BuildStation
	BuildRoad
	BuildBusStop
	BuildAirport
	BuildHarbor
)

var buildNames = [...]string{"track", "station", "road", "bus_stop", "airport", "harbor"}

var buildCosts = [...]int64{10_000, 50_000, 5_000, 25_000, 150_000, 100_000}

func (b BuildKind) String() string {
	if int(b) < len(buildNames) {
		return buildNames[b]
	}
	return fmt.Sprintf("build(%d)", b)
}

// Cost is the construction price.
func (b BuildKind) Cost() int64 {
	if int(b) < len(buildCosts) {
		return buildCosts[b]
	}
	return 0
}

// ParseBuildKind accepts the names printed by String, case-insensitively.
func ParseBuildKind(s string) (BuildKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range buildNames {
		if n == s {
			return BuildKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBuild, s)
}

// BuildKinds lists every kind in canonical order.
func BuildKinds() []BuildKind {
	out := make([]BuildKind, len(buildNames))
	for i := range out {
		out[i] = BuildKind(i)
	}
	return out
}

// Build constructs kind at (x, y) for company idx. Nothing changes on error.
func (s *Simulation) Build(idx, x, y int, kind BuildKind) error {
	c := s.company(idx)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownCompany, idx)
	}
	if int(kind) >= len(buildNames) {
		return fmt.Errorf("%w: %d", ErrUnknownBuild, kind)
	}
	at := world.Coord{X: x, Y: y}
	if err := s.checkSite(at, kind); err != nil {
		return err
	}
	if err := c.Spend(kind.Cost()); err != nil {
		return err
	}

	content := s.contentFor(kind)
	s.Grid.SetContent(x, y, content)
	if _, ok := content.(*world.Station); ok {
		c.AddStation(at)
	}

	desc := fmt.Sprintf("%s built %s at (%d,%d) for $%s", c.Name, world.Describe(world.Tile{Content: content}), x, y, humanize.Comma(kind.Cost()))
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: desc,
		Category:    "build",
		Meta:        map[string]any{"company": idx, "kind": kind.String(), "x": x, "y": y},
	})
	slog.Debug("build", "company", c.Name, "kind", kind, "x", x, "y", y)
	return nil
}

func (s *Simulation) checkSite(at world.Coord, kind BuildKind) error {
	t, ok := s.Grid.TileAt(at)
	if !ok {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, at.X, at.Y)
	}
	if t.Terrain == world.TerrainWater {
		return fmt.Errorf("%w: cannot build %s on water", ErrBadTerrain, kind)
	}
	if !world.IsEmpty(t.Content) {
		return fmt.Errorf("%w: (%d,%d)", ErrTileOccupied, at.X, at.Y)
	}
	if kind == BuildHarbor && !s.nextToWater(at) {
		return fmt.Errorf("%w: harbor needs adjacent water", ErrBadTerrain)
	}
	return nil
}

func (s *Simulation) nextToWater(at world.Coord) bool {
	for _, n := range at.Neighbors() {
		if t, ok := s.Grid.TileAt(n); ok && t.Terrain == world.TerrainWater {
			return true
		}
	}
	return false
}

func (s *Simulation) contentFor(kind BuildKind) world.Content {
	n := len(s.Grid.Stations()) + 1
	station := func(t world.StationType, prefix string) *world.Station {
		return &world.Station{Name: fmt.Sprintf("%s %d", prefix, n), Type: t}
	}
	switch kind {
	case BuildTrack:
		return world.Track{Shape: world.TrackHorizontal}
	case BuildRoad:
		return world.Road{}
	case BuildStation:
		return station(world.StationTrain, "Station")
	case BuildBusStop:
		return station(world.StationRoad, "Bus Stop")
	case BuildAirport:
		return station(world.StationAirport, "Airport")
	default:
		return station(world.StationHarbor, "Harbor")
	}
}

// PlaceContent sets content without legality checks or cost. Intended for
// world setup and tests.
func (s *Simulation) PlaceContent(x, y int, c world.Content) bool {
	if !s.Grid.InBounds(x, y) {
		return false
	}
	s.Grid.SetContent(x, y, c)
	return true
}

// RecommendClass suggests what to buy for a tile.
func (s *Simulation) RecommendClass(x, y int) (vehicle.PurchaseType, error) {
	t, ok := s.Grid.Tile(x, y)
	if !ok {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	return vehicle.Recommend(t), nil
}

// BuyVehicle purchases a vehicle for company idx and places it at (x, y).
func (s *Simulation) BuyVehicle(idx int, p vehicle.PurchaseType, x, y int) (vehicle.ID, error) {
	c := s.company(idx)
	if c == nil {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCompany, idx)
	}
	if !s.Grid.InBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	kind := p.Kind()
	cost := vehicle.PurchaseCost(kind)
	if err := c.Spend(cost); err != nil {
		return 0, err
	}

	v := vehicle.New(s.NextVehicleID, kind, world.Coord{X: x, Y: y})
	v.Owner = idx
	s.NextVehicleID++
	s.Vehicles = append(s.Vehicles, v)

	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: fmt.Sprintf("%s bought %s #%d for $%s", c.Name, vehicle.Name(kind), v.ID, humanize.Comma(cost)),
		Category:    "vehicle",
		Meta:        map[string]any{"company": idx, "vehicle_id": v.ID, "type": p.String()},
	})
	slog.Info("vehicle purchased", "company", c.Name, "id", v.ID, "type", p, "cost", humanize.Comma(cost))
	return v.ID, nil
}

// CreateRoute registers a named route for company idx.
func (s *Simulation) CreateRoute(idx int, name string, stops []world.Coord, cargo []world.CargoKind) (*company.Route, error) {
	c := s.company(idx)
	if c == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompany, idx)
	}
	if err := s.checkStops(stops); err != nil {
		return nil, err
	}
	r, err := c.CreateRoute(name, stops, cargo)
	if err != nil {
		return nil, err
	}
	s.connectStations(r.Stops)
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: fmt.Sprintf("%s opened %s with %d stops", c.Name, r.Name, len(r.Stops)),
		Category:    "route",
		Meta:        map[string]any{"company": idx, "route_id": r.ID},
	})
	return r, nil
}

// AssignRoute puts a vehicle on one of its owner's routes.
func (s *Simulation) AssignRoute(id vehicle.ID, routeID uint32) error {
	v, ok := s.Vehicle(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
	}
	c := s.company(v.Owner)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrUnknownCompany, v.Owner)
	}
	r, added, err := c.Attach(routeID, id)
	if err != nil {
		return err
	}
	if added || v.RouteID != r.ID {
		v.AssignRoute(r.ID, r.Stops, r.Cargo)
		delete(s.stalled, id)
	}
	return nil
}

// SetRoute gives a vehicle an ad-hoc list of waypoints, detaching it from
// any named route. A single waypoint means "go there".
func (s *Simulation) SetRoute(id vehicle.ID, stops []world.Coord) error {
	v, ok := s.Vehicle(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
	}
	if err := s.checkStops(stops); err != nil {
		return err
	}
	if c := s.company(v.Owner); c != nil {
		c.Detach(id)
	}
	v.AssignRoute(0, stops, nil)
	delete(s.stalled, id)
	return nil
}

// StopVehicle clears a vehicle's orders. It stays where it is.
func (s *Simulation) StopVehicle(id vehicle.ID) error {
	v, ok := s.Vehicle(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
	}
	if c := s.company(v.Owner); c != nil {
		c.Detach(id)
	}
	v.Stop()
	delete(s.stalled, id)
	return nil
}

// connectStations records every other station stop of a route on each
// station stop.
func (s *Simulation) connectStations(stops []world.Coord) {
	for _, at := range stops {
		st, ok := s.Grid.StationAt(at)
		if !ok {
			continue
		}
		for _, other := range stops {
			if other == at || slices.Contains(st.Connections, other) {
				continue
			}
			if _, ok := s.Grid.StationAt(other); ok {
				st.Connections = append(st.Connections, other)
			}
		}
	}
}

func (s *Simulation) checkStops(stops []world.Coord) error {
	for _, st := range stops {
		if !s.Grid.InBounds(st.X, st.Y) {
			return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, st.X, st.Y)
		}
	}
	return nil
}
