package vehicle

import (
	"encoding/json"
	"math"

	"github.com/talgya/freight-tycoon/internal/world"
)

// ID identifies a vehicle. Assigned sequentially by the owning simulation.
type ID uint32

// Vehicle is one owned transport unit.
type Vehicle struct {
	ID    ID             `json:"id"`
	Owner int            `json:"owner"` // company index
	Kind  Kind           `json:"-"`
	Pos   world.Coord    `json:"pos"`
	State State          `json:"-"`
	Cargo world.CargoMap `json:"cargo"`

	Route      []world.Coord     `json:"route"`
	RouteIndex int               `json:"route_index"`
	RouteID    uint32            `json:"route_id,omitempty"` // 0 = ad-hoc route
	Filter     []world.CargoKind `json:"filter,omitempty"`

	Path      []world.Coord `json:"path,omitempty"`
	PathIndex int           `json:"path_index"`

	// LoadOrigin is where the oldest cargo on board was picked up.
	LoadOrigin *world.Coord `json:"load_origin,omitempty"`

	Age         uint32 `json:"age"`
	Reliability uint8  `json:"reliability"`
	Speed       uint32 `json:"speed"`
	LastService uint32 `json:"last_service"`

	Profit           int64  `json:"profit"`
	OnTimeDeliveries uint32 `json:"on_time_deliveries"`
	TotalDeliveries  uint32 `json:"total_deliveries"`
}

// New builds an idle vehicle with the speed and reliability its kind implies.
func New(id ID, kind Kind, pos world.Coord) *Vehicle {
	speed, rel := Stats(kind)
	return &Vehicle{
		ID:          id,
		Kind:        kind,
		Pos:         pos,
		State:       Idle{},
		Speed:       speed,
		Reliability: rel,
	}
}

// Capacity is the total cargo this vehicle can hold.
func (v *Vehicle) Capacity() uint32 {
	return Capacity(v.Kind)
}

// Load is the total cargo currently on board.
func (v *Vehicle) Load() uint32 {
	return uint32(v.Cargo.Total())
}

// AssignRoute replaces the route and restarts it from the first waypoint.
// A vehicle in motion drops its current hop and waits at its last tile.
// Reachability is not checked until the next pathfinding attempt.
func (v *Vehicle) AssignRoute(routeID uint32, stops []world.Coord, filter []world.CargoKind) {
	v.Route = append([]world.Coord(nil), stops...)
	v.RouteIndex = 0
	v.RouteID = routeID
	v.Filter = append([]world.CargoKind(nil), filter...)
	v.Path = nil
	v.PathIndex = 0
	if _, broken := v.State.(Broken); !broken {
		v.State = Idle{}
	}
}

// Stop clears the route and any in-flight path. The vehicle stays where it is.
func (v *Vehicle) Stop() {
	v.Route = nil
	v.RouteIndex = 0
	v.RouteID = 0
	v.Path = nil
	v.PathIndex = 0
	if _, broken := v.State.(Broken); !broken {
		v.State = Idle{}
	}
}

// RunningCost is the per-tick upkeep: base × age factor × reliability factor.
func (v *Vehicle) RunningCost() int64 {
	age := 1 + float64(v.Age)/365*0.1
	rel := 2 - float64(v.Reliability)/100
	return int64(math.Round(runningBase(v.Kind.Class()) * age * rel))
}

// Value is the purchase cost depreciated 15% per year, capped at 80%.
func (v *Vehicle) Value() int64 {
	dep := min(float64(v.Age)/365*0.15, 0.8)
	return int64(math.Round(float64(PurchaseCost(v.Kind)) * (1 - dep)))
}

// OnTimeRatio returns on-time over total deliveries, or 1 with none yet.
func (v *Vehicle) OnTimeRatio() float64 {
	if v.TotalDeliveries == 0 {
		return 1
	}
	return float64(v.OnTimeDeliveries) / float64(v.TotalDeliveries)
}

// IsOnTime reports whether the on-time ratio exceeds 80%.
func (v *Vehicle) IsOnTime() bool {
	return v.TotalDeliveries == 0 || v.OnTimeRatio() > 0.8
}

// Status is the read-only per-vehicle projection.
type Status struct {
	ID          ID             `json:"id"`
	Name        string         `json:"name"`
	Class       string         `json:"class"`
	Glyph       string         `json:"glyph"`
	Pos         world.Coord    `json:"pos"`
	State       string         `json:"state"`
	Age         uint32         `json:"age"`
	Reliability uint8          `json:"reliability"`
	Capacity    uint32         `json:"capacity"`
	Cargo       world.CargoMap `json:"cargo"`
	Profit      int64          `json:"profit"`
	OnTimeRatio float64        `json:"on_time_ratio"`
	Deliveries  uint32         `json:"deliveries"`
	Route       []world.Coord  `json:"route"`
	RouteIndex  int            `json:"route_index"`
	Value       int64          `json:"value"`
}

// Status returns the projection of v.
func (v *Vehicle) Status() Status {
	return Status{
		ID:          v.ID,
		Name:        Name(v.Kind),
		Class:       v.Kind.Class().String(),
		Glyph:       string(Glyph(v.Kind)),
		Pos:         v.Pos,
		State:       StateName(v.State),
		Age:         v.Age,
		Reliability: v.Reliability,
		Capacity:    v.Capacity(),
		Cargo:       v.Cargo,
		Profit:      v.Profit,
		OnTimeRatio: v.OnTimeRatio(),
		Deliveries:  v.TotalDeliveries,
		Route:       v.Route,
		RouteIndex:  v.RouteIndex,
		Value:       v.Value(),
	}
}

type vehicleAlias Vehicle

type vehicleJSON struct {
	*vehicleAlias
	Kind  json.RawMessage `json:"kind"`
	State json.RawMessage `json:"state"`
}

func (v *Vehicle) MarshalJSON() ([]byte, error) {
	kind, err := MarshalKind(v.Kind)
	if err != nil {
		return nil, err
	}
	state, err := MarshalState(v.State)
	if err != nil {
		return nil, err
	}
	return json.Marshal(vehicleJSON{vehicleAlias: (*vehicleAlias)(v), Kind: kind, State: state})
}

func (v *Vehicle) UnmarshalJSON(b []byte) error {
	aux := vehicleJSON{vehicleAlias: (*vehicleAlias)(v)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	kind, err := UnmarshalKind(aux.Kind)
	if err != nil {
		return err
	}
	state, err := UnmarshalState(aux.State)
	if err != nil {
		return err
	}
	v.Kind, v.State = kind, state
	return nil
}
