package vehicle

import (
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/world"
)

const (
	DaysPerYear        = 365
	reliabilityDecay   = 5
	serviceInterval    = 180
	repairBonus        = 20
	repairChance       = 10  // out of 256
	onTimeThreshold    = 0.8 // roll must exceed this
	stationSearchRange = 2
	deliveryRange      = 2
)

// Settings are the engine-wide knobs for vehicle behaviour.
type Settings struct {
	BreakdownsEnabled bool  `yaml:"breakdowns_enabled"`
	DeliveryRate      int64 `yaml:"delivery_rate"` // flat profit per unit delivered
}

// DefaultSettings matches the shipped configuration: no breakdowns and a
// flat rate of 10 per unit.
func DefaultSettings() Settings {
	return Settings{BreakdownsEnabled: false, DeliveryRate: 10}
}

// Outcome reports what happened to a vehicle in one Update.
type Outcome struct {
	Loaded    uint32
	Delivered uint64
	Profit    int64
	OnTime    bool
	Arrived   bool
	NoPath    bool
	BrokeDown bool
	Repaired  bool
}

// Update advances one vehicle by one tick against the grid.
func Update(v *Vehicle, g *world.Grid, rng entropy.Source, s Settings) Outcome {
	var out Outcome

	v.Age++
	if v.Age%DaysPerYear == 0 {
		v.Reliability = world.SatSub(v.Reliability, reliabilityDecay)
	}

	if _, broken := v.State.(Broken); s.BreakdownsEnabled && !broken && v.Age-v.LastService > serviceInterval {
		if rng.Intn(256) > int(v.Reliability) {
			v.State = Broken{}
			out.BrokeDown = true
			return out
		}
	}

	switch st := v.State.(type) {
	case nil, Idle:
		// Without orders a vehicle holds its cargo and stays put.
		if len(v.Route) == 0 {
			v.State = Idle{}
			break
		}
		if shouldUnload(v, g) {
			v.State = Unloading{}
		} else {
			out.NoPath = !startTrip(v, g)
		}

	case Moving:
		st.Progress += float64(v.Speed) / 1000
		if st.Progress < 1 {
			v.State = st
			break
		}
		v.Pos = st.To
		v.PathIndex++
		if v.PathIndex < len(v.Path) {
			v.State = Moving{From: st.To, To: v.Path[v.PathIndex]}
		} else {
			v.State = Loading{}
			out.Arrived = true
		}

	case Loading:
		out.Loaded = load(v, g)
		v.State = Idle{}
		v.Path, v.PathIndex = nil, 0
		if len(v.Route) > 0 {
			v.RouteIndex = (v.RouteIndex + 1) % len(v.Route)
		}

	case Unloading:
		out.Delivered, out.OnTime = unload(v, g, rng)
		out.Profit = int64(out.Delivered) * s.DeliveryRate
		v.Profit += out.Profit
		v.State = Idle{}

	case Broken:
		if rng.Intn(256) < repairChance {
			v.State = Idle{}
			v.LastService = v.Age
			v.Reliability = min(v.Reliability+repairBonus, 100)
			out.Repaired = true
		}
	}
	return out
}

// startTrip plans a path to the current waypoint. A vehicle already on the
// waypoint goes straight to Loading. Returns false if no path exists.
func startTrip(v *Vehicle, g *world.Grid) bool {
	if v.RouteIndex >= len(v.Route) {
		v.RouteIndex = 0
	}
	path, ok := FindPath(g, v.Kind, v.Pos, v.Route[v.RouteIndex])
	if !ok {
		return false
	}
	v.Path = path
	if len(path) == 1 {
		v.PathIndex = 0
		v.State = Loading{}
		return true
	}
	v.PathIndex = 1
	v.State = Moving{From: v.Pos, To: path[1]}
	return true
}

// shouldUnload is true when the vehicle carries cargo picked up elsewhere and
// a town is within delivery range.
func shouldUnload(v *Vehicle, g *world.Grid) bool {
	if v.Cargo.IsZero() {
		return false
	}
	if v.LoadOrigin != nil && *v.LoadOrigin == v.Pos {
		return false
	}
	return len(g.TownsWithin(v.Pos, deliveryRange)) > 0
}

// load pulls cargo from the station on the vehicle's tile, or the first
// station within range, in canonical cargo order honouring the filter.
func load(v *Vehicle, g *world.Grid) uint32 {
	at := v.Pos
	st, ok := g.StationAt(at)
	if !ok {
		if at, ok = g.FirstStationWithin(v.Pos, stationSearchRange); !ok {
			return 0
		}
		st, _ = g.StationAt(at)
	}

	wasEmpty := v.Cargo.IsZero()
	capacity := v.Capacity()
	var loaded uint32
	for _, k := range world.AllCargo() {
		free := world.SatSub(capacity, v.Load())
		if free == 0 {
			break
		}
		if !accepts(v.Filter, k) {
			continue
		}
		n := min(st.CargoWaiting[k], free)
		if n == 0 {
			continue
		}
		v.Cargo.Add(k, n)
		st.CargoWaiting.Sub(k, n)
		loaded += n
	}
	if loaded > 0 && wasEmpty {
		origin := v.Pos
		v.LoadOrigin = &origin
	}
	return loaded
}

func accepts(filter []world.CargoKind, k world.CargoKind) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == k {
			return true
		}
	}
	return false
}

// unload drains all cargo into every town within range. Each town receives
// the full quantity; the return value sums over towns.
func unload(v *Vehicle, g *world.Grid, rng entropy.Source) (delivered uint64, onTime bool) {
	if v.Cargo.IsZero() {
		return 0, false
	}
	for _, c := range g.TownsWithin(v.Pos, deliveryRange) {
		town, _ := g.TownAt(c)
		for k, n := range v.Cargo {
			if n == 0 {
				continue
			}
			town.Demand.Sub(world.CargoKind(k), n)
			delivered += uint64(n)
		}
	}
	v.Cargo = world.CargoMap{}
	v.LoadOrigin = nil
	v.TotalDeliveries++
	if rng.Float64() > onTimeThreshold {
		v.OnTimeDeliveries++
		onTime = true
	}
	return delivered, onTime
}
