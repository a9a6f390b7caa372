package world

import "math"

const (
	industryReach = 3 // industries push cargo to every station within this radius
	townReach     = 2 // towns push passengers to the first station within this radius
)

// stationDelta is a pending addition to a station's waiting cargo.
type stationDelta struct {
	at     Coord
	amount CargoMap
}

// TickUpdate advances the grid by one tick: town growth, industry
// production, then cargo diffusion toward nearby stations.
func (g *Grid) TickUpdate() {
	for _, c := range g.towns {
		if town, ok := g.TownAt(c); ok {
			growTown(town)
		}
	}

	for _, c := range g.industries {
		if ind, ok := g.IndustryAt(c); ok {
			produce(ind)
		}
	}

	deltas := g.collectIndustryTransfers()
	deltas = append(deltas, g.collectTownTransfers()...)
	for _, d := range deltas {
		if st, ok := g.StationAt(d.at); ok {
			for k, n := range d.amount {
				st.CargoWaiting.Add(CargoKind(k), n)
			}
		}
	}
}

func growTown(t *Town) {
	next := math.Floor(float64(t.Population) * (1 + t.GrowthRate/100))
	switch {
	case next >= math.MaxUint32:
		t.Population = math.MaxUint32
	case next > float64(t.Population):
		t.Population = uint32(next)
	}

	base := t.Population / 100
	t.Demand.Add(CargoFood, base)
	t.Demand.Add(CargoGoods, base/2)
	t.Demand.Add(CargoMail, base/4)
	t.Supply.Add(CargoPassengers, t.Population/200)
}

// produce adds the production rate to each output. Industries with inputs
// do not convert and so never accumulate.
func produce(ind *Industry) {
	if len(ind.Input) > 0 {
		return
	}
	for _, out := range ind.Output {
		ind.Stockpile.Add(out, ind.ProductionRate)
	}
}

func (g *Grid) collectIndustryTransfers() []stationDelta {
	var deltas []stationDelta
	for _, c := range g.industries {
		ind, ok := g.IndustryAt(c)
		if !ok {
			continue
		}
		var transfer CargoMap
		for k, amount := range ind.Stockpile {
			if amount > 0 {
				transfer[k] = max(amount/4, 1)
			}
		}
		if transfer.IsZero() {
			continue
		}
		for _, st := range g.StationsWithin(c, industryReach) {
			deltas = append(deltas, stationDelta{at: st, amount: transfer})
		}
		for k, n := range transfer {
			ind.Stockpile.Sub(CargoKind(k), n)
		}
	}
	return deltas
}

func (g *Grid) collectTownTransfers() []stationDelta {
	var deltas []stationDelta
	for _, c := range g.towns {
		town, ok := g.TownAt(c)
		if !ok {
			continue
		}
		passengers := town.Supply[CargoPassengers] / 2
		if passengers == 0 {
			continue
		}
		st, found := g.FirstStationWithin(c, townReach)
		if found {
			var amount CargoMap
			amount[CargoPassengers] = passengers
			deltas = append(deltas, stationDelta{at: st, amount: amount})
		}
		town.Supply.Sub(CargoPassengers, passengers)
	}
	return deltas
}
