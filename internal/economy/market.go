// Package economy models the cargo market: per-kind supply, demand and
// price, modulated by a coarse economic state.
package economy

import (
	"fmt"
	"sort"

	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/world"
)

const (
	TicksPerMonth        = 30
	TicksPerStateRoll    = 120
	DefaultInflation     = 0.02
	minMultiplier        = 0.5
	maxMultiplier        = 1.5
	noSupplyRatio        = 2.0
	unknownCargoPrice    = 10.0
	topCommodityCount    = 5
	boomDemandDrift      = 1.1
	recessionDemandDrift = 0.9
)

// EconomicState is the market-wide macro mode.
type EconomicState uint8

const (
	StateStable EconomicState = iota
	StateBoom
	StateRecession
)

func (s EconomicState) String() string {
	switch s {
	case StateBoom:
		return "boom"
	case StateRecession:
		return "recession"
	}
	return "stable"
}

func (s EconomicState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *EconomicState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "boom":
		*s = StateBoom
	case "stable":
		*s = StateStable
	case "recession":
		*s = StateRecession
	default:
		return fmt.Errorf("unknown economic state %q", b)
	}
	return nil
}

// Factor is the price scaling applied by PriceFor.
func (s EconomicState) Factor() float64 {
	switch s {
	case StateBoom:
		return 1.2
	case StateRecession:
		return 0.8
	}
	return 1.0
}

var basePrices = map[world.CargoKind]float64{
	world.CargoPassengers: 5,
	world.CargoMail:       8,
	world.CargoCoal:       3,
	world.CargoIronOre:    4,
	world.CargoSteel:      12,
	world.CargoWood:       6,
	world.CargoOil:        8,
	world.CargoGoods:      15,
	world.CargoFood:       7,
}

// MarketEntry is the supply/demand state for one cargo kind.
type MarketEntry struct {
	Cargo      world.CargoKind `json:"cargo"`
	BasePrice  float64         `json:"base_price"` // inflates monthly
	Price      float64         `json:"price"`      // BasePrice × Multiplier
	Supply     uint32          `json:"supply"`
	Demand     uint32          `json:"demand"`
	Multiplier float64         `json:"multiplier"`
}

// Market holds the economic state for the whole world.
type Market struct {
	Entries       map[world.CargoKind]*MarketEntry `json:"entries"`
	InflationRate float64                          `json:"inflation_rate"`
	State         EconomicState                    `json:"state"`
	Month         uint32                           `json:"month"` // ticks since creation
}

// NewMarket creates a market with base prices for all cargo kinds.
func NewMarket() *Market {
	entries := make(map[world.CargoKind]*MarketEntry, len(basePrices))
	for _, k := range world.AllCargo() {
		base := basePrices[k]
		entries[k] = &MarketEntry{
			Cargo:      k,
			BasePrice:  base,
			Price:      base,
			Supply:     1000,
			Demand:     1000,
			Multiplier: 1.0,
		}
	}
	return &Market{
		Entries:       entries,
		InflationRate: DefaultInflation,
		State:         StateStable,
	}
}

// TickUpdate recomputes supply, demand and prices from the grid. It reads
// the grid and never mutates it.
func (m *Market) TickUpdate(g *world.Grid, rng entropy.Source) {
	m.Month++

	supply, demand := Survey(g)
	for _, k := range world.AllCargo() {
		e := m.entry(k)
		e.Supply = supply[k]
		e.Demand = demand[k]
	}

	if m.Month%TicksPerMonth == 0 {
		m.applyMonthly()
	}

	for _, k := range world.AllCargo() {
		e := m.entry(k)
		e.Multiplier = multiplier(e.Supply, e.Demand)
		e.Price = e.BasePrice * e.Multiplier
	}

	if m.Month%TicksPerStateRoll == 0 {
		m.State = rollState(rng)
	}
}

func (m *Market) entry(k world.CargoKind) *MarketEntry {
	e, ok := m.Entries[k]
	if !ok {
		base, known := basePrices[k]
		if !known {
			base = unknownCargoPrice
		}
		e = &MarketEntry{Cargo: k, BasePrice: base, Price: base, Multiplier: 1}
		if m.Entries == nil {
			m.Entries = make(map[world.CargoKind]*MarketEntry)
		}
		m.Entries[k] = e
	}
	return e
}

func (m *Market) applyMonthly() {
	drift := 1.0
	switch m.State {
	case StateBoom:
		drift = boomDemandDrift
	case StateRecession:
		drift = recessionDemandDrift
	}
	for _, k := range world.AllCargo() {
		e := m.entry(k)
		e.BasePrice *= 1 + m.InflationRate
		if drift != 1.0 {
			e.Demand = uint32(float64(e.Demand) * drift)
		}
	}
}

// Survey sums the demand and supply terms of every town and industry on the
// grid. Towns scale by max(population/1000, 0.1); industries add their
// production rate to each output.
func Survey(g *world.Grid) (supply, demand world.CargoMap) {
	for _, c := range g.Towns() {
		town, ok := g.TownAt(c)
		if !ok {
			continue
		}
		f := max(float64(town.Population)/1000, 0.1)
		demand.Add(world.CargoPassengers, uint32(f*50))
		demand.Add(world.CargoMail, uint32(f*20))
		demand.Add(world.CargoGoods, uint32(f*30))
		demand.Add(world.CargoFood, uint32(f*25))
		supply.Add(world.CargoPassengers, uint32(f*40))
		supply.Add(world.CargoMail, uint32(f*15))
	}
	for _, c := range g.Industries() {
		ind, ok := g.IndustryAt(c)
		if !ok {
			continue
		}
		for _, out := range ind.Output {
			supply.Add(out, ind.ProductionRate)
		}
	}
	return supply, demand
}

func multiplier(supply, demand uint32) float64 {
	ratio := noSupplyRatio
	if supply > 0 {
		ratio = float64(demand) / float64(supply)
	}
	return min(max(ratio, minMultiplier), maxMultiplier)
}

func rollState(rng entropy.Source) EconomicState {
	switch r := rng.Intn(10); {
	case r <= 2:
		return StateBoom
	case r <= 6:
		return StateStable
	default:
		return StateRecession
	}
}

// PriceFor values one unit of cargo shipped over distance tiles. Route
// estimators use this; vehicle settlement pays a flat rate instead.
func (m *Market) PriceFor(cargo world.CargoKind, distance float64) float64 {
	base := unknownCargoPrice
	if e, ok := m.Entries[cargo]; ok {
		base = e.BasePrice
	}
	return base * (1 + min(distance/100, 0.5)) * m.State.Factor()
}

// DeliveryPayment is PriceFor scaled by quantity and truncated. Vehicle
// settlement does not use it; deliveries pay the flat vehicle.Settings.DeliveryRate.
func (m *Market) DeliveryPayment(cargo world.CargoKind, qty uint32, distance float64) int64 {
	return int64(m.PriceFor(cargo, distance) * float64(qty))
}

// Trend classifies a price multiplier.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendStable  Trend = "stable"
	TrendFalling Trend = "falling"
)

func trendOf(multiplier float64) Trend {
	switch {
	case multiplier > 1.2:
		return TrendRising
	case multiplier < 0.8:
		return TrendFalling
	}
	return TrendStable
}

// Info is a read-only view of one cargo's market.
type Info struct {
	Cargo  world.CargoKind `json:"cargo"`
	Price  float64         `json:"price"`
	Supply uint32          `json:"supply"`
	Demand uint32          `json:"demand"`
	Trend  Trend           `json:"trend"`
}

// Info returns the market view for a cargo kind.
func (m *Market) Info(cargo world.CargoKind) Info {
	e, ok := m.Entries[cargo]
	if !ok {
		return Info{Cargo: cargo, Trend: TrendStable}
	}
	return Info{
		Cargo:  cargo,
		Price:  e.Price,
		Supply: e.Supply,
		Demand: e.Demand,
		Trend:  trendOf(e.Multiplier),
	}
}

// Commodity pairs a cargo kind with its current price.
type Commodity struct {
	Cargo world.CargoKind `json:"cargo"`
	Price float64         `json:"price"`
}

// Report summarises the whole market.
type Report struct {
	State          EconomicState `json:"state"`
	InflationRate  float64       `json:"inflation_rate"`
	Month          uint32        `json:"month"`
	Cargo          []Info        `json:"cargo"`
	TopCommodities []Commodity   `json:"top_commodities"`
}

// Report returns per-cargo info in canonical order plus the five priciest
// commodities.
func (m *Market) Report() Report {
	r := Report{
		State:         m.State,
		InflationRate: m.InflationRate,
		Month:         m.Month,
	}
	var all []Commodity
	for _, k := range world.AllCargo() {
		info := m.Info(k)
		r.Cargo = append(r.Cargo, info)
		all = append(all, Commodity{Cargo: k, Price: info.Price})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Price > all[j].Price })
	if len(all) > topCommodityCount {
		all = all[:topCommodityCount]
	}
	r.TopCommodities = all
	return r
}
