// Simulation ties together the grid, market, vehicles and companies and
// advances them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/economy"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

// MaxEvents bounds the event ring.
const MaxEvents = 1000

// Simulation holds the complete world state. It is not safe for concurrent
// use; callers serialise access with their own lock.
type Simulation struct {
	WorldID       uuid.UUID
	Grid          *world.Grid
	Market        *economy.Market
	Vehicles      []*vehicle.Vehicle // ascending ID
	Companies     []*company.Company
	Events        []Event
	LastTick      uint64
	NextVehicleID vehicle.ID
	Settings      vehicle.Settings

	rng     entropy.Source
	stalled map[vehicle.ID]bool // vehicles whose last trip had no path
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "delivery", "vehicle", "build", "economy", "route"
	Meta        map[string]any `json:"meta,omitempty"`
}

// TickReport summarises one call to Tick.
type TickReport struct {
	Tick      uint64  `json:"tick"`
	Loaded    uint64  `json:"loaded"`
	Delivered uint64  `json:"delivered"`
	Income    int64   `json:"income"`
	Expenses  int64   `json:"expenses"`
	Events    []Event `json:"events,omitempty"`
}

// NewSimulation wraps an existing grid. A nil market starts fresh.
func NewSimulation(g *world.Grid, m *economy.Market, companies []*company.Company, rng entropy.Source, settings vehicle.Settings) *Simulation {
	if m == nil {
		m = economy.NewMarket()
	}
	return &Simulation{
		WorldID:       uuid.New(),
		Grid:          g,
		Market:        m,
		Companies:     companies,
		NextVehicleID: 1,
		Settings:      settings,
		rng:           rng,
		stalled:       make(map[vehicle.ID]bool),
	}
}

// SetRand replaces the random source, e.g. after loading a save.
func (s *Simulation) SetRand(rng entropy.Source) {
	s.rng = rng
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// EmitEvent appends to the event ring, dropping the oldest beyond MaxEvents.
func (s *Simulation) EmitEvent(e Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > MaxEvents {
		s.Events = slices.Clone(s.Events[len(s.Events)-MaxEvents:])
	}
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	if n <= 0 || n > len(s.Events) {
		n = len(s.Events)
	}
	return slices.Clone(s.Events[len(s.Events)-n:])
}

// Tick advances the world by one step: grid, then market, then every
// vehicle in ascending id order, then company settlement.
func (s *Simulation) Tick() TickReport {
	s.LastTick++
	tick := s.LastTick
	firstEvent := len(s.Events)
	report := TickReport{Tick: tick}

	s.Grid.TickUpdate()
	prevState := s.Market.State
	s.Market.TickUpdate(s.Grid, s.rng)
	if s.Market.State != prevState {
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("The economy enters a %s", s.Market.State),
			Category:    "economy",
		})
	}

	for _, v := range s.Vehicles {
		out := vehicle.Update(v, s.Grid, s.rng, s.Settings)
		income, expense := s.settle(v, out)
		report.Loaded += uint64(out.Loaded)
		report.Delivered += out.Delivered
		report.Income += income
		report.Expenses += expense
	}

	if tick%company.ReputationPeriod == 0 {
		for i, c := range s.Companies {
			c.ReviewReputation(s.Fleet(i))
		}
	}
	if tick%economy.TicksPerMonth == 0 {
		s.monthlyReport(tick)
	}

	// The ring may have been trimmed during this tick.
	if firstEvent > len(s.Events) {
		firstEvent = 0
	}
	report.Events = slices.Clone(s.Events[firstEvent:])
	return report
}

// settle books one vehicle's outcome against its owner and records events.
func (s *Simulation) settle(v *vehicle.Vehicle, out vehicle.Outcome) (income, expense int64) {
	tick := s.LastTick
	c := s.company(v.Owner)

	if out.Profit > 0 && c != nil {
		c.Earn(out.Profit)
		c.CreditRoute(v.ID, out.Profit)
		income = out.Profit
	}
	if c != nil {
		expense = v.RunningCost()
		c.Charge(expense)
	}

	if out.Delivered > 0 {
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s #%d delivered %d units for $%s", vehicle.Name(v.Kind), v.ID, out.Delivered, humanize.Comma(out.Profit)),
			Category:    "delivery",
			Meta:        map[string]any{"vehicle_id": v.ID, "delivered": out.Delivered, "on_time": out.OnTime},
		})
	}
	switch {
	case out.NoPath && !s.stalled[v.ID]:
		s.stalled[v.ID] = true
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s #%d cannot find a path to (%d,%d)", vehicle.Name(v.Kind), v.ID, v.Route[v.RouteIndex].X, v.Route[v.RouteIndex].Y),
			Category:    "route",
			Meta:        map[string]any{"vehicle_id": v.ID},
		})
	case !out.NoPath && s.stalled[v.ID]:
		if _, idle := v.State.(vehicle.Idle); !idle {
			delete(s.stalled, v.ID)
		}
	}
	if out.BrokeDown {
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s #%d has broken down at (%d,%d)", vehicle.Name(v.Kind), v.ID, v.Pos.X, v.Pos.Y),
			Category:    "vehicle",
			Meta:        map[string]any{"vehicle_id": v.ID},
		})
	}
	if out.Repaired {
		s.EmitEvent(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s #%d is back in service", vehicle.Name(v.Kind), v.ID),
			Category:    "vehicle",
			Meta:        map[string]any{"vehicle_id": v.ID},
		})
	}
	return income, expense
}

func (s *Simulation) monthlyReport(tick uint64) {
	var population uint64
	for _, c := range s.Grid.Towns() {
		if t, ok := s.Grid.TownAt(c); ok {
			population += uint64(t.Population)
		}
	}

	for i, c := range s.Companies {
		slog.Info("monthly report",
			"tick", tick,
			"date", SimTime(tick),
			"company", c.Name,
			"money", humanize.Comma(c.Money),
			"income", humanize.Comma(c.MonthIncome),
			"expenses", humanize.Comma(c.MonthExpenses),
			"vehicles", len(s.Fleet(i)),
			"reputation", fmt.Sprintf("%.0f", c.Reputation),
		)
		c.CloseMonth()
	}
	slog.Info("world summary",
		"tick", tick,
		"population", humanize.Comma(int64(population)),
		"economy", s.Market.State.String(),
		"events", len(s.Events),
	)
}

// Fleet returns the vehicles owned by company idx, ascending by id.
func (s *Simulation) Fleet(idx int) []*vehicle.Vehicle {
	var out []*vehicle.Vehicle
	for _, v := range s.Vehicles {
		if v.Owner == idx {
			out = append(out, v)
		}
	}
	return out
}

// Vehicle finds a vehicle by id.
func (s *Simulation) Vehicle(id vehicle.ID) (*vehicle.Vehicle, bool) {
	i, found := slices.BinarySearchFunc(s.Vehicles, id, func(v *vehicle.Vehicle, id vehicle.ID) int {
		return int(v.ID) - int(id)
	})
	if !found {
		return nil, false
	}
	return s.Vehicles[i], true
}

func (s *Simulation) company(idx int) *company.Company {
	if idx < 0 || idx >= len(s.Companies) {
		return nil
	}
	return s.Companies[idx]
}

// Restore installs loaded vehicles and events, keeping ids ascending and
// the next id above every existing one.
func (s *Simulation) Restore(vehicles []*vehicle.Vehicle, events []Event, tick uint64) {
	slices.SortFunc(vehicles, func(a, b *vehicle.Vehicle) int { return int(a.ID) - int(b.ID) })
	s.Vehicles = vehicles
	s.Events = events
	s.LastTick = tick
	s.NextVehicleID = 1
	if n := len(vehicles); n > 0 {
		s.NextVehicleID = vehicles[n-1].ID + 1
	}
}
