// Package company is the ownership ledger: funds, stations, routes and
// reputation for one transport company.
package company

import (
	"errors"
	"fmt"
	"slices"

	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownRoute      = errors.New("unknown route")
	ErrRouteTooShort     = errors.New("route needs at least two stops")
)

const (
	StartingReputation = 50.0
	ReputationPeriod   = 30 // ticks between reputation reviews
)

// Route is a named, cyclic list of stops shared by any number of vehicles.
type Route struct {
	ID         uint32            `json:"id"`
	Name       string            `json:"name"`
	Stops      []world.Coord     `json:"stops"`
	VehicleIDs []vehicle.ID      `json:"vehicle_ids"`
	Cargo      []world.CargoKind `json:"cargo,omitempty"` // empty = any
	Profit     int64             `json:"profit"`
}

// Company is one player's books.
type Company struct {
	Name       string        `json:"name"`
	Money      int64         `json:"money"`
	Stations   []world.Coord `json:"stations"`
	Routes     []*Route      `json:"routes"`
	Reputation float64       `json:"reputation"`
	Unlimited  bool          `json:"unlimited"` // sandbox mode: spending never fails or deducts
	NextRoute  uint32        `json:"next_route"`

	// Accumulated since the last monthly review.
	MonthIncome   int64 `json:"month_income"`
	MonthExpenses int64 `json:"month_expenses"`
}

// New creates a company with starting funds.
func New(name string, money int64) *Company {
	return &Company{
		Name:       name,
		Money:      money,
		Reputation: StartingReputation,
		NextRoute:  1,
	}
}

// CanAfford reports whether a purchase of amount would succeed.
func (c *Company) CanAfford(amount int64) bool {
	return c.Unlimited || c.Money >= amount
}

// Spend deducts amount or returns ErrInsufficientFunds without change.
func (c *Company) Spend(amount int64) error {
	if !c.CanAfford(amount) {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount, c.Money)
	}
	if !c.Unlimited {
		c.Money -= amount
	}
	return nil
}

// Earn credits delivery income.
func (c *Company) Earn(amount int64) {
	c.Money += amount
	c.MonthIncome += amount
}

// Charge deducts running costs. Unlike Spend it may drive money negative.
func (c *Company) Charge(amount int64) {
	c.Money -= amount
	c.MonthExpenses += amount
}

// AddStation records a station the company built.
func (c *Company) AddStation(at world.Coord) {
	c.Stations = append(c.Stations, at)
}

// CreateRoute registers a new route and returns it.
func (c *Company) CreateRoute(name string, stops []world.Coord, cargo []world.CargoKind) (*Route, error) {
	if len(stops) < 2 {
		return nil, ErrRouteTooShort
	}
	r := &Route{
		ID:    c.NextRoute,
		Name:  name,
		Stops: slices.Clone(stops),
		Cargo: slices.Clone(cargo),
	}
	if r.Name == "" {
		r.Name = fmt.Sprintf("Route %d", r.ID)
	}
	c.NextRoute++
	c.Routes = append(c.Routes, r)
	return r, nil
}

// Length is the taxicab distance around the route, back to the first stop.
func (r *Route) Length() int {
	n := 0
	for i, st := range r.Stops {
		n += world.Manhattan(st, r.Stops[(i+1)%len(r.Stops)])
	}
	return n
}

// Route finds a route by id.
func (c *Company) Route(id uint32) (*Route, bool) {
	for _, r := range c.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Attach puts a vehicle on a route, detaching it from any other.
// Returns false if it was already on that route.
func (c *Company) Attach(routeID uint32, id vehicle.ID) (*Route, bool, error) {
	r, ok := c.Route(routeID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownRoute, routeID)
	}
	if slices.Contains(r.VehicleIDs, id) {
		return r, false, nil
	}
	c.Detach(id)
	r.VehicleIDs = append(r.VehicleIDs, id)
	return r, true, nil
}

// Detach removes a vehicle from whichever route holds it.
func (c *Company) Detach(id vehicle.ID) {
	for _, r := range c.Routes {
		r.VehicleIDs = slices.DeleteFunc(r.VehicleIDs, func(v vehicle.ID) bool { return v == id })
	}
}

// CreditRoute adds delivery profit to the route carrying a vehicle.
func (c *Company) CreditRoute(id vehicle.ID, profit int64) {
	for _, r := range c.Routes {
		if slices.Contains(r.VehicleIDs, id) {
			r.Profit += profit
			return
		}
	}
}

// ReviewReputation moves reputation one point up when more than 80% of the
// fleet is on time, one point down below 50%. Bounded to [0, 100].
func (c *Company) ReviewReputation(fleet []*vehicle.Vehicle) {
	if len(fleet) == 0 {
		return
	}
	onTime := 0
	for _, v := range fleet {
		if v.IsOnTime() {
			onTime++
		}
	}
	ratio := float64(onTime) / float64(len(fleet))
	switch {
	case ratio > 0.8:
		c.Reputation = min(c.Reputation+1, 100)
	case ratio < 0.5:
		c.Reputation = max(c.Reputation-1, 0)
	}
}

// CloseMonth resets the monthly income and expense counters.
func (c *Company) CloseMonth() {
	c.MonthIncome, c.MonthExpenses = 0, 0
}

// Stats is the read-only company summary.
type Stats struct {
	Name            string  `json:"name"`
	Money           int64   `json:"money"`
	Vehicles        int     `json:"vehicles"`
	Stations        int     `json:"stations"`
	Routes          int     `json:"routes"`
	Reputation      float64 `json:"reputation"`
	TotalValue      int64   `json:"total_value"`
	RouteProfit     int64   `json:"route_profit"`
	MonthlyExpenses int64   `json:"monthly_expenses"`
}

// Stats summarises the company given its fleet.
func (c *Company) Stats(fleet []*vehicle.Vehicle) Stats {
	s := Stats{
		Name:       c.Name,
		Money:      c.Money,
		Vehicles:   len(fleet),
		Stations:   len(c.Stations),
		Routes:     len(c.Routes),
		Reputation: c.Reputation,
		TotalValue: c.Money,
	}
	for _, v := range fleet {
		s.TotalValue += v.Value()
		s.MonthlyExpenses += v.RunningCost() * 30
	}
	for _, r := range c.Routes {
		s.RouteProfit += r.Profit
	}
	return s
}
