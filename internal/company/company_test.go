package company

import (
	"errors"
	"testing"

	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

func TestSpend(t *testing.T) {
	c := New("Acme", 100_000)
	if err := c.Spend(60_000); err != nil {
		t.Fatalf("Spend: %v", err)
	}
	err := c.Spend(60_000)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if c.Money != 40_000 {
		t.Errorf("failed spend changed money to %d", c.Money)
	}

	c.Unlimited = true
	if err := c.Spend(1_000_000); err != nil || c.Money != 40_000 {
		t.Errorf("unlimited spend: err=%v money=%d", err, c.Money)
	}
}

func TestRoutes(t *testing.T) {
	c := New("Acme", 0)
	if _, err := c.CreateRoute("solo", []world.Coord{{X: 1, Y: 1}}, nil); !errors.Is(err, ErrRouteTooShort) {
		t.Fatalf("err = %v, want ErrRouteTooShort", err)
	}

	a, _ := c.CreateRoute("", []world.Coord{{X: 1, Y: 1}, {X: 5, Y: 1}}, nil)
	b, _ := c.CreateRoute("coal", []world.Coord{{X: 2, Y: 2}, {X: 8, Y: 2}}, []world.CargoKind{world.CargoCoal})
	if a.Name != "Route 1" || b.ID != 2 {
		t.Errorf("route naming/ids: %q %d", a.Name, b.ID)
	}

	if _, added, err := c.Attach(a.ID, 7); err != nil || !added {
		t.Fatalf("attach: added=%v err=%v", added, err)
	}
	if _, added, _ := c.Attach(a.ID, 7); added {
		t.Error("second attach to same route should report false")
	}
	if _, _, err := c.Attach(b.ID, 7); err != nil {
		t.Fatal(err)
	}
	if len(a.VehicleIDs) != 0 || len(b.VehicleIDs) != 1 {
		t.Errorf("vehicle should move routes: a=%v b=%v", a.VehicleIDs, b.VehicleIDs)
	}
	if _, _, err := c.Attach(99, 7); !errors.Is(err, ErrUnknownRoute) {
		t.Errorf("err = %v, want ErrUnknownRoute", err)
	}

	if got := b.Length(); got != 12 {
		t.Errorf("route length = %d, want 12 (out and back)", got)
	}

	c.CreditRoute(7, 500)
	if b.Profit != 500 {
		t.Errorf("route profit = %d", b.Profit)
	}
}

func TestReviewReputation(t *testing.T) {
	onTime := func() *vehicle.Vehicle { return vehicle.New(1, vehicle.BuyBus.Kind(), world.Coord{}) }
	late := func() *vehicle.Vehicle {
		v := vehicle.New(2, vehicle.BuyBus.Kind(), world.Coord{})
		v.TotalDeliveries = 10
		v.OnTimeDeliveries = 2
		return v
	}

	tests := []struct {
		name  string
		start float64
		fleet []*vehicle.Vehicle
		want  float64
	}{
		{"empty fleet unchanged", 50, nil, 50},
		{"all on time", 50, []*vehicle.Vehicle{onTime(), onTime()}, 51},
		{"capped at 100", 100, []*vehicle.Vehicle{onTime()}, 100},
		{"mostly late", 50, []*vehicle.Vehicle{late(), late(), onTime()}, 49},
		{"floored at 0", 0, []*vehicle.Vehicle{late()}, 0},
		{"middling", 50, []*vehicle.Vehicle{late(), onTime()}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("Acme", 0)
			c.Reputation = tt.start
			c.ReviewReputation(tt.fleet)
			if c.Reputation != tt.want {
				t.Errorf("reputation = %v, want %v", c.Reputation, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	c := New("Acme", 1_000)
	c.AddStation(world.Coord{X: 1, Y: 1})
	v := vehicle.New(1, vehicle.BuyBus.Kind(), world.Coord{})
	v.Reliability = 100

	s := c.Stats([]*vehicle.Vehicle{v})
	if s.TotalValue != 121_000 {
		t.Errorf("total value = %d, want 121000", s.TotalValue)
	}
	if s.MonthlyExpenses != 6_000 {
		t.Errorf("monthly expenses = %d, want 6000", s.MonthlyExpenses)
	}
	if s.Stations != 1 || s.Vehicles != 1 {
		t.Errorf("counts = %+v", s)
	}
}
