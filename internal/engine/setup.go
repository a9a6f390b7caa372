package engine

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/economy"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

// Setup describes a new game.
type Setup struct {
	Gen           world.GenConfig
	CompanyName   string
	StartingMoney int64
	Unlimited     bool
	Inflation     float64
	Vehicles      vehicle.Settings
}

// DefaultSetup is a single company with one million in the bank.
func DefaultSetup() Setup {
	return Setup{
		Gen:           world.DefaultGenConfig(),
		CompanyName:   "Player",
		StartingMoney: 1_000_000,
		Inflation:     economy.DefaultInflation,
		Vehicles:      vehicle.DefaultSettings(),
	}
}

// NewWorld generates terrain, towns and industries and opens the player's
// company.
func NewWorld(setup Setup, rng entropy.Source) *Simulation {
	g := world.Generate(setup.Gen, rng)

	m := economy.NewMarket()
	m.InflationRate = setup.Inflation

	c := company.New(setup.CompanyName, setup.StartingMoney)
	c.Unlimited = setup.Unlimited

	sim := NewSimulation(g, m, []*company.Company{c}, rng, setup.Vehicles)

	counts := world.TerrainCounts(g)
	for t, n := range counts {
		slog.Debug("terrain", "type", world.TerrainName(t), "count", n)
	}
	slog.Info("world generated",
		"world_id", sim.WorldID,
		"size", humanize.Comma(int64(g.Width*g.Height)),
		"towns", len(g.Towns()),
		"industries", len(g.Industries()),
		"company", c.Name,
		"money", humanize.Comma(c.Money),
	)
	return sim
}
