package persistence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/economy"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

// Snapshot is the full persisted shape of a simulation.
type Snapshot struct {
	ID            uuid.UUID          `json:"id"`
	WorldID       uuid.UUID          `json:"world_id"`
	SavedAt       time.Time          `json:"saved_at"`
	Tick          uint64             `json:"tick"`
	NextVehicleID vehicle.ID         `json:"next_vehicle_id"`
	Settings      vehicle.Settings   `json:"settings"`
	Grid          world.GridState    `json:"grid"`
	Market        *economy.Market    `json:"market"`
	Vehicles      []*vehicle.Vehicle `json:"vehicles"`
	Companies     []*company.Company `json:"companies"`
	Events        []engine.Event     `json:"events"`
}

// Capture takes a snapshot of sim. The snapshot shares pointers with the
// live simulation, so encode it before releasing the simulation lock.
func Capture(sim *engine.Simulation) Snapshot {
	return Snapshot{
		ID:            uuid.New(),
		WorldID:       sim.WorldID,
		SavedAt:       time.Now().UTC(),
		Tick:          sim.LastTick,
		NextVehicleID: sim.NextVehicleID,
		Settings:      sim.Settings,
		Grid:          sim.Grid.State(),
		Market:        sim.Market,
		Vehicles:      sim.Vehicles,
		Companies:     sim.Companies,
		Events:        sim.Events,
	}
}

// Restore builds a fresh simulation from the snapshot.
func (s Snapshot) Restore(rng entropy.Source) (*engine.Simulation, error) {
	g, err := world.FromState(s.Grid)
	if err != nil {
		return nil, fmt.Errorf("restore grid: %w", err)
	}
	if s.Market == nil {
		return nil, fmt.Errorf("restore market: missing")
	}
	ids := make(map[vehicle.ID]bool, len(s.Vehicles))
	for _, v := range s.Vehicles {
		if ids[v.ID] {
			return nil, fmt.Errorf("restore vehicle %d: duplicate id", v.ID)
		}
		ids[v.ID] = true
		if v.Kind == nil {
			return nil, fmt.Errorf("restore vehicle %d: missing kind", v.ID)
		}
		if v.Owner < 0 || v.Owner >= len(s.Companies) {
			return nil, fmt.Errorf("restore vehicle %d: owner %d out of range", v.ID, v.Owner)
		}
	}

	sim := engine.NewSimulation(g, s.Market, s.Companies, rng, s.Settings)
	sim.WorldID = s.WorldID
	sim.Restore(s.Vehicles, s.Events, s.Tick)
	sim.NextVehicleID = max(sim.NextVehicleID, s.NextVehicleID)
	return sim, nil
}
