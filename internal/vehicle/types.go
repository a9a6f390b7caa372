// Package vehicle implements vehicle classes, the per-tick movement state
// machine, mode-specific pathfinding, and cargo load/unload.
package vehicle

import (
	"encoding/json"
	"fmt"
)

// Class is the coarse vehicle category that picks pathfinding and base costs.
type Class uint8

const (
	ClassTrain Class = iota
	ClassRoad
	ClassShip
	ClassAircraft
)

func (c Class) String() string {
	switch c {
	case ClassTrain:
		return "train"
	case ClassRoad:
		return "road"
	case ClassShip:
		return "ship"
	case ClassAircraft:
		return "aircraft"
	}
	return fmt.Sprintf("class(%d)", c)
}

// Kind is the concrete vehicle type. Variants: Train, RoadVehicle, Ship, Aircraft.
type Kind interface {
	Class() Class
	vehicleKind()
}

type EngineType uint8

const (
	EngineSteam EngineType = iota
	EngineDiesel
	EngineElectric
)

// Engine is a locomotive. Its type fixes speed; reliability is per engine.
type Engine struct {
	Type        EngineType `json:"type"`
	Power       uint32     `json:"power"`
	Reliability uint8      `json:"reliability"`
}

type CarType uint8

const (
	CarPassenger CarType = iota
	CarFreight
	CarMail
)

// Car is one wagon of a train.
type Car struct {
	Type     CarType `json:"type"`
	Capacity uint32  `json:"capacity"`
}

type Train struct {
	Engine Engine `json:"engine"`
	Cars   []Car  `json:"cars"`
}

type TruckType uint8

const (
	TruckSmall TruckType = iota
	TruckLarge
	TruckBus
)

type RoadVehicle struct {
	Type     TruckType `json:"type"`
	Capacity uint32    `json:"capacity"`
}

type ShipType uint8

const (
	ShipCargo ShipType = iota
	ShipPassenger
)

type Ship struct {
	Type     ShipType `json:"type"`
	Capacity uint32   `json:"capacity"`
}

type PlaneType uint8

const (
	PlaneSmall PlaneType = iota
	PlaneLarge
)

type Aircraft struct {
	Type     PlaneType `json:"type"`
	Capacity uint32    `json:"capacity"`
	Range    uint32    `json:"range"`
}

func (Train) Class() Class       { return ClassTrain }
func (RoadVehicle) Class() Class { return ClassRoad }
func (Ship) Class() Class        { return ClassShip }
func (Aircraft) Class() Class    { return ClassAircraft }

func (Train) vehicleKind()       {}
func (RoadVehicle) vehicleKind() {}
func (Ship) vehicleKind()        {}
func (Aircraft) vehicleKind()    {}

// Capacity is the total cargo a vehicle of this kind can hold.
func Capacity(k Kind) uint32 {
	switch v := k.(type) {
	case Train:
		var total uint32
		for _, c := range v.Cars {
			total += c.Capacity
		}
		return total
	case RoadVehicle:
		return v.Capacity
	case Ship:
		return v.Capacity
	case Aircraft:
		return v.Capacity
	}
	return 0
}

// Stats returns the speed and starting reliability of a kind.
func Stats(k Kind) (speed uint32, reliability uint8) {
	switch v := k.(type) {
	case Train:
		switch v.Engine.Type {
		case EngineDiesel:
			return 80, v.Engine.Reliability
		case EngineElectric:
			return 100, v.Engine.Reliability
		default:
			return 60, v.Engine.Reliability
		}
	case RoadVehicle:
		switch v.Type {
		case TruckSmall:
			return 90, 85
		case TruckLarge:
			return 70, 80
		default:
			return 85, 88
		}
	case Ship:
		return 40, 90
	case Aircraft:
		if v.Type == PlaneSmall {
			return 300, 75
		}
		return 250, 85
	}
	return 0, 0
}

// PurchaseCost is the price of buying a new vehicle of this kind.
func PurchaseCost(k Kind) int64 {
	switch v := k.(type) {
	case Train:
		var cost int64
		switch v.Engine.Type {
		case EngineSteam:
			cost = int64(v.Engine.Power) * 100
		case EngineDiesel:
			cost = int64(v.Engine.Power) * 150
		case EngineElectric:
			cost = int64(v.Engine.Power) * 200
		}
		for _, c := range v.Cars {
			switch c.Type {
			case CarPassenger:
				cost += 50_000
			case CarFreight:
				cost += 30_000
			case CarMail:
				cost += 40_000
			}
		}
		return cost
	case RoadVehicle:
		switch v.Type {
		case TruckSmall:
			return 75_000
		case TruckLarge:
			return 150_000
		default:
			return 120_000
		}
	case Ship:
		if v.Type == ShipCargo {
			return 500_000
		}
		return 800_000
	case Aircraft:
		if v.Type == PlaneSmall {
			return 2_000_000
		}
		return 10_000_000
	}
	return 0
}

// runningBase is the per-tick cost before age and reliability scaling.
func runningBase(c Class) float64 {
	switch c {
	case ClassTrain:
		return 1000
	case ClassRoad:
		return 200
	case ClassShip:
		return 800
	case ClassAircraft:
		return 3000
	}
	return 0
}

// Glyph is the map symbol drawn for a vehicle of this kind.
func Glyph(k Kind) rune {
	switch v := k.(type) {
	case Train:
		return 'T'
	case RoadVehicle:
		switch v.Type {
		case TruckBus:
			return 'B'
		case TruckSmall:
			return 't'
		default:
			return 'T'
		}
	case Ship:
		return 'S'
	case Aircraft:
		return 'A'
	}
	return '?'
}

// Color is the display colour tag for a kind.
func Color(k Kind) string {
	switch k.(type) {
	case Train:
		return "darkblue"
	case RoadVehicle:
		return "darkred"
	case Ship:
		return "cyan"
	case Aircraft:
		return "magenta"
	}
	return "black"
}

// Name is a human-readable label for a kind.
func Name(k Kind) string {
	switch v := k.(type) {
	case Train:
		switch v.Engine.Type {
		case EngineDiesel:
			return "Diesel Train"
		case EngineElectric:
			return "Electric Train"
		default:
			return "Steam Train"
		}
	case RoadVehicle:
		switch v.Type {
		case TruckSmall:
			return "Small Truck"
		case TruckLarge:
			return "Large Truck"
		default:
			return "Bus"
		}
	case Ship:
		if v.Type == ShipCargo {
			return "Cargo Ship"
		}
		return "Passenger Ship"
	case Aircraft:
		if v.Type == PlaneSmall {
			return "Small Plane"
		}
		return "Large Plane"
	}
	return "Unknown"
}

type kindEnvelope struct {
	Class    string       `json:"class"`
	Train    *Train       `json:"train,omitempty"`
	Road     *RoadVehicle `json:"road,omitempty"`
	Ship     *Ship        `json:"ship,omitempty"`
	Aircraft *Aircraft    `json:"aircraft,omitempty"`
}

// MarshalKind encodes a kind with its class tag.
func MarshalKind(k Kind) ([]byte, error) {
	var env kindEnvelope
	switch v := k.(type) {
	case Train:
		env.Train = &v
	case RoadVehicle:
		env.Road = &v
	case Ship:
		env.Ship = &v
	case Aircraft:
		env.Aircraft = &v
	default:
		return nil, fmt.Errorf("unknown vehicle kind %T", k)
	}
	env.Class = k.Class().String()
	return json.Marshal(env)
}

// UnmarshalKind decodes a value produced by MarshalKind.
func UnmarshalKind(b []byte) (Kind, error) {
	var env kindEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	switch {
	case env.Class == "train" && env.Train != nil:
		return *env.Train, nil
	case env.Class == "road" && env.Road != nil:
		return *env.Road, nil
	case env.Class == "ship" && env.Ship != nil:
		return *env.Ship, nil
	case env.Class == "aircraft" && env.Aircraft != nil:
		return *env.Aircraft, nil
	}
	return nil, fmt.Errorf("malformed vehicle kind %q", env.Class)
}
