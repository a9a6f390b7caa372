package vehicle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/freight-tycoon/internal/world"
)

// ErrUnknownPurchase is returned by ParsePurchaseType for unrecognised names.
var ErrUnknownPurchase = errors.New("unknown vehicle type")

// PurchaseType is a buyable vehicle model with a fixed default loadout.
type PurchaseType uint8

const (
	BuyTrain PurchaseType = iota
	BuyBus
	BuySmallTruck
	BuyLargeTruck
	BuyShip
	BuySmallPlane
	BuyLargePlane
)

var purchaseNames = []string{"train", "bus", "small_truck", "large_truck", "ship", "small_plane", "large_plane"}

func (p PurchaseType) String() string {
	if int(p) < len(purchaseNames) {
		return purchaseNames[p]
	}
	return fmt.Sprintf("purchase(%d)", p)
}

// ParsePurchaseType accepts the names returned by String, case-insensitively.
func ParsePurchaseType(s string) (PurchaseType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range purchaseNames {
		if n == s {
			return PurchaseType(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q (want one of %s)", ErrUnknownPurchase, s, strings.Join(purchaseNames, ", "))
}

// Kind builds the default configuration for a purchase type.
func (p PurchaseType) Kind() Kind {
	switch p {
	case BuyTrain:
		return Train{
			Engine: Engine{Type: EngineSteam, Power: 500, Reliability: 75},
			Cars: []Car{
				{Type: CarPassenger, Capacity: 40},
				{Type: CarFreight, Capacity: 30},
			},
		}
	case BuyBus:
		return RoadVehicle{Type: TruckBus, Capacity: 40}
	case BuySmallTruck:
		return RoadVehicle{Type: TruckSmall, Capacity: 20}
	case BuyLargeTruck:
		return RoadVehicle{Type: TruckLarge, Capacity: 60}
	case BuyShip:
		return Ship{Type: ShipCargo, Capacity: 200}
	case BuySmallPlane:
		return Aircraft{Type: PlaneSmall, Capacity: 50, Range: 1000}
	default:
		return Aircraft{Type: PlaneLarge, Capacity: 200, Range: 5000}
	}
}

// Recommend picks a sensible purchase type for a tile.
func Recommend(t world.Tile) PurchaseType {
	switch c := t.Content.(type) {
	case world.Track:
		return BuyTrain
	case world.Road:
		return BuyBus
	case *world.Station:
		switch c.Type {
		case world.StationTrain:
			return BuyTrain
		case world.StationHarbor:
			return BuyShip
		case world.StationAirport:
			return BuySmallPlane
		default:
			return BuyBus
		}
	}
	if t.Terrain == world.TerrainWater {
		return BuyShip
	}
	return BuyBus
}
