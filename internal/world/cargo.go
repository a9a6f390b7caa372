package world

import (
	"encoding/json"
	"fmt"
)

// CargoKind enumerates everything a vehicle can carry. Declaration order is
// the canonical iteration order used for loading and reporting.
type CargoKind uint8

const (
	CargoPassengers CargoKind = iota
	CargoMail
	CargoCoal
	CargoIronOre
	CargoSteel
	CargoWood
	CargoOil
	CargoGoods
	CargoFood

	NumCargoKinds = int(CargoFood) + 1
)

var cargoNames = [NumCargoKinds]string{
	"passengers", "mail", "coal", "iron_ore", "steel", "wood", "oil", "goods", "food",
}

// AllCargo lists every cargo kind in canonical order.
func AllCargo() []CargoKind {
	out := make([]CargoKind, NumCargoKinds)
	for i := range out {
		out[i] = CargoKind(i)
	}
	return out
}

func (k CargoKind) String() string {
	if int(k) < NumCargoKinds {
		return cargoNames[k]
	}
	return fmt.Sprintf("cargo(%d)", k)
}

// ParseCargo returns the kind with the given name.
func ParseCargo(name string) (CargoKind, bool) {
	for i, n := range cargoNames {
		if n == name {
			return CargoKind(i), true
		}
	}
	return 0, false
}

func (k CargoKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *CargoKind) UnmarshalText(b []byte) error {
	kind, ok := ParseCargo(string(b))
	if !ok {
		return fmt.Errorf("unknown cargo kind %q", b)
	}
	*k = kind
	return nil
}

// CargoMap holds a quantity per cargo kind. All arithmetic saturates.
type CargoMap [NumCargoKinds]uint32

// Add increases the quantity of one kind, saturating at the uint32 maximum.
func (m *CargoMap) Add(k CargoKind, n uint32) {
	m[k] = SatAdd(m[k], n)
}

// Sub decreases the quantity of one kind, saturating at zero.
func (m *CargoMap) Sub(k CargoKind, n uint32) {
	m[k] = SatSub(m[k], n)
}

// Total returns the sum over all kinds as a uint64.
func (m CargoMap) Total() uint64 {
	var t uint64
	for _, n := range m {
		t += uint64(n)
	}
	return t
}

// IsZero reports whether every kind is zero.
func (m CargoMap) IsZero() bool {
	return m.Total() == 0
}

// MarshalJSON writes only non-zero kinds, keyed by name.
func (m CargoMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]uint32)
	for i, n := range m {
		if n > 0 {
			out[cargoNames[i]] = n
		}
	}
	return json.Marshal(out)
}

func (m *CargoMap) UnmarshalJSON(b []byte) error {
	var in map[string]uint32
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*m = CargoMap{}
	for name, n := range in {
		k, ok := ParseCargo(name)
		if !ok {
			return fmt.Errorf("unknown cargo kind %q", name)
		}
		m[k] = n
	}
	return nil
}
