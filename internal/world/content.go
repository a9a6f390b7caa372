package world

import (
	"encoding/json"
	"fmt"
)

// Content is whatever occupies a tile. The set of variants is closed:
// Empty, *Town, *Industry, *Station, Track and Road.
type Content interface {
	contentKind() string
}

// Empty is an unbuilt tile.
type Empty struct{}

// Road is a road segment usable by road vehicles.
type Road struct{}

// TrackShape describes how a track segment is laid.
type TrackShape uint8

const (
	TrackHorizontal TrackShape = iota
	TrackVertical
	TrackCurve
	TrackJunction
)

// Track is a rail segment usable by trains.
type Track struct {
	Shape TrackShape `json:"shape"`
}

// Town is a population centre. Population never decreases.
type Town struct {
	Name       string   `json:"name"`
	Population uint32   `json:"population"`
	GrowthRate float64  `json:"growth_rate"` // percent per tick
	Demand     CargoMap `json:"demand"`
	Supply     CargoMap `json:"supply"`
}

// Industry produces (and nominally consumes) cargo.
type Industry struct {
	Type           IndustryType `json:"type"`
	ProductionRate uint32       `json:"production_rate"`
	Input          []CargoKind  `json:"input"`
	Output         []CargoKind  `json:"output"`
	Stockpile      CargoMap     `json:"stockpile"`
}

// Station collects cargo from nearby towns and industries for pickup.
type Station struct {
	Name         string      `json:"name"`
	Type         StationType `json:"type"`
	CargoWaiting CargoMap    `json:"cargo_waiting"`
	Connections  []Coord     `json:"connections,omitempty"`
}

func (Empty) contentKind() string     { return "empty" }
func (Road) contentKind() string      { return "road" }
func (Track) contentKind() string     { return "track" }
func (*Town) contentKind() string     { return "town" }
func (*Industry) contentKind() string { return "industry" }
func (*Station) contentKind() string  { return "station" }

// IsEmpty reports whether the content is the Empty variant.
func IsEmpty(c Content) bool {
	_, ok := c.(Empty)
	return ok || c == nil
}

// IndustryType fixes an industry's cargo inputs and outputs.
type IndustryType uint8

const (
	IndustryCoalMine IndustryType = iota
	IndustryIronOreMine
	IndustrySteelMill
	IndustryFactory
	IndustryFarm
	IndustrySawmill
	IndustryOilRig
	IndustryRefinery

	numIndustryTypes = int(IndustryRefinery) + 1
)

var industryNames = [numIndustryTypes]string{
	"Coal Mine", "Iron Ore Mine", "Steel Mill", "Factory", "Farm", "Sawmill", "Oil Rig", "Refinery",
}

func (t IndustryType) String() string {
	if int(t) < numIndustryTypes {
		return industryNames[t]
	}
	return fmt.Sprintf("industry(%d)", t)
}

// IndustryCargo returns the input and output cargo lists for a type.
func IndustryCargo(t IndustryType) (input, output []CargoKind) {
	switch t {
	case IndustryCoalMine:
		return nil, []CargoKind{CargoCoal}
	case IndustryIronOreMine:
		return nil, []CargoKind{CargoIronOre}
	case IndustrySteelMill:
		return []CargoKind{CargoCoal, CargoIronOre}, []CargoKind{CargoSteel}
	case IndustryFactory:
		return []CargoKind{CargoSteel}, []CargoKind{CargoGoods}
	case IndustryFarm:
		return nil, []CargoKind{CargoFood}
	case IndustrySawmill:
		return nil, []CargoKind{CargoWood}
	case IndustryOilRig:
		return nil, []CargoKind{CargoOil}
	case IndustryRefinery:
		return []CargoKind{CargoOil}, []CargoKind{CargoGoods}
	}
	return nil, nil
}

// NewIndustry builds an industry with the cargo lists its type implies.
func NewIndustry(t IndustryType, rate uint32) *Industry {
	in, out := IndustryCargo(t)
	return &Industry{Type: t, ProductionRate: rate, Input: in, Output: out}
}

// NewTown builds a town with empty demand and supply.
func NewTown(name string, population uint32, growth float64) *Town {
	return &Town{Name: name, Population: population, GrowthRate: growth}
}

// StationType selects which vehicles a station serves.
type StationType uint8

const (
	StationTrain StationType = iota
	StationRoad
	StationAirport
	StationHarbor
)

func (t StationType) String() string {
	switch t {
	case StationTrain:
		return "Train Station"
	case StationRoad:
		return "Bus Stop"
	case StationAirport:
		return "Airport"
	case StationHarbor:
		return "Harbor"
	}
	return fmt.Sprintf("station(%d)", t)
}

// contentEnvelope is the tagged wire form of a Content value.
type contentEnvelope struct {
	Kind     string    `json:"kind"`
	Town     *Town     `json:"town,omitempty"`
	Industry *Industry `json:"industry,omitempty"`
	Station  *Station  `json:"station,omitempty"`
	Track    *Track    `json:"track,omitempty"`
}

// MarshalContent encodes a content value with its variant tag.
func MarshalContent(c Content) ([]byte, error) {
	env := contentEnvelope{Kind: "empty"}
	switch v := c.(type) {
	case nil, Empty:
	case Road:
		env.Kind = v.contentKind()
	case Track:
		env.Kind = v.contentKind()
		env.Track = &v
	case *Town:
		env.Kind = v.contentKind()
		env.Town = v
	case *Industry:
		env.Kind = v.contentKind()
		env.Industry = v
	case *Station:
		env.Kind = v.contentKind()
		env.Station = v
	default:
		return nil, fmt.Errorf("unknown content %T", c)
	}
	return json.Marshal(env)
}

// UnmarshalContent decodes a value produced by MarshalContent.
func UnmarshalContent(b []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case "", "empty":
		return Empty{}, nil
	case "road":
		return Road{}, nil
	case "track":
		if env.Track == nil {
			return Track{}, nil
		}
		return *env.Track, nil
	case "town":
		if env.Town == nil {
			return nil, fmt.Errorf("town content without payload")
		}
		return env.Town, nil
	case "industry":
		if env.Industry == nil {
			return nil, fmt.Errorf("industry content without payload")
		}
		return env.Industry, nil
	case "station":
		if env.Station == nil {
			return nil, fmt.Errorf("station content without payload")
		}
		return env.Station, nil
	}
	return nil, fmt.Errorf("unknown content kind %q", env.Kind)
}

// MarshalJSON encodes a tile with its tagged content.
func (t Tile) MarshalJSON() ([]byte, error) {
	content, err := MarshalContent(t.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Terrain Terrain         `json:"terrain"`
		Height  uint8           `json:"height"`
		Content json.RawMessage `json:"content"`
	}{t.Terrain, t.Height, content})
}

func (t *Tile) UnmarshalJSON(b []byte) error {
	var raw struct {
		Terrain Terrain         `json:"terrain"`
		Height  uint8           `json:"height"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.Terrain, t.Height = raw.Terrain, raw.Height
	t.Content = Empty{}
	if len(raw.Content) > 0 {
		c, err := UnmarshalContent(raw.Content)
		if err != nil {
			return err
		}
		t.Content = c
	}
	return nil
}
