package vehicle

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/freight-tycoon/internal/world"
)

// State is a vehicle's position in the movement state machine.
// Variants: Idle, Moving, Loading, Unloading, Broken.
type State interface {
	stateName() string
}

type Idle struct{}

// Moving is in transit between two adjacent path tiles.
type Moving struct {
	From     world.Coord `json:"from"`
	To       world.Coord `json:"to"`
	Progress float64     `json:"progress"` // [0, 1)
}

type Loading struct{}

type Unloading struct{}

type Broken struct{}

func (Idle) stateName() string      { return "idle" }
func (Moving) stateName() string    { return "moving" }
func (Loading) stateName() string   { return "loading" }
func (Unloading) stateName() string { return "unloading" }
func (Broken) stateName() string    { return "broken" }

// StateName returns the lowercase tag of a state.
func StateName(s State) string {
	if s == nil {
		return Idle{}.stateName()
	}
	return s.stateName()
}

type stateEnvelope struct {
	Name   string  `json:"name"`
	Moving *Moving `json:"moving,omitempty"`
}

// MarshalState encodes a state with its tag.
func MarshalState(s State) ([]byte, error) {
	env := stateEnvelope{Name: StateName(s)}
	if m, ok := s.(Moving); ok {
		env.Moving = &m
	}
	return json.Marshal(env)
}

// UnmarshalState decodes a value produced by MarshalState.
func UnmarshalState(b []byte) (State, error) {
	var env stateEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	switch env.Name {
	case "", "idle":
		return Idle{}, nil
	case "moving":
		if env.Moving == nil {
			return nil, fmt.Errorf("moving state without payload")
		}
		return *env.Moving, nil
	case "loading":
		return Loading{}, nil
	case "unloading":
		return Unloading{}, nil
	case "broken":
		return Broken{}, nil
	}
	return nil, fmt.Errorf("unknown vehicle state %q", env.Name)
}
