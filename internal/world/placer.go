// Town and industry placement on a generated grid.
package world

import (
	"github.com/talgya/freight-tycoon/internal/entropy"
)

var townNames = []string{
	"Springfield", "Riverside", "Madison", "Georgetown", "Franklin",
	"Clinton", "Chester", "Marion", "Greenwood", "Fairview",
}

const minTownDist = 4

// PlaceTowns makes up to attempts random placements on empty grass or forest
// tiles, skipping spots too close to an existing town. Returns the new towns.
func PlaceTowns(g *Grid, rng entropy.Source, attempts int) []Coord {
	var placed []Coord
	for i := 0; i < attempts; i++ {
		c := Coord{rng.Intn(g.Width), rng.Intn(g.Height)}
		t := g.at(c)
		if t == nil || !IsEmpty(t.Content) {
			continue
		}
		if t.Terrain != TerrainGrass && t.Terrain != TerrainForest {
			continue
		}
		if tooClose(c, g.towns, minTownDist) {
			continue
		}
		pop := uint32(500 + rng.Intn(4501))
		growth := 0.1 + rng.Float64()*1.9
		name := townNames[rng.Intn(len(townNames))]
		g.SetContent(c.X, c.Y, NewTown(name, pop, growth))
		placed = append(placed, c)
	}
	return placed
}

// PlaceIndustries makes up to attempts random placements of random industry
// types on empty land tiles. Returns the new industries.
func PlaceIndustries(g *Grid, rng entropy.Source, attempts int) []Coord {
	var placed []Coord
	for i := 0; i < attempts; i++ {
		c := Coord{rng.Intn(g.Width), rng.Intn(g.Height)}
		t := g.at(c)
		if t == nil || !IsEmpty(t.Content) || !t.Terrain.Buildable() {
			continue
		}
		kind := IndustryType(rng.Intn(numIndustryTypes))
		rate := uint32(10 + rng.Intn(91))
		g.SetContent(c.X, c.Y, NewIndustry(kind, rate))
		placed = append(placed, c)
	}
	return placed
}

func tooClose(c Coord, existing []Coord, minDist int) bool {
	for _, e := range existing {
		if Chebyshev(c, e) < minDist {
			return true
		}
	}
	return false
}
