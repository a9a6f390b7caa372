// World generation using layered simplex noise for terrain, then random
// placement of towns and industries.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/freight-tycoon/internal/entropy"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Seed        int64   `yaml:"seed"`         // noise seed (0 = derived from rng)
	SeaLevel    float64 `yaml:"sea_level"`    // elevation threshold for water (0.0–1.0)
	MountainLvl float64 `yaml:"mountain_lvl"` // elevation threshold for mountains (0.0–1.0)
	Towns       int     `yaml:"towns"`        // placement attempts
	Industries  int     `yaml:"industries"`   // placement attempts
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       64,
		Height:      48,
		SeaLevel:    0.30,
		MountainLvl: 0.78,
		Towns:       5,
		Industries:  8,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:       20,
		Height:      15,
		Seed:        42,
		SeaLevel:    0.30,
		MountainLvl: 0.80,
		Towns:       3,
		Industries:  4,
	}
}

// Generate creates a grid with terrain, towns and industries.
func Generate(cfg GenConfig, rng entropy.Source) *Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = int64(rng.Intn(math.MaxInt32)) + 1
	}

	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)

	g := NewGrid(cfg.Width, cfg.Height)
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			fx, fy := float64(x), float64(y)
			elev := octaveNoise(elevNoise, fx, fy, 4, 0.07, 0.5)
			moist := octaveNoise(moistNoise, fx, fy, 3, 0.05, 0.5)
			g.SetTerrain(x, y, deriveTerrain(elev, moist, cfg), uint8(math.Round(elev*10)))
		}
	}

	PlaceTowns(g, rng, cfg.Towns)
	PlaceIndustries(g, rng, cfg.Industries)
	return g
}

func deriveTerrain(elev, moist float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainWater
	}
	if elev > cfg.MountainLvl {
		return TerrainMountain
	}
	if moist > 0.62 {
		return TerrainForest
	}
	if moist < 0.28 {
		return TerrainDesert
	}
	return TerrainGrass
}

// octaveNoise sums several noise layers at increasing frequency.
func octaveNoise(n opensimplex.Noise, x, y float64, octaves int, freq, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += n.Eval2(x*freq, y*freq) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		freq *= 2
	}
	return total / maxVal
}
