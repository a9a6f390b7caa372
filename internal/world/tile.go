package world

// Coord is a tile position on the grid. X grows east, Y grows south.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Neighbors returns the four orthogonal neighbours in N, E, S, W order.
// Coordinates may fall outside the grid; callers check bounds.
func (c Coord) Neighbors() [4]Coord {
	return [4]Coord{
		{c.X, c.Y - 1},
		{c.X + 1, c.Y},
		{c.X, c.Y + 1},
		{c.X - 1, c.Y},
	}
}

// Chebyshev returns the king-move distance between two coordinates.
func Chebyshev(a, b Coord) int {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Manhattan returns the taxicab distance between two coordinates.
func Manhattan(a, b Coord) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Terrain is the natural ground type of a tile. Fixed after generation.
type Terrain uint8

const (
	TerrainGrass Terrain = iota
	TerrainWater
	TerrainMountain
	TerrainDesert
	TerrainForest
)

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainGrass:
		return "Grass"
	case TerrainWater:
		return "Water"
	case TerrainMountain:
		return "Mountain"
	case TerrainDesert:
		return "Desert"
	case TerrainForest:
		return "Forest"
	default:
		return "Unknown"
	}
}

// Buildable reports whether infrastructure may be placed on the terrain.
func (t Terrain) Buildable() bool {
	return t != TerrainWater
}

// Tile is one cell of the grid.
type Tile struct {
	Terrain Terrain `json:"terrain"`
	Content Content `json:"-"`
	Height  uint8   `json:"height"`
}
