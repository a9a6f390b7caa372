package vehicle

import "github.com/talgya/freight-tycoon/internal/world"

// FindPath returns the tile sequence from start to goal for a vehicle kind.
// The path includes start at index 0. Trains and road vehicles use an
// unweighted breadth-first search over four-neighbour adjacency; ships and
// aircraft travel direct.
func FindPath(g *world.Grid, k Kind, start, goal world.Coord) ([]world.Coord, bool) {
	if !g.InBounds(goal.X, goal.Y) || !g.InBounds(start.X, start.Y) {
		return nil, false
	}
	if start == goal {
		return []world.Coord{start}, true
	}

	switch k.(type) {
	case Train:
		return bfs(g, start, goal, trackPassable)
	case RoadVehicle:
		return bfs(g, start, goal, func(t world.Tile, c world.Coord) bool {
			// Road vehicles may pull up to the goal itself, e.g. a town centre.
			return c == goal || roadPassable(t)
		})
	case Ship, Aircraft:
		return []world.Coord{start, goal}, true
	}
	return nil, false
}

func trackPassable(t world.Tile, _ world.Coord) bool {
	switch t.Content.(type) {
	case world.Track, *world.Station:
		return true
	}
	return false
}

func roadPassable(t world.Tile) bool {
	if t.Terrain == world.TerrainWater || t.Terrain == world.TerrainMountain {
		return false
	}
	switch t.Content.(type) {
	case world.Road, *world.Station, world.Empty:
		return true
	}
	return false
}

func bfs(g *world.Grid, start, goal world.Coord, passable func(world.Tile, world.Coord) bool) ([]world.Coord, bool) {
	prev := map[world.Coord]world.Coord{start: start}
	queue := []world.Coord{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			return reconstruct(prev, start, goal), true
		}
		for _, n := range cur.Neighbors() {
			if _, seen := prev[n]; seen {
				continue
			}
			t, ok := g.TileAt(n)
			if !ok || !passable(t, n) {
				continue
			}
			prev[n] = cur
			queue = append(queue, n)
		}
	}
	return nil, false
}

func reconstruct(prev map[world.Coord]world.Coord, start, goal world.Coord) []world.Coord {
	var path []world.Coord
	for c := goal; c != start; c = prev[c] {
		path = append(path, c)
	}
	path = append(path, start)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
