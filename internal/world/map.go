package world

import "fmt"

// Grid holds the complete tile world. Every in-bounds coordinate maps to
// exactly one tile, stored row-major.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	tiles []Tile

	// Creation-order indexes over tiles holding towns, industries and stations.
	towns      []Coord
	industries []Coord
	stations   []Coord
}

// NewGrid creates a grid of empty grass tiles.
func NewGrid(width, height int) *Grid {
	g := &Grid{
		Width:  width,
		Height: height,
		tiles:  make([]Tile, width*height),
	}
	for i := range g.tiles {
		g.tiles[i] = Tile{Terrain: TerrainGrass, Content: Empty{}}
	}
	return g
}

// InBounds returns true if the coordinate lies on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// Tile returns a copy of the tile at (x, y), or false if out of bounds.
func (g *Grid) Tile(x, y int) (Tile, bool) {
	t := g.at(Coord{x, y})
	if t == nil {
		return Tile{}, false
	}
	return *t, true
}

// TileAt is Tile for a Coord.
func (g *Grid) TileAt(c Coord) (Tile, bool) {
	return g.Tile(c.X, c.Y)
}

func (g *Grid) at(c Coord) *Tile {
	if !g.InBounds(c.X, c.Y) {
		return nil
	}
	return &g.tiles[c.Y*g.Width+c.X]
}

// SetContent overwrites the content of a tile. Out-of-bounds is a no-op.
// Legality (terrain, occupancy, funds) is the caller's concern.
func (g *Grid) SetContent(x, y int, content Content) {
	c := Coord{x, y}
	t := g.at(c)
	if t == nil {
		return
	}
	if content == nil {
		content = Empty{}
	}
	prev := t.Content
	t.Content = content
	// Same kind keeps its slot in the index, and so its update order.
	if prev != nil && prev.contentKind() == content.contentKind() {
		return
	}
	g.unindex(c)
	switch content.(type) {
	case *Town:
		g.towns = append(g.towns, c)
	case *Industry:
		g.industries = append(g.industries, c)
	case *Station:
		g.stations = append(g.stations, c)
	}
}

// SetTerrain sets the terrain and height of a tile. Used during generation.
func (g *Grid) SetTerrain(x, y int, terrain Terrain, height uint8) {
	if t := g.at(Coord{x, y}); t != nil {
		t.Terrain = terrain
		t.Height = height
	}
}

func (g *Grid) unindex(c Coord) {
	g.towns = removeCoord(g.towns, c)
	g.industries = removeCoord(g.industries, c)
	g.stations = removeCoord(g.stations, c)
}

func removeCoord(list []Coord, c Coord) []Coord {
	for i, v := range list {
		if v == c {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Towns returns town coordinates in creation order.
func (g *Grid) Towns() []Coord { return append([]Coord(nil), g.towns...) }

// Industries returns industry coordinates in creation order.
func (g *Grid) Industries() []Coord { return append([]Coord(nil), g.industries...) }

// Stations returns station coordinates in creation order.
func (g *Grid) Stations() []Coord { return append([]Coord(nil), g.stations...) }

// TownAt returns the town on a tile, if any.
func (g *Grid) TownAt(c Coord) (*Town, bool) {
	t := g.at(c)
	if t == nil {
		return nil, false
	}
	town, ok := t.Content.(*Town)
	return town, ok
}

// IndustryAt returns the industry on a tile, if any.
func (g *Grid) IndustryAt(c Coord) (*Industry, bool) {
	t := g.at(c)
	if t == nil {
		return nil, false
	}
	ind, ok := t.Content.(*Industry)
	return ind, ok
}

// StationAt returns the station on a tile, if any.
func (g *Grid) StationAt(c Coord) (*Station, bool) {
	t := g.at(c)
	if t == nil {
		return nil, false
	}
	st, ok := t.Content.(*Station)
	return st, ok
}

// scanRadius visits every in-bounds coordinate within Chebyshev radius r of
// c, x-major. The visit function returns false to stop the scan.
func (g *Grid) scanRadius(c Coord, r int, visit func(Coord, *Tile) bool) {
	for x := max(c.X-r, 0); x <= min(c.X+r, g.Width-1); x++ {
		for y := max(c.Y-r, 0); y <= min(c.Y+r, g.Height-1); y++ {
			p := Coord{x, y}
			if !visit(p, g.at(p)) {
				return
			}
		}
	}
}

// StationsWithin returns every station within radius r of c.
func (g *Grid) StationsWithin(c Coord, r int) []Coord {
	var out []Coord
	g.scanRadius(c, r, func(p Coord, t *Tile) bool {
		if _, ok := t.Content.(*Station); ok {
			out = append(out, p)
		}
		return true
	})
	return out
}

// FirstStationWithin returns the first station found within radius r of c.
func (g *Grid) FirstStationWithin(c Coord, r int) (Coord, bool) {
	var found Coord
	ok := false
	g.scanRadius(c, r, func(p Coord, t *Tile) bool {
		if _, isStation := t.Content.(*Station); isStation {
			found, ok = p, true
			return false
		}
		return true
	})
	return found, ok
}

// TownsWithin returns every town within radius r of c.
func (g *Grid) TownsWithin(c Coord, r int) []Coord {
	var out []Coord
	g.scanRadius(c, r, func(p Coord, t *Tile) bool {
		if _, ok := t.Content.(*Town); ok {
			out = append(out, p)
		}
		return true
	})
	return out
}

// TerrainCounts returns the number of tiles of each terrain type.
func TerrainCounts(g *Grid) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range g.tiles {
		counts[t.Terrain]++
	}
	return counts
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, towns=%d, industries=%d, stations=%d)",
		g.Width, g.Height, len(g.towns), len(g.industries), len(g.stations))
}

// GridState is the serialisable form of a Grid, including index order.
type GridState struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Tiles      []Tile  `json:"tiles"`
	Towns      []Coord `json:"towns"`
	Industries []Coord `json:"industries"`
	Stations   []Coord `json:"stations"`
}

// State returns a deep-enough copy of the grid for persistence.
// Content pointers are shared; callers serialise immediately.
func (g *Grid) State() GridState {
	return GridState{
		Width:      g.Width,
		Height:     g.Height,
		Tiles:      append([]Tile(nil), g.tiles...),
		Towns:      g.Towns(),
		Industries: g.Industries(),
		Stations:   g.Stations(),
	}
}

// FromState rebuilds a grid and checks its indexes against tile contents.
func FromState(s GridState) (*Grid, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", s.Width, s.Height)
	}
	if len(s.Tiles) != s.Width*s.Height {
		return nil, fmt.Errorf("grid %dx%d has %d tiles", s.Width, s.Height, len(s.Tiles))
	}
	g := &Grid{Width: s.Width, Height: s.Height, tiles: append([]Tile(nil), s.Tiles...)}
	for i := range g.tiles {
		if g.tiles[i].Content == nil {
			g.tiles[i].Content = Empty{}
		}
	}
	counts := make(map[string]int, 3)
	for _, t := range g.tiles {
		counts[t.Content.contentKind()]++
	}
	seen := make(map[Coord]bool)
	check := func(list []Coord, want string) ([]Coord, error) {
		for _, c := range list {
			t := g.at(c)
			if t == nil || t.Content.contentKind() != want {
				return nil, fmt.Errorf("index lists %s at (%d,%d) but tile holds something else", want, c.X, c.Y)
			}
			if seen[c] {
				return nil, fmt.Errorf("index lists (%d,%d) more than once", c.X, c.Y)
			}
			seen[c] = true
		}
		if len(list) != counts[want] {
			return nil, fmt.Errorf("index lists %d %s tiles, grid holds %d", len(list), want, counts[want])
		}
		return append([]Coord(nil), list...), nil
	}
	var err error
	if g.towns, err = check(s.Towns, "town"); err != nil {
		return nil, err
	}
	if g.industries, err = check(s.Industries, "industry"); err != nil {
		return nil, err
	}
	if g.stations, err = check(s.Stations, "station"); err != nil {
		return nil, err
	}
	return g, nil
}
