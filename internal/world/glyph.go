package world

import "strings"

// Glyph returns the single-character map symbol for a tile.
func Glyph(t Tile) rune {
	switch c := t.Content.(type) {
	case *Town:
		return '◉'
	case *Industry:
		return '▓'
	case *Station:
		return '■'
	case Track:
		switch c.Shape {
		case TrackHorizontal:
			return '─'
		case TrackVertical:
			return '│'
		case TrackCurve:
			return '┐'
		default:
			return '┼'
		}
	case Road:
		return '.'
	}
	switch t.Terrain {
	case TerrainWater:
		return '~'
	case TerrainMountain:
		return '^'
	case TerrainDesert:
		return '∙'
	case TerrainForest:
		return '♠'
	}
	return ' '
}

// Color returns the display colour tag for a tile.
func Color(t Tile) string {
	switch t.Content.(type) {
	case *Town:
		return "blue"
	case *Industry:
		return "red"
	case *Station:
		return "green"
	case Track:
		return "yellow"
	case Road:
		return "gray"
	}
	switch t.Terrain {
	case TerrainWater:
		return "blue"
	case TerrainMountain:
		return "white"
	case TerrainDesert:
		return "yellow"
	case TerrainForest:
		return "darkgreen"
	}
	return "lightgreen"
}

// Describe returns a short label for the tile's content.
func Describe(t Tile) string {
	switch c := t.Content.(type) {
	case *Town:
		return c.Name
	case *Industry:
		return c.Type.String()
	case *Station:
		return c.Name
	case Track:
		return "Track"
	case Road:
		return "Road"
	}
	return TerrainName(t.Terrain)
}

// Render draws the grid as text, one row per line. The overlay function may
// return a rune to draw in place of the tile glyph (e.g. a vehicle).
func (g *Grid) Render(overlay func(Coord) (rune, bool)) string {
	var b strings.Builder
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := Coord{x, y}
			if overlay != nil {
				if r, ok := overlay(c); ok {
					b.WriteRune(r)
					continue
				}
			}
			b.WriteRune(Glyph(*g.at(c)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
