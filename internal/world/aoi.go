package world

// AOIGrid buckets entities into square cells so visibility queries only
// look at nearby cells. Cell size is at least the view radius, so a 3x3
// neighbourhood of cells covers every entity in range.
//
// The grid is rebuilt in the prepare phase after movement and only read
// during synchronize; it has no locks.

const cellSize = 16

type cellKey struct {
	plane int
	cx    int
	cy    int
}

func toCellCoord(v int) int {
	if v < 0 {
		return (v - cellSize + 1) / cellSize
	}
	return v / cellSize
}

// AOIGrid tracks which entities are in which cells.
type AOIGrid[E any] struct {
	cells map[cellKey][]E
}

func NewAOIGrid[E any]() *AOIGrid[E] {
	return &AOIGrid[E]{
		cells: make(map[cellKey][]E),
	}
}

func (g *AOIGrid[E]) key(p Position) cellKey {
	return cellKey{plane: p.Plane, cx: toCellCoord(p.X), cy: toCellCoord(p.Y)}
}

// Add places an entity into the grid.
func (g *AOIGrid[E]) Add(e E, p Position) {
	k := g.key(p)
	g.cells[k] = append(g.cells[k], e)
}

// Reset empties the grid, keeping allocated cells for reuse.
func (g *AOIGrid[E]) Reset() {
	for k, cell := range g.cells {
		if len(cell) == 0 {
			delete(g.cells, k)
			continue
		}
		clear(cell)
		g.cells[k] = cell[:0]
	}
}

// Nearby appends to dst every entity in the 3x3 neighbourhood of cells
// around p. The caller does the exact distance check.
func (g *AOIGrid[E]) Nearby(dst []E, p Position) []E {
	cx, cy := toCellCoord(p.X), toCellCoord(p.Y)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			dst = append(dst, g.cells[cellKey{plane: p.Plane, cx: cx + dx, cy: cy + dy}]...)
		}
	}
	return dst
}
