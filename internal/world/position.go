package world

import "fmt"

// Position is a tile coordinate on one of the world's planes.
type Position struct {
	X, Y  int
	Plane int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Plane)
}

// RegionX is the 8x8 chunk column containing p.
func (p Position) RegionX() int { return p.X >> 3 }

// RegionY is the 8x8 chunk row containing p.
func (p Position) RegionY() int { return p.Y >> 3 }

// TopLeftRegionX is the first chunk column of the 13x13 chunk area the
// client loads around a region.
func (p Position) TopLeftRegionX() int { return p.RegionX() - 6 }

func (p Position) TopLeftRegionY() int { return p.RegionY() - 6 }

// LocalX is p's column inside the area loaded around base.
func (p Position) LocalX(base Position) int { return p.X - 8*base.TopLeftRegionX() }

func (p Position) LocalY(base Position) int { return p.Y - 8*base.TopLeftRegionY() }

// Delta returns other minus p.
func (p Position) Delta(other Position) (dx, dy int) {
	return other.X - p.X, other.Y - p.Y
}

// Distance is the Chebyshev distance to other, ignoring the plane.
func (p Position) Distance(other Position) int {
	dx, dy := p.Delta(other)
	return max(abs(dx), abs(dy))
}

// WithinDistance reports whether other is on the same plane and no more
// than d tiles away on either axis.
func (p Position) WithinDistance(other Position, d int) bool {
	return p.Plane == other.Plane && p.Distance(other) <= d
}

// Step returns p moved one tile in dir.
func (p Position) Step(dir Direction) Position {
	if dir == None {
		return p
	}
	return Position{X: p.X + dir.DeltaX(), Y: p.Y + dir.DeltaY(), Plane: p.Plane}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
