package world

// Direction is a compass heading numbered the way the client numbers it.
// None means no movement.
type Direction int

const (
	None      Direction = -1
	NorthWest Direction = 0
	North     Direction = 1
	NorthEast Direction = 2
	West      Direction = 3
	East      Direction = 4
	SouthWest Direction = 5
	South     Direction = 6
	SouthEast Direction = 7
)

var (
	directionDeltaX = [8]int{-1, 0, 1, -1, 1, -1, 0, 1}
	directionDeltaY = [8]int{1, 1, 1, 0, 0, -1, -1, -1}
)

// DirectionBetween returns the heading of a single step by (dx, dy). Each
// component is reduced to its sign; a zero delta yields None.
func DirectionBetween(dx, dy int) Direction {
	dx, dy = sign(dx), sign(dy)
	for d := range directionDeltaX {
		if directionDeltaX[d] == dx && directionDeltaY[d] == dy {
			return Direction(d)
		}
	}
	return None
}

func (d Direction) DeltaX() int {
	if d == None {
		return 0
	}
	return directionDeltaX[d]
}

func (d Direction) DeltaY() int {
	if d == None {
		return 0
	}
	return directionDeltaY[d]
}

// Valid reports whether d is one of the eight headings.
func (d Direction) Valid() bool { return d >= NorthWest && d <= SouthEast }

// ParseDirection maps a name like "south" or "north_west" to a heading.
func ParseDirection(name string) (Direction, bool) {
	switch name {
	case "north_west", "northwest", "NORTH_WEST":
		return NorthWest, true
	case "north", "NORTH":
		return North, true
	case "north_east", "northeast", "NORTH_EAST":
		return NorthEast, true
	case "west", "WEST":
		return West, true
	case "east", "EAST":
		return East, true
	case "south_west", "southwest", "SOUTH_WEST":
		return SouthWest, true
	case "south", "SOUTH":
		return South, true
	case "south_east", "southeast", "SOUTH_EAST":
		return SouthEast, true
	case "", "none", "NONE":
		return None, true
	}
	return None, false
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
