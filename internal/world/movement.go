package world

// maxQueuedSteps bounds a walking queue; longer paths are cut short.
const maxQueuedSteps = 50

// WalkingQueue holds the tiles a mob still has to walk through. Callers
// must hold the owning mob's lock.
type WalkingQueue struct {
	steps   []Position
	last    Position
	running bool
}

// Reset drops every queued step and anchors interpolation at from.
func (q *WalkingQueue) Reset(from Position) {
	q.steps = q.steps[:0]
	q.last = from
}

// Clear drops every queued step.
func (q *WalkingQueue) Clear() {
	q.steps = q.steps[:0]
}

// AddStep appends the straight line from the last queued tile to (x, y).
// Diagonal then straight, one tile per step, as the client interpolates.
func (q *WalkingQueue) AddStep(x, y int) {
	for q.last.X != x || q.last.Y != y {
		if len(q.steps) >= maxQueuedSteps {
			return
		}
		dir := DirectionBetween(x-q.last.X, y-q.last.Y)
		q.last = q.last.Step(dir)
		q.steps = append(q.steps, q.last)
	}
}

func (q *WalkingQueue) SetRunning(running bool) { q.running = running }

func (q *WalkingQueue) Running() bool { return q.running }

func (q *WalkingQueue) Empty() bool { return len(q.steps) == 0 }

func (q *WalkingQueue) Len() int { return len(q.steps) }

// Next consumes one tile (two when running) from the queue starting at
// from. It returns the new position and the directions taken; unused
// directions are None.
func (q *WalkingQueue) Next(from Position) (Position, Direction, Direction) {
	first, pos := q.pop(from)
	second := None
	if q.running && first != None {
		second, pos = q.pop(pos)
	}
	return pos, first, second
}

func (q *WalkingQueue) pop(from Position) (Direction, Position) {
	if len(q.steps) == 0 {
		return None, from
	}
	next := q.steps[0]
	q.steps = q.steps[1:]
	dir := DirectionBetween(next.X-from.X, next.Y-from.Y)
	if dir == None || from.Distance(next) != 1 || next.Plane != from.Plane {
		q.Clear()
		return None, from
	}
	return dir, next
}
