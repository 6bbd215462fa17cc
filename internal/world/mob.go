package world

import (
	"sync"
	"sync/atomic"
)

// Mob is the state shared by players and npcs. Fields reachable from
// handlers are guarded by mu; the tick phases take the same lock when they
// advance or read an entity.
type Mob struct {
	mu     sync.Mutex
	index  int
	active atomic.Bool

	pos      Position
	queue    WalkingQueue
	teleport *Position

	// Movement of the current tick, written in the prepare phase.
	primary    Direction
	secondary  Direction
	teleported bool

	pending       FlagSet
	pendingBlocks Blocks
	latched       FlagSet
	blocks        Blocks
}

func (m *Mob) init(pos Position) {
	m.pos = pos
	m.queue.Reset(pos)
	m.primary, m.secondary = None, None
}

// Index is the entity's slot id, valid while it is registered.
func (m *Mob) Index() int { return m.index }

// Active reports whether the entity is registered in the world.
func (m *Mob) Active() bool { return m.active.Load() }

func (m *Mob) activate(index int) {
	m.index = index
	m.active.Store(true)
}

func (m *Mob) deactivate() { m.active.Store(false) }

func (m *Mob) Position() Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// WalkTo replaces the walking queue with the given waypoints, starting
// from the current position.
func (m *Mob) WalkTo(running bool, waypoints ...Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.Reset(m.pos)
	m.queue.SetRunning(running)
	for _, wp := range waypoints {
		if wp.Plane != m.pos.Plane {
			break
		}
		m.queue.AddStep(wp.X, wp.Y)
	}
}

// SetRunning toggles running for the queued path.
func (m *Mob) SetRunning(running bool) {
	m.mu.Lock()
	m.queue.SetRunning(running)
	m.mu.Unlock()
}

func (m *Mob) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Running()
}

// StopWalking drops the queued path.
func (m *Mob) StopWalking() {
	m.mu.Lock()
	m.queue.Clear()
	m.mu.Unlock()
}

// Teleport moves the entity to pos on the next prepare phase.
func (m *Mob) Teleport(pos Position) {
	m.mu.Lock()
	m.teleport = &pos
	m.mu.Unlock()
}

func (m *Mob) setFlag(f Flag, apply func(b *Blocks)) {
	m.mu.Lock()
	m.pending = m.pending.With(f)
	if apply != nil {
		apply(&m.pendingBlocks)
	}
	m.mu.Unlock()
}

func (m *Mob) PlayAnimation(a Animation) {
	m.setFlag(FlagAnimation, func(b *Blocks) { b.Animation = a })
}

func (m *Mob) PlayGraphic(g Graphic) {
	m.setFlag(FlagGraphics, func(b *Blocks) { b.Graphic = g })
}

func (m *Mob) FacePosition(p Position) {
	m.setFlag(FlagFaceCoordinate, func(b *Blocks) { b.Face = p })
}

func (m *Mob) ForceChat(text string) {
	m.setFlag(FlagForcedChat, func(b *Blocks) { b.ForcedChat = text })
}

// Interact focuses the entity on another one. target is the client-side
// id: npc index, player index + 32768, or NoInteraction.
func (m *Mob) Interact(target int) {
	m.setFlag(FlagInteracting, func(b *Blocks) { b.Interacting = target })
}

// Advance applies the pending teleport or walks one tick along the queue.
// It runs in the prepare phase.
func (m *Mob) Advance() (moved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primary, m.secondary = None, None
	if m.teleport != nil {
		m.pos = *m.teleport
		m.teleport = nil
		m.teleported = true
		m.queue.Reset(m.pos)
		return true
	}
	m.pos, m.primary, m.secondary = m.queue.Next(m.pos)
	return m.primary != None
}

// Latch publishes the pending flags for this tick. Flags set after Latch
// stay pending until the next one.
func (m *Mob) Latch() {
	m.mu.Lock()
	m.latched = m.pending
	m.blocks = m.pendingBlocks
	m.pending = 0
	m.pendingBlocks = Blocks{}
	m.mu.Unlock()
}

// ResetFlags clears the latched flags and per-tick movement.
func (m *Mob) ResetFlags() {
	m.mu.Lock()
	m.latched = 0
	m.blocks = Blocks{}
	m.primary, m.secondary = None, None
	m.teleported = false
	m.mu.Unlock()
}

// Frame is what the synchronize phase encodes for one entity.
type Frame struct {
	Position   Position
	Primary    Direction
	Secondary  Direction
	Teleported bool
	Flags      FlagSet
	Blocks     Blocks
}

// UpdateRequired reports whether any block follows the movement bits.
func (f Frame) UpdateRequired() bool { return !f.Flags.Empty() }

// Frame returns the latched state of the current tick.
func (m *Mob) Frame() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Frame{
		Position:   m.pos,
		Primary:    m.primary,
		Secondary:  m.secondary,
		Teleported: m.teleported,
		Flags:      m.latched,
		Blocks:     m.blocks,
	}
}
