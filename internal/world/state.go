package world

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Limits sizes the world.
type Limits struct {
	Players       int
	Npcs          int
	ViewRadius    int
	LocalCapacity int
}

// State is the server context shared by the network handlers and the tick
// phases. It owns the registries and their slot allocators.
type State struct {
	limits Limits
	log    *zap.Logger

	players     *Registry[*Player]
	npcs        *Registry[*Npc]
	playerSlots *Slots
	npcSlots    *Slots

	// Slots of removed entities are released one full tick after removal
	// so no phase still holding a snapshot sees the id reused.
	releaseMu sync.Mutex
	pending   []release
	maturing  []release

	tick       atomic.Uint64
	playerSnap []*Player
	npcSnap    []*Npc
	playerGrid *AOIGrid[*Player]
	npcGrid    *AOIGrid[*Npc]
}

type release struct {
	slots *Slots
	id    int
}

func NewState(limits Limits, log *zap.Logger) *State {
	return &State{
		limits:      limits,
		log:         log,
		players:     NewRegistry[*Player](),
		npcs:        NewRegistry[*Npc](),
		playerSlots: NewSlots(limits.Players),
		npcSlots:    NewSlots(limits.Npcs),
		playerGrid:  NewAOIGrid[*Player](),
		npcGrid:     NewAOIGrid[*Npc](),
	}
}

func (s *State) Limits() Limits { return s.limits }

// AddPlayer assigns p a slot and registers it. It returns
// ErrCapacityExhausted when the world is full.
func (s *State) AddPlayer(p *Player) error {
	id, err := s.playerSlots.Acquire()
	if err != nil {
		return err
	}
	p.activate(id)
	if err := s.players.Insert(id, p); err != nil {
		p.deactivate()
		s.playerSlots.Release(id)
		return err
	}
	return nil
}

// RemovePlayer unregisters p. Its slot is released at the end of the next
// full tick.
func (s *State) RemovePlayer(p *Player) bool {
	if _, ok := s.players.RemoveIf(p.Index(), func(cur *Player) bool { return cur == p }); !ok {
		return false
	}
	s.deferRelease(s.playerSlots, p.Index())
	return true
}

func (s *State) AddNpc(n *Npc) error {
	id, err := s.npcSlots.Acquire()
	if err != nil {
		return err
	}
	n.activate(id)
	if err := s.npcs.Insert(id, n); err != nil {
		n.deactivate()
		s.npcSlots.Release(id)
		return err
	}
	return nil
}

// RemoveNpc despawns n. Like players, its slot is released at the end of
// the next full tick.
func (s *State) RemoveNpc(n *Npc) bool {
	if _, ok := s.npcs.RemoveIf(n.Index(), func(cur *Npc) bool { return cur == n }); !ok {
		return false
	}
	s.deferRelease(s.npcSlots, n.Index())
	return true
}

func (s *State) deferRelease(slots *Slots, id int) {
	s.releaseMu.Lock()
	s.pending = append(s.pending, release{slots: slots, id: id})
	s.releaseMu.Unlock()
}

func (s *State) Player(index int) (*Player, bool) { return s.players.Get(index) }

func (s *State) Npc(index int) (*Npc, bool) { return s.npcs.Get(index) }

// PlayerByName finds an online player, ignoring case.
func (s *State) PlayerByName(name string) (*Player, bool) {
	return s.players.Find(func(p *Player) bool { return strings.EqualFold(p.Name, name) })
}

func (s *State) PlayerCount() int { return s.players.Len() }

func (s *State) NpcCount() int { return s.npcs.Len() }

// Tick returns the number of the current (or last) tick.
func (s *State) Tick() uint64 { return s.tick.Load() }

// BeginTick starts a tick: it takes the snapshots every phase of this
// tick iterates and queues the slots removed since the previous one.
func (s *State) BeginTick() uint64 {
	s.releaseMu.Lock()
	s.maturing = append(s.maturing, s.pending...)
	s.pending = s.pending[:0]
	s.releaseMu.Unlock()

	s.playerSnap = s.players.Snapshot()
	s.npcSnap = s.npcs.Snapshot()
	return s.tick.Add(1)
}

// Players returns the players of the current tick, ordered by index.
func (s *State) Players() []*Player { return s.playerSnap }

// Npcs returns the npcs of the current tick, ordered by index.
func (s *State) Npcs() []*Npc { return s.npcSnap }

// IndexPositions rebuilds the visibility grids from the snapshot. It runs
// once movement for the tick is done.
func (s *State) IndexPositions() {
	s.playerGrid.Reset()
	for _, p := range s.playerSnap {
		if p.Active() {
			s.playerGrid.Add(p, p.Position())
		}
	}
	s.npcGrid.Reset()
	for _, n := range s.npcSnap {
		if n.Active() {
			s.npcGrid.Add(n, n.Position())
		}
	}
}

// PlayersNear appends to dst the candidates for an observer at pos. The
// result is unfiltered; callers check distance and activity.
func (s *State) PlayersNear(dst []*Player, pos Position) []*Player {
	return s.playerGrid.Nearby(dst, pos)
}

func (s *State) NpcsNear(dst []*Npc, pos Position) []*Npc {
	return s.npcGrid.Nearby(dst, pos)
}

// EndTick releases the slots of entities removed before this tick began.
func (s *State) EndTick() {
	s.releaseMu.Lock()
	due := s.maturing
	s.maturing = nil
	s.releaseMu.Unlock()

	for _, r := range due {
		if err := r.slots.Release(r.id); err != nil {
			if errors.Is(err, ErrNotAcquired) {
				s.log.Warn("slot released twice", zap.Int("slot", r.id))
				continue
			}
			s.log.Error("release slot", zap.Error(err))
		}
	}
}

// String is used in logs.
func (s *State) String() string {
	return fmt.Sprintf("tick=%d players=%d/%d npcs=%d/%d", s.Tick(),
		s.players.Len(), s.playerSlots.Capacity(), s.npcs.Len(), s.npcSlots.Capacity())
}
