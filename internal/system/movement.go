package system

import (
	"time"

	coresys "github.com/astraeus/server/internal/core/system"
	"github.com/astraeus/server/internal/scripting"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

// Wanderer decides the idle step of a wandering npc.
type Wanderer interface {
	Wander(ctx scripting.WanderContext) (dx, dy int)
}

// MovementSystem opens the tick: it snapshots the registries, moves every
// entity one step, detects region changes and latches the flags the
// synchronize phase will encode. Phase 0 (Prepare).
type MovementSystem struct {
	world  *world.State
	wander Wanderer
	log    *zap.Logger
}

func NewMovementSystem(ws *world.State, wander Wanderer, log *zap.Logger) *MovementSystem {
	return &MovementSystem{world: ws, wander: wander, log: log}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhasePrepare }

func (s *MovementSystem) Update(_ time.Duration) {
	tick := s.world.BeginTick()

	for _, n := range s.world.Npcs() {
		if !n.Active() {
			continue
		}
		guard(s.log, "prepare", "npc", n.Index(), func() {
			if s.wander != nil && n.RandomWalk && n.Idle() {
				s.wanderStep(n, tick)
			}
			n.Advance()
			n.Latch()
		})
	}

	for _, p := range s.world.Players() {
		if !p.Active() {
			continue
		}
		guard(s.log, "prepare", "player", p.Index(), func() {
			p.Advance()
			if p.UpdateRegion() {
				s.log.Debug("region change",
					zap.String("player", p.Name),
					zap.Stringer("region", p.LastRegion()),
				)
			}
			p.Latch()
		})
	}

	s.world.IndexPositions()
}

func (s *MovementSystem) wanderStep(n *world.Npc, tick uint64) {
	pos := n.Position()
	dx, dy := s.wander.Wander(scripting.WanderContext{
		X:      pos.X,
		Y:      pos.Y,
		SpawnX: n.Spawn.X,
		SpawnY: n.Spawn.Y,
		Radius: n.WanderRadius,
		Roll:   wanderRoll(n.Index(), tick),
	})
	if dx == 0 && dy == 0 {
		return
	}
	n.WalkTo(false, world.Position{X: pos.X + dx, Y: pos.Y + dy, Plane: pos.Plane})
}

// wanderRoll is a splitmix64 hash of the npc index and tick, so replays
// of the same world wander the same way.
func wanderRoll(index int, tick uint64) int {
	z := uint64(index)<<32 ^ tick
	z += 0x9e3779b97f4a7c15
	z = (z ^ z>>30) * 0xbf58476d1ce4e5b9
	z = (z ^ z>>27) * 0x94d049bb133111eb
	z ^= z >> 31
	return int(z & 0x7fffffff)
}
