package system

import (
	"time"

	coresys "github.com/astraeus/server/internal/core/system"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

// ResetSystem clears the per-tick state of every entity and releases the
// slots of entities removed before the tick began. Phase 2 (Reset).
type ResetSystem struct {
	world *world.State
	log   *zap.Logger
}

func NewResetSystem(ws *world.State, log *zap.Logger) *ResetSystem {
	return &ResetSystem{world: ws, log: log}
}

func (s *ResetSystem) Phase() coresys.Phase { return coresys.PhaseReset }

func (s *ResetSystem) Update(_ time.Duration) {
	for _, p := range s.world.Players() {
		guard(s.log, "reset", "player", p.Index(), p.ResetFlags)
	}
	for _, n := range s.world.Npcs() {
		guard(s.log, "reset", "npc", n.Index(), n.ResetFlags)
	}
	s.world.EndTick()
}
