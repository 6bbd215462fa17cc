package system

import (
	"runtime"
	"time"

	coresys "github.com/astraeus/server/internal/core/system"
	"github.com/astraeus/server/internal/handler"
	"github.com/astraeus/server/internal/update"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SyncSystem builds and queues every player's update packets. Observers
// are independent of each other: each one only reads other entities'
// latched frames and mutates its own local lists, so they are encoded in
// parallel. Phase 1 (Synchronize).
type SyncSystem struct {
	world   *world.State
	limits  update.Limits
	workers int
	log     *zap.Logger
}

// NewSyncSystem creates the synchronize system. workers <= 0 uses one
// worker per CPU.
func NewSyncSystem(ws *world.State, limits update.Limits, workers int, log *zap.Logger) *SyncSystem {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &SyncSystem{world: ws, limits: limits, workers: workers, log: log}
}

func (s *SyncSystem) Phase() coresys.Phase { return coresys.PhaseSynchronize }

func (s *SyncSystem) Update(_ time.Duration) {
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, p := range s.world.Players() {
		if !p.Active() {
			continue
		}
		g.Go(func() error {
			guard(s.log, "synchronize", "player", p.Index(), func() {
				s.synchronize(p)
			})
			return nil
		})
	}
	g.Wait()
}

// synchronize sends one observer its packets for the tick. The region
// packet must reach the client before the update that places the player
// in it.
func (s *SyncSystem) synchronize(p *world.Player) {
	if p.RegionChanged() {
		handler.SendRegionalUpdate(p, p.LastRegion())
	}
	p.Send(update.PlayerUpdate(p, s.world, s.limits))
	p.Send(update.NpcUpdate(p, s.world, s.limits))
}
