package system

import (
	"time"

	"github.com/astraeus/server/internal/core/event"
	coresys "github.com/astraeus/server/internal/core/system"
)

// EventDispatchSystem delivers the events emitted since the previous tick.
// Registered ahead of MovementSystem so subscribers act before the world
// moves. Phase 0 (Prepare).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePrepare }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
