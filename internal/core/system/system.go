package system

import "time"

// Phase defines execution ordering within a single tick. Every system of
// one phase finishes before any system of the next one starts.
type Phase int

const (
	PhasePrepare     Phase = iota // 0: movement, wander, latch flags
	PhaseSynchronize              // 1: build + send update packets
	PhaseReset                    // 2: clear flags, release slots

	phaseCount = PhaseReset + 1
)

// Phases lists the phases in execution order.
var Phases = []Phase{PhasePrepare, PhaseSynchronize, PhaseReset}

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseSynchronize:
		return "synchronize"
	case PhaseReset:
		return "reset"
	}
	return "unknown"
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
