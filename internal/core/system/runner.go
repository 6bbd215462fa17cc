package system

import (
	"fmt"
	"time"
)

// Runner holds the tick systems grouped by phase. Systems of one phase
// run in registration order.
type Runner struct {
	phases [phaseCount][]System
}

func NewRunner() *Runner {
	return &Runner{}
}

// Register adds s to the end of its phase. A system reporting a phase
// outside Phases is a wiring bug and panics.
func (r *Runner) Register(s System) {
	p := s.Phase()
	if p < 0 || p >= phaseCount {
		panic(fmt.Sprintf("system: %T registered for unknown phase %d", s, p))
	}
	r.phases[p] = append(r.phases[p], s)
}

// Tick runs every phase once.
func (r *Runner) Tick(dt time.Duration) {
	for _, p := range Phases {
		r.RunPhase(p, dt)
	}
}

// RunPhase runs only the systems of one phase.
func (r *Runner) RunPhase(phase Phase, dt time.Duration) {
	for _, s := range r.phases[phase] {
		s.Update(dt)
	}
}

// Len returns the number of systems registered for phase.
func (r *Runner) Len(phase Phase) int { return len(r.phases[phase]) }
