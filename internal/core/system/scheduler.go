package system

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the scheduler's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Observer is told how long each phase and tick took.
type Observer interface {
	PhaseDone(p Phase, elapsed time.Duration)
	TickDone(elapsed time.Duration, late bool)
}

type nopObserver struct{}

func (nopObserver) PhaseDone(Phase, time.Duration) {}
func (nopObserver) TickDone(time.Duration, bool)   {}

// Scheduler drives the runner at a fixed period. A tick that overruns the
// period pushes the next one back; ticks never overlap and missed ones
// are not replayed.
type Scheduler struct {
	runner   *Runner
	period   time.Duration
	observer Observer
	log      *zap.Logger

	state atomic.Int32
	phase atomic.Int32
	ticks atomic.Uint64
	late  atomic.Uint64
}

func NewScheduler(runner *Runner, period time.Duration, observer Observer, log *zap.Logger) *Scheduler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Scheduler{runner: runner, period: period, observer: observer, log: log}
}

// Run ticks until ctx is cancelled. The tick in progress when ctx is
// cancelled completes before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.period)
	defer timer.Stop()
	s.log.Info("tick scheduler started", zap.Duration("period", s.period))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("tick scheduler stopped", zap.Uint64("ticks", s.ticks.Load()))
			return nil
		case <-timer.C:
		}

		start := time.Now()
		s.Tick()
		elapsed := time.Since(start)

		wait := s.period - elapsed
		if wait < 0 {
			s.late.Add(1)
			s.log.Warn("tick overran period",
				zap.Duration("elapsed", elapsed),
				zap.Duration("period", s.period),
			)
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Tick runs one complete tick: every phase in order.
func (s *Scheduler) Tick() {
	s.state.Store(int32(StateRunning))
	start := time.Now()
	for _, p := range Phases {
		s.phase.Store(int32(p))
		phaseStart := time.Now()
		s.runner.RunPhase(p, s.period)
		s.observer.PhaseDone(p, time.Since(phaseStart))
	}
	elapsed := time.Since(start)
	s.ticks.Add(1)
	s.state.Store(int32(StateIdle))
	s.observer.TickDone(elapsed, elapsed > s.period)
}

// State reports whether a tick is in progress.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Phase is the phase currently (or last) executed.
func (s *Scheduler) Phase() Phase { return Phase(s.phase.Load()) }

// Ticks is the number of completed ticks.
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// LateTicks is the number of ticks that overran the period.
func (s *Scheduler) LateTicks() uint64 { return s.late.Load() }
