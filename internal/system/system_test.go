package system

import (
	"errors"
	"sync"
	"testing"

	"github.com/astraeus/server/internal/core/event"
	coresys "github.com/astraeus/server/internal/core/system"
	"github.com/astraeus/server/internal/handler"
	"github.com/astraeus/server/internal/net/packet"
	"github.com/astraeus/server/internal/scripting"
	"github.com/astraeus/server/internal/update"
	"github.com/astraeus/server/internal/world"
	"go.uber.org/zap"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*packet.Packet
}

func (r *recordingSender) Send(p *packet.Packet) {
	r.mu.Lock()
	r.sent = append(r.sent, p)
	r.mu.Unlock()
}

func (r *recordingSender) Disconnect() {}

func (r *recordingSender) take() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]int, len(r.sent))
	for i, p := range r.sent {
		ops[i] = p.Opcode
	}
	r.sent = nil
	return ops
}

type stepEast struct{ calls int }

func (w *stepEast) Wander(scripting.WanderContext) (int, int) {
	w.calls++
	return 1, 0
}

type panickingWanderer struct{}

func (panickingWanderer) Wander(ctx scripting.WanderContext) (int, int) {
	if ctx.X == 100 {
		panic("broken npc")
	}
	return 0, 1
}

func newRunner(ws *world.State, wander Wanderer) *coresys.Runner {
	log := zap.NewNop()
	r := coresys.NewRunner()
	// Registered out of order on purpose: the runner sorts by phase.
	r.Register(NewResetSystem(ws, log))
	r.Register(NewSyncSystem(ws, update.DefaultLimits, 2, log))
	r.Register(NewMovementSystem(ws, wander, log))
	return r
}

func newWorld() *world.State {
	return world.NewState(world.Limits{Players: 8, Npcs: 8, ViewRadius: 15, LocalCapacity: 255}, zap.NewNop())
}

func equalOps(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTickPacketOrder(t *testing.T) {
	ws := newWorld()
	out := &recordingSender{}
	p := world.NewPlayer("alice", world.Position{X: 3200, Y: 3200}, out, 255)
	if err := ws.AddPlayer(p); err != nil {
		t.Fatal(err)
	}
	r := newRunner(ws, nil)

	r.Tick(0)
	want := []int{handler.OpRegionalUpdate, update.PlayerUpdateOpcode, update.NpcUpdateOpcode}
	if got := out.take(); !equalOps(got, want) {
		t.Fatalf("first tick sent %v, want %v", got, want)
	}

	r.Tick(0)
	want = []int{update.PlayerUpdateOpcode, update.NpcUpdateOpcode}
	if got := out.take(); !equalOps(got, want) {
		t.Fatalf("second tick sent %v, want %v", got, want)
	}
	if p.RegionChanged() {
		t.Fatal("region marker should be cleared by the reset phase")
	}
}

func TestTickSeesEachOther(t *testing.T) {
	ws := newWorld()
	a := world.NewPlayer("alice", world.Position{X: 3200, Y: 3200}, &recordingSender{}, 255)
	b := world.NewPlayer("bob", world.Position{X: 3203, Y: 3201}, &recordingSender{}, 255)
	ws.AddPlayer(a)
	ws.AddPlayer(b)
	r := newRunner(ws, nil)

	r.Tick(0)
	if !a.LocalPlayers.Contains(b) || !b.LocalPlayers.Contains(a) {
		t.Fatal("players in range should be added to each other's view")
	}

	ws.RemovePlayer(b)
	r.Tick(0)
	if a.LocalPlayers.Contains(b) {
		t.Fatal("removed player still in view")
	}
}

func TestRemovedSlotReleasedAfterFollowingTick(t *testing.T) {
	ws := world.NewState(world.Limits{Players: 1, Npcs: 1, ViewRadius: 15, LocalCapacity: 255}, zap.NewNop())
	r := newRunner(ws, nil)

	p := world.NewPlayer("alice", world.Position{X: 3200, Y: 3200}, &recordingSender{}, 255)
	ws.AddPlayer(p)
	r.Tick(0)
	ws.RemovePlayer(p)

	again := world.NewPlayer("bob", world.Position{}, &recordingSender{}, 255)
	if err := ws.AddPlayer(again); !errors.Is(err, world.ErrCapacityExhausted) {
		t.Fatalf("slot reused before a full tick: %v", err)
	}
	r.Tick(0)
	if err := ws.AddPlayer(again); err != nil {
		t.Fatalf("slot not released after the tick: %v", err)
	}
}

func TestWanderingNpcMoves(t *testing.T) {
	ws := newWorld()
	walker := world.NewNpc(1, world.Position{X: 100, Y: 100}, world.South, true, 2)
	still := world.NewNpc(2, world.Position{X: 110, Y: 100}, world.South, false, 0)
	ws.AddNpc(walker)
	ws.AddNpc(still)
	w := &stepEast{}
	r := newRunner(ws, w)

	r.Tick(0)
	if got := walker.Position(); got != (world.Position{X: 101, Y: 100}) {
		t.Fatalf("wandering npc at %v", got)
	}
	if got := still.Position(); got != (world.Position{X: 110, Y: 100}) {
		t.Fatalf("static npc moved to %v", got)
	}
	if w.calls != 1 {
		t.Fatalf("wanderer called %d times, want 1", w.calls)
	}
}

func TestEntityPanicIsContained(t *testing.T) {
	ws := newWorld()
	broken := world.NewNpc(1, world.Position{X: 100, Y: 100}, world.South, true, 2)
	fine := world.NewNpc(1, world.Position{X: 120, Y: 100}, world.South, true, 2)
	ws.AddNpc(broken)
	ws.AddNpc(fine)
	r := newRunner(ws, panickingWanderer{})

	r.Tick(0)
	if got := fine.Position(); got != (world.Position{X: 120, Y: 101}) {
		t.Fatalf("healthy npc at %v, want one step north", got)
	}
	if ws.Tick() != 1 {
		t.Fatalf("tick = %d", ws.Tick())
	}
}

func TestWanderRollDeterministic(t *testing.T) {
	if wanderRoll(5, 10) != wanderRoll(5, 10) {
		t.Fatal("roll not deterministic")
	}
	if wanderRoll(5, 10) == wanderRoll(6, 10) && wanderRoll(5, 10) == wanderRoll(5, 11) {
		t.Fatal("roll ignores its inputs")
	}
	if wanderRoll(1<<20, 1<<40) < 0 {
		t.Fatal("roll must be non-negative")
	}
}

func TestEventDispatchRunsBeforeMovement(t *testing.T) {
	ws := newWorld()
	bus := event.NewBus()
	var tickSeen uint64
	event.Subscribe(bus, func(event.PlayerLoggedIn) { tickSeen = ws.Tick() })

	r := coresys.NewRunner()
	r.Register(NewEventDispatchSystem(bus))
	r.Register(NewMovementSystem(ws, nil, zap.NewNop()))
	r.Register(NewResetSystem(ws, zap.NewNop()))
	event.Emit(bus, event.PlayerLoggedIn{Name: "alice"})
	r.Tick(0)

	// Subscribers run in prepare before BeginTick advances the counter.
	if tickSeen != 0 {
		t.Fatalf("event delivered at tick %d, want 0", tickSeen)
	}
	if ws.Tick() != 1 {
		t.Fatalf("tick = %d", ws.Tick())
	}
}
