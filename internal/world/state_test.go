package world

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newTestState(players, npcs int) *State {
	return NewState(Limits{Players: players, Npcs: npcs, ViewRadius: 15, LocalCapacity: 255}, zap.NewNop())
}

func TestRegistrySnapshotOrdered(t *testing.T) {
	r := NewRegistry[*Npc]()
	for _, id := range []int{5, 1, 3} {
		n := NewNpc(1, Position{}, South, false, 0)
		n.activate(id)
		if err := r.Insert(id, n); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := r.Insert(3, NewNpc(1, Position{}, South, false, 0)); err == nil {
		t.Fatal("duplicate Insert succeeded")
	}
	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Index() != 1 || snap[1].Index() != 3 || snap[2].Index() != 5 {
		t.Fatalf("snapshot order wrong")
	}

	removed, ok := r.Remove(3)
	if !ok || removed.Active() {
		t.Fatal("removed entity still active")
	}
	if _, ok := r.Get(3); ok {
		t.Fatal("Get after Remove found entity")
	}
	if len(snap) != 3 {
		t.Fatal("existing snapshot changed")
	}
}

func TestStateDefersSlotRelease(t *testing.T) {
	s := newTestState(1, 1)
	a := NewPlayer("alice", Position{X: 3200, Y: 3200}, nil, 255)
	if err := s.AddPlayer(a); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if err := s.AddPlayer(NewPlayer("bob", Position{}, nil, 255)); !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("AddPlayer on full world = %v", err)
	}

	s.BeginTick()
	if !s.RemovePlayer(a) {
		t.Fatal("RemovePlayer failed")
	}
	if a.Active() {
		t.Fatal("removed player still active")
	}
	if len(s.Players()) != 1 {
		t.Fatal("snapshot of the running tick changed")
	}
	s.EndTick()

	// Removed during the tick: the slot stays held until the next one ends.
	if err := s.AddPlayer(NewPlayer("bob", Position{}, nil, 255)); !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("slot reused in the same tick: %v", err)
	}
	s.BeginTick()
	if len(s.Players()) != 0 {
		t.Fatal("removed player in next snapshot")
	}
	s.EndTick()
	if err := s.AddPlayer(NewPlayer("bob", Position{}, nil, 255)); err != nil {
		t.Fatalf("AddPlayer after release: %v", err)
	}
}

func TestStateRemoveTwiceIsIgnored(t *testing.T) {
	s := newTestState(2, 1)
	p := NewPlayer("alice", Position{}, nil, 255)
	s.AddPlayer(p)
	if !s.RemovePlayer(p) {
		t.Fatal("first remove failed")
	}
	if s.RemovePlayer(p) {
		t.Fatal("second remove reported success")
	}
}

func TestStateConcurrentRemoveReleasesOnce(t *testing.T) {
	s := newTestState(1, 1)
	a := NewPlayer("alice", Position{}, nil, 255)
	if err := s.AddPlayer(a); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.RemovePlayer(a) {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if removed != 1 {
		t.Fatalf("%d removals succeeded, want 1", removed)
	}

	s.BeginTick()
	s.EndTick()
	b := NewPlayer("bob", Position{}, nil, 255)
	if err := s.AddPlayer(b); err != nil {
		t.Fatalf("AddPlayer after release: %v", err)
	}
	s.BeginTick()
	s.EndTick()
	if err := s.AddPlayer(NewPlayer("carol", Position{}, nil, 255)); !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("slot held by bob was released again: %v", err)
	}
}

func TestStatePlayerByName(t *testing.T) {
	s := newTestState(4, 1)
	s.AddPlayer(NewPlayer("Zezima", Position{}, nil, 255))
	if p, ok := s.PlayerByName("zezima"); !ok || p.Name != "Zezima" {
		t.Fatal("case-insensitive lookup failed")
	}
	if _, ok := s.PlayerByName("nobody"); ok {
		t.Fatal("found a player that is not online")
	}
}

func TestStateConcurrentAddRemove(t *testing.T) {
	s := newTestState(64, 1)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := NewPlayer("p", Position{}, nil, 255)
			if err := s.AddPlayer(p); err != nil {
				t.Errorf("AddPlayer: %v", err)
				return
			}
			s.RemovePlayer(p)
		}()
	}
	for i := 0; i < 4; i++ {
		s.BeginTick()
		for _, p := range s.Players() {
			_ = p.Frame()
		}
		s.EndTick()
	}
	wg.Wait()
	s.BeginTick()
	s.EndTick()
	s.BeginTick()
	s.EndTick()
	if s.playerSlots.InUse() != 0 {
		t.Fatalf("slots leaked: %d in use", s.playerSlots.InUse())
	}
}

func TestAOIGridNearby(t *testing.T) {
	s := newTestState(8, 8)
	near := NewNpc(1, Position{X: 3210, Y: 3210}, South, false, 0)
	far := NewNpc(1, Position{X: 3300, Y: 3300}, South, false, 0)
	upstairs := NewNpc(1, Position{X: 3200, Y: 3200, Plane: 1}, South, false, 0)
	for _, n := range []*Npc{near, far, upstairs} {
		s.AddNpc(n)
	}
	s.BeginTick()
	s.IndexPositions()
	got := s.NpcsNear(nil, Position{X: 3200, Y: 3200})
	if len(got) != 1 || got[0] != near {
		t.Fatalf("NpcsNear = %d entries", len(got))
	}
}

func TestStateStringShowsCapacity(t *testing.T) {
	s := newTestState(4, 16)
	s.AddPlayer(NewPlayer("alice", Position{}, nil, 255))
	if got, want := s.String(), "tick=0 players=1/4 npcs=0/16"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
