package world

import (
	"fmt"
	"sort"
	"sync"
)

// Entity is anything the registry can track.
type Entity interface {
	Index() int
	Active() bool
	deactivate()
}

// Registry maps slot ids to live entities. Readers take snapshots so a
// tick phase never iterates the map while handlers insert or remove.
type Registry[E Entity] struct {
	mu   sync.RWMutex
	byID map[int]E
}

func NewRegistry[E Entity]() *Registry[E] {
	return &Registry[E]{byID: make(map[int]E)}
}

// Insert adds e under id. The id must not be present.
func (r *Registry[E]) Insert(id int, e E) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("world: id %d already registered", id)
	}
	r.byID[id] = e
	return nil
}

// Remove unregisters id and marks the entity inactive before returning,
// so a phase still holding it in a snapshot skips it.
func (r *Registry[E]) Remove(id int) (E, bool) {
	return r.RemoveIf(id, func(E) bool { return true })
}

// RemoveIf unregisters id only if match accepts the entity registered
// under it. Exactly one of several concurrent callers removing the same
// entity gets ok.
func (r *Registry[E]) RemoveIf(id int, match func(E) bool) (E, bool) {
	r.mu.Lock()
	e, ok := r.byID[id]
	ok = ok && match(e)
	if ok {
		delete(r.byID, id)
	}
	r.mu.Unlock()
	if ok {
		e.deactivate()
	}
	return e, ok
}

func (r *Registry[E]) Get(id int) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	return e, ok
}

// Snapshot returns the registered entities ordered by id.
func (r *Registry[E]) Snapshot() []E {
	r.mu.RLock()
	out := make([]E, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

// Find returns the first entity, in id order, for which match is true.
func (r *Registry[E]) Find(match func(E) bool) (E, bool) {
	for _, e := range r.Snapshot() {
		if match(e) {
			return e, true
		}
	}
	var zero E
	return zero, false
}

func (r *Registry[E]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
