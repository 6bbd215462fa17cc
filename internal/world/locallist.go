package world

// LocalList is the ordered set of entities an observer's client currently
// tracks. Order matters: the client consumes movement entries positionally.
// A LocalList belongs to a single observer and is not safe for concurrent
// use.
type LocalList[E comparable] struct {
	entries  []E
	members  map[E]struct{}
	deferred map[E]Deferred
	capacity int
}

func NewLocalList[E comparable](capacity int) *LocalList[E] {
	return &LocalList[E]{
		entries:  make([]E, 0, min(capacity, 64)),
		members:  make(map[E]struct{}),
		deferred: make(map[E]Deferred),
		capacity: capacity,
	}
}

func (l *LocalList[E]) Contains(e E) bool {
	_, ok := l.members[e]
	return ok
}

// Add appends e. It reports false if e is already present or the list is
// full.
func (l *LocalList[E]) Add(e E) bool {
	if l.Full() || l.Contains(e) {
		return false
	}
	l.entries = append(l.entries, e)
	l.members[e] = struct{}{}
	return true
}

// Remove deletes e, keeping the order of the rest.
func (l *LocalList[E]) Remove(e E) bool {
	if !l.Contains(e) {
		return false
	}
	delete(l.members, e)
	delete(l.deferred, e)
	for i, x := range l.entries {
		if x == e {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	return true
}

// Retain keeps the entries for which keep returns true, in order, and
// returns the ones dropped.
func (l *LocalList[E]) Retain(keep func(E) bool) []E {
	var dropped []E
	kept := l.entries[:0]
	for _, e := range l.entries {
		if keep(e) {
			kept = append(kept, e)
			continue
		}
		delete(l.members, e)
		delete(l.deferred, e)
		dropped = append(dropped, e)
	}
	var zero E
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = zero
	}
	l.entries = kept
	return dropped
}

// Defer keeps blocks for a tracked entity until its next update. It
// reports false if e is not tracked.
func (l *LocalList[E]) Defer(e E, flags FlagSet, b Blocks) bool {
	if !l.Contains(e) {
		return false
	}
	l.deferred[e] = Deferred{Flags: flags, Blocks: b}
	return true
}

// TakeDeferred returns and forgets the blocks deferred for e.
func (l *LocalList[E]) TakeDeferred(e E) Deferred {
	d, ok := l.deferred[e]
	if ok {
		delete(l.deferred, e)
	}
	return d
}

// Entries returns the list in client order. The slice must not be
// modified.
func (l *LocalList[E]) Entries() []E { return l.entries }

func (l *LocalList[E]) Len() int { return len(l.entries) }

func (l *LocalList[E]) Capacity() int { return l.capacity }

func (l *LocalList[E]) Full() bool { return len(l.entries) >= l.capacity }

// Clear empties the list.
func (l *LocalList[E]) Clear() {
	clear(l.members)
	clear(l.deferred)
	clear(l.entries)
	l.entries = l.entries[:0]
}
