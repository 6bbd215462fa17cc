package world

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

var (
	// ErrCapacityExhausted is returned by Acquire when every id is taken.
	ErrCapacityExhausted = errors.New("world: capacity exhausted")

	// ErrNotAcquired is returned by Release for an id that is not held.
	ErrNotAcquired = errors.New("world: slot not acquired")
)

// Slots hands out small integer ids in [0, capacity). Acquire always
// returns the lowest free id. Safe for concurrent use.
type Slots struct {
	mu       sync.Mutex
	used     []uint64
	capacity int
	inUse    int
}

func NewSlots(capacity int) *Slots {
	if capacity < 0 {
		capacity = 0
	}
	return &Slots{
		used:     make([]uint64, (capacity+63)/64),
		capacity: capacity,
	}
}

// Acquire marks the lowest free id as used and returns it.
func (s *Slots) Acquire() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w, word := range s.used {
		if word == ^uint64(0) {
			continue
		}
		id := w*64 + bits.TrailingZeros64(^word)
		if id >= s.capacity {
			break
		}
		s.used[w] |= 1 << (id % 64)
		s.inUse++
		return id, nil
	}
	return -1, ErrCapacityExhausted
}

// Release frees id. Releasing a free or out-of-range id leaves the
// allocator untouched and returns ErrNotAcquired.
func (s *Slots) Release(id int) error {
	if id < 0 || id >= s.capacity {
		return fmt.Errorf("%w: %d out of range", ErrNotAcquired, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bit := uint64(1) << (id % 64)
	if s.used[id/64]&bit == 0 {
		return fmt.Errorf("%w: %d", ErrNotAcquired, id)
	}
	s.used[id/64] &^= bit
	s.inUse--
	return nil
}

// InUse returns the number of held ids.
func (s *Slots) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

func (s *Slots) Capacity() int { return s.capacity }
