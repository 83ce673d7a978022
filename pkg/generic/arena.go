package generic

import "fmt"

// Handle addresses a slot of an Arena. The generation makes handles to
// released slots fail lookups even after the slot is reused.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h is the zero handle, which no Arena ever issues.
func (h Handle) IsZero() bool { return h.Generation == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena is a slot map: values live in a dense slice and are addressed by
// generation-checked handles. Released slots are recycled LIFO.
// Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Insert stores value and returns its handle.
func (a *Arena[T]) Insert(value T) Handle {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[index]
	s.generation++
	if s.generation == 0 {
		// wrapped; zero is reserved for the zero handle
		s.generation = 1
	}
	s.value = value
	s.occupied = true
	a.count++

	return Handle{Index: index, Generation: s.generation}
}

// Get returns the value addressed by h.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	s, ok := a.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Contains reports whether h addresses a live value.
func (a *Arena[T]) Contains(h Handle) bool {
	_, ok := a.lookup(h)
	return ok
}

// Remove releases the slot addressed by h and returns the value it held.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	s, ok := a.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	value := s.value
	var zero T
	s.value = zero
	s.occupied = false
	a.free = append(a.free, h.Index)
	a.count--
	return value, true
}

func (a *Arena[T]) Len() int {
	return a.count
}

// Each calls fn for every live value in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.occupied {
			continue
		}
		if !fn(Handle{Index: uint32(i), Generation: s.generation}, s.value) {
			return
		}
	}
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], bool) {
	if h.Generation == 0 || int(h.Index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return nil, false
	}
	return s, true
}
