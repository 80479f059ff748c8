package resource

import (
	"math"
	"sync"
)

// Registry is a dense slot array of T addressed by generational handles.
// It is safe for concurrent use.
type Registry[T any] struct {
	slots     []slot[T]
	free      []uint32
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	live      int
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		slots: make([]slot[T], 0, 64),
		free:  make([]uint32, 0, 16),
	}
}

// Insert stores value and returns its handle. O(1) amortized.
func (r *Registry[T]) Insert(value T) Handle {
	r.mu.Lock()
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot[T]{})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	if s.generation == 0 {
		s.generation = 1
	}
	s.value = value
	s.occupied = true
	r.live++
	h := NewHandle(idx, s.generation)
	r.mu.Unlock()

	r.notify(Event{Type: EventCreated, Handle: h, Value: value})
	return h
}

// Get resolves a handle. A stale or foreign handle reports false.
func (r *Registry[T]) Get(h Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Contains reports whether h currently resolves.
func (r *Registry[T]) Contains(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lookup(h)
	return ok
}

// Update replaces the value behind a live handle.
func (r *Registry[T]) Update(h Handle, fn func(T) T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.lookup(h)
	if !ok {
		return false
	}
	s.value = fn(s.value)
	return true
}

// Remove invalidates h and returns the value it referenced.
func (r *Registry[T]) Remove(h Handle) (T, bool) {
	r.mu.Lock()
	s, ok := r.lookup(h)
	if !ok {
		r.mu.Unlock()
		var zero T
		return zero, false
	}
	value := r.release(h.Index(), s)
	r.mu.Unlock()

	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}
	r.notify(Event{Type: EventDropped, Handle: h, Value: value})
	return value, true
}

// Len returns the number of live values.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Each calls fn for every live value in slot index order until fn returns
// false. The read lock is held for the whole iteration; fn must not call
// mutating methods on r.
func (r *Registry[T]) Each(fn func(Handle, T) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.slots {
		s := &r.slots[i]
		if !s.occupied {
			continue
		}
		if !fn(NewHandle(uint32(i), s.generation), s.value) {
			return
		}
	}
}

// Clear drops all values. Every outstanding handle becomes stale.
func (r *Registry[T]) Clear() {
	var handles []Handle
	r.Each(func(h Handle, _ T) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		r.Remove(h)
	}
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry[T]) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// lookup must be called with r.mu held.
func (r *Registry[T]) lookup(h Handle) (*slot[T], bool) {
	idx := h.Index()
	if h == Invalid || int(idx) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[idx]
	if !s.occupied || s.generation != h.Generation() {
		return nil, false
	}
	return s, true
}

// release must be called with r.mu held for writing.
func (r *Registry[T]) release(idx uint32, s *slot[T]) T {
	value := s.value
	var zero T
	s.value = zero
	s.occupied = false
	r.live--

	// A slot whose generation would wrap is retired instead of reused so
	// that no handle bit pattern ever resolves twice.
	if s.generation == math.MaxUint32 {
		return value
	}
	s.generation++
	r.free = append(r.free, idx)
	return value
}

func (r *Registry[T]) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnResourceEvent(e)
	}
}
