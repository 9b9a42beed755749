package trace

// Ring is a fixed-capacity ring that keeps the most recent values added.
// It backs the frame-time history: the collector pushes one sample per
// cycle and snapshots the contents into each new Frame.
//
// Not safe for concurrent use. The collector goroutine is the only
// writer and reads happen on copies taken by Items.
type Ring[T any] struct {
	items    []T
	capacity int
	head     int // next write position
	size     int
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ring capacity must be greater than zero")
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push adds a value, overwriting the oldest one when full.
func (r *Ring[T]) Push(v T) {
	r.items[r.head] = v
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Items returns the contents in chronological order, oldest first.
// The returned slice is a copy and safe to hand to an immutable Frame.
func (r *Ring[T]) Items() []T {
	if r.size == 0 {
		return nil
	}

	out := make([]T, r.size)
	if r.size < r.capacity {
		copy(out, r.items[:r.size])
	} else {
		n := copy(out, r.items[r.head:])
		copy(out[n:], r.items[:r.head])
	}
	return out
}

// Len returns the number of values currently held.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return r.capacity
}
