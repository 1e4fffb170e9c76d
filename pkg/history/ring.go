package history

// Ring is a fixed-capacity log that overwrites its oldest entry once full.
// It is a pure data structure; callers synchronize access.
type Ring[T any] struct {
	items  []T
	size   int
	cursor int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, 0, capacity), size: capacity}
}

// Push appends while below capacity; at capacity it overwrites the entry at
// the cursor (the oldest retained one) and advances the cursor modulo the
// capacity.
func (r *Ring[T]) Push(item T) {
	if len(r.items) < r.size {
		r.items = append(r.items, item)
		return
	}
	r.items[r.cursor] = item
	r.cursor = (r.cursor + 1) % r.size
}

func (r *Ring[T]) Len() int {
	return len(r.items)
}

// Snapshot returns the retained entries oldest to newest.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, len(r.items))
	out = append(out, r.items[r.cursor:]...)
	out = append(out, r.items[:r.cursor]...)
	return out
}
