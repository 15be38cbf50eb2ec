package ring

// Buffer is a fixed-capacity ring buffer. When full, pushing a new element
// evicts the oldest one.
type Buffer[T any] struct {
	items []T
	head  int
	size  int
}

// New allocates a buffer with the given capacity.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends an item, evicting the oldest when the buffer is full.
func (b *Buffer[T]) Push(item T) {
	idx := (b.head + b.size) % len(b.items)
	b.items[idx] = item
	if b.size < len(b.items) {
		b.size++
		return
	}
	b.head = (b.head + 1) % len(b.items)
}

// Len returns the number of stored items.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Latest returns the most recently pushed item.
func (b *Buffer[T]) Latest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	idx := (b.head + b.size - 1) % len(b.items)
	return b.items[idx], true
}

// Oldest returns the least recently pushed item still stored.
func (b *Buffer[T]) Oldest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.items[b.head], true
}

// Each visits items from oldest to newest.
func (b *Buffer[T]) Each(fn func(item T)) {
	for i := 0; i < b.size; i++ {
		fn(b.items[(b.head+i)%len(b.items)])
	}
}
