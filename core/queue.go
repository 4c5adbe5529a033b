package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// FIFOQueue is an unbounded first-in first-out queue backed by a slice.
//
// It does no locking of its own: the priority lane is guarded by the
// executor's mutex and the engine queue by the engine's mutex, so the owner
// decides which lock covers it.
type FIFOQueue[T any] struct {
	items []T
}

// NewFIFOQueue returns an empty queue.
func NewFIFOQueue[T any]() *FIFOQueue[T] {
	return &FIFOQueue[T]{
		items: make([]T, 0, defaultQueueCap),
	}
}

// TaskQueue is the queue type used by the priority lane.
type TaskQueue = FIFOQueue[Task]

func (q *FIFOQueue[T]) Push(item T) {
	q.items = append(q.items, item)
}

func (q *FIFOQueue[T]) Pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = zero
	q.items = q.items[1:]
	q.maybeCompact()

	return item, true
}

func (q *FIFOQueue[T]) maybeCompact() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]T, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]T, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *FIFOQueue[T]) Len() int {
	return len(q.items)
}

func (q *FIFOQueue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Clear drops all items without running them and releases their references.
// It returns how many items were dropped.
func (q *FIFOQueue[T]) Clear() int {
	n := len(q.items)
	q.items = make([]T, 0, defaultQueueCap)
	return n
}
