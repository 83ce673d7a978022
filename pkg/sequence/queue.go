package sequence

// Queue is a FIFO buffer whose whole content is taken at once by Drain.
// Values pushed after a Drain land in the next batch, never in the one
// already handed out. Queue is not safe for concurrent use.
type Queue[T any] struct {
	items []T
}

func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{items: make([]T, 0, capacity)}
}

func (q *Queue[T]) Push(value T) {
	q.items = append(q.items, value)
}

// Drain returns the queued values in push order and leaves the queue empty.
func (q *Queue[T]) Drain() []T {
	batch := q.items
	q.items = make([]T, 0, cap(batch))
	return batch
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Clear discards every queued value.
func (q *Queue[T]) Clear() {
	clear(q.items)
	q.items = q.items[:0]
}
