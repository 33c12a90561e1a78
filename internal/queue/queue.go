// Package queue provides a growable FIFO for handing items from a
// non-blocking producer to a batching consumer.
package queue

import "sync"

// Queue is a thread-safe ring buffer that doubles its capacity when it
// reaches 70% full, up to a limit. At the limit, Push drops the oldest item.
type Queue[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int // read position
	count  int
	limit  int // 0 means unbounded
	closed bool
	ready  chan struct{}

	// Stats
	pushed  int64
	popped  int64
	dropped int64
	resizes int
}

// New creates a queue with the given initial capacity and limit. A limit
// of 0 or less means the queue grows without bound.
func New[T any](initialCapacity, limit int) *Queue[T] {
	if limit < 0 {
		limit = 0
	}
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit > 0 && initialCapacity > limit {
		initialCapacity = limit
	}
	return &Queue[T]{
		buf:   make([]T, initialCapacity),
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

// Push appends item and never blocks. It returns false once the queue is
// closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (len(q.buf) * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold && q.canGrow() {
		q.grow()
	}

	if q.count == len(q.buf) {
		// At the limit: overwrite the oldest.
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
	}

	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	q.pushed++

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready is signalled after a Push. One signal may cover several pushes.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns up to max items in FIFO order; max <= 0 means
// all of them. It returns nil when the queue is empty.
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}

	n := q.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	var zero T
	for i := 0; i < n; i++ {
		result[i] = q.buf[q.head]
		q.buf[q.head] = zero // Clear reference for GC
		q.head = (q.head + 1) % len(q.buf)
	}
	q.count -= n
	q.popped += int64(n)

	return result
}

// Close stops further pushes. Items already queued can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the current capacity.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Stats contains queue statistics.
type Stats struct {
	Count    int
	Capacity int
	Pushed   int64
	Popped   int64
	Dropped  int64
	Resizes  int
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Count:    q.count,
		Capacity: len(q.buf),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Dropped:  q.dropped,
		Resizes:  q.resizes,
	}
}

func (q *Queue[T]) canGrow() bool {
	return q.limit == 0 || len(q.buf) < q.limit
}

// grow doubles the capacity, capped at the limit. Must be called with lock
// held.
func (q *Queue[T]) grow() {
	newCap := len(q.buf) * 2
	if q.limit > 0 && newCap > q.limit {
		newCap = q.limit
	}
	newBuf := make([]T, newCap)

	// Unwrap [head...end) + [0...tail) into the front of the new buffer.
	n := copy(newBuf, q.buf[q.head:min(q.head+q.count, len(q.buf))])
	if n < q.count {
		copy(newBuf[n:], q.buf[:q.count-n])
	}

	q.buf = newBuf
	q.head = 0
	q.resizes++
}
