package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ID identifies a subscription.
type ID string

type subscriber[T any] struct {
	id     ID
	fn     func(T)
	since  uint64      // first update sequence this subscriber receives
	active atomic.Bool // cleared by Remove so in-flight deliveries skip it
}

type update[T any] struct {
	seq   uint64
	value T
}

// Registry holds an ordered set of callbacks and delivers values to them.
//
// Post queues a value and Deliver drains the queue. A goroutine that finds
// another goroutine already delivering leaves its values to that goroutine,
// which keeps delivery in posting order and makes re-entrant calls from
// inside a callback safe. Publish is Post followed by Deliver.
type Registry[T any] struct {
	mu         sync.Mutex
	subs       []*subscriber[T] // replaced, never modified in place
	queue      []update[T]
	seq        uint64
	delivering bool
}

// New creates an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Add registers fn and returns its ID. fn receives values posted after Add
// returns, in posting order, until it is removed.
func (r *Registry[T]) Add(fn func(T)) ID {
	id := ID(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &subscriber[T]{id: id, fn: fn, since: r.seq + 1}
	sub.active.Store(true)

	subs := make([]*subscriber[T], len(r.subs), len(r.subs)+1)
	copy(subs, r.subs)
	r.subs = append(subs, sub)
	return id
}

// Remove unregisters id. It reports the number of subscribers left and
// whether id was registered; removing an unknown id is a no-op.
func (r *Registry[T]) Remove(id ID) (remaining int, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, s := range r.subs {
		if s.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return len(r.subs), false
	}

	r.subs[idx].active.Store(false)
	subs := make([]*subscriber[T], 0, len(r.subs)-1)
	subs = append(subs, r.subs[:idx]...)
	subs = append(subs, r.subs[idx+1:]...)
	r.subs = subs
	return len(subs), true
}

// Len returns the number of subscribers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Clear removes every subscriber and drops undelivered values.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		s.active.Store(false)
	}
	r.subs = nil
	r.queue = nil
}

// Post queues v for delivery without invoking any callback. It is safe to
// call while holding locks the callbacks may need.
func (r *Registry[T]) Post(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.queue = append(r.queue, update[T]{seq: r.seq, value: v})
}

// Deliver drains the queue. When another goroutine is already delivering,
// Deliver returns at once and the queued values are delivered by that
// goroutine.
func (r *Registry[T]) Deliver() {
	r.mu.Lock()
	if r.delivering {
		r.mu.Unlock()
		return
	}
	r.delivering = true
	defer func() {
		if p := recover(); p != nil {
			r.mu.Lock()
			r.delivering = false
			r.mu.Unlock()
			panic(p)
		}
	}()

	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue[0] = update[T]{}
		r.queue = r.queue[1:]
		subs := r.subs
		r.mu.Unlock()

		for _, s := range subs {
			if s.since <= next.seq && s.active.Load() {
				s.fn(next.value)
			}
		}

		r.mu.Lock()
	}
	r.queue = nil
	r.delivering = false
	r.mu.Unlock()
}

// Publish posts v and delivers it.
func (r *Registry[T]) Publish(v T) {
	r.Post(v)
	r.Deliver()
}
