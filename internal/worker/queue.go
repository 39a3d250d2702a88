package worker

import "sync"

// Queue is a deduplicating FIFO of task identifiers. An identifier stays
// tracked from Enqueue until Done, so re-enqueueing a task that is queued
// or currently being processed is a no-op. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	items   []string
	tracked map[string]struct{}
	notify  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		tracked: make(map[string]struct{}),
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue appends id to the queue unless it is already queued or being
// processed. Returns true if the id was accepted.
func (q *Queue) Enqueue(id string) bool {
	q.mu.Lock()
	if _, exists := q.tracked[id]; exists {
		q.mu.Unlock()
		return false
	}
	q.tracked[id] = struct{}{}
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the oldest queued id. The id remains tracked until
// Done is called for it. Returns false when the queue is empty.
func (q *Queue) TryDequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

// Done releases id from dedup tracking after its processing pass has
// finished, allowing it to be enqueued again.
func (q *Queue) Done(id string) {
	q.mu.Lock()
	delete(q.tracked, id)
	q.mu.Unlock()
}

// Len returns the number of ids waiting in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify returns a channel that receives a signal when an id is
// enqueued. The signal is coalesced: a receiver must drain the queue
// rather than count signals.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
