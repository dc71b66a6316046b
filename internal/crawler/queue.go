package crawler

import (
	"sync/atomic"
	"time"
)

// workItem is one enqueued fetch: the URL plus the task id under which
// its telemetry is registered.
type workItem struct {
	url    string
	taskID string
}

// workQueue is a bounded queue with completion tracking. The producer
// needs to know not just that the channel is empty but that every popped
// item has been fully processed, so items carry an outstanding count that
// workers release via Done.
type workQueue struct {
	ch          chan workItem
	outstanding atomic.Int64
}

func newWorkQueue(size int) *workQueue {
	return &workQueue{ch: make(chan workItem, size)}
}

// TryPush enqueues without blocking. It reports false when the queue is
// full; the producer polls rather than blocking so it can keep observing
// the stop signal.
func (q *workQueue) TryPush(item workItem) bool {
	select {
	case q.ch <- item:
		q.outstanding.Add(1)
		return true
	default:
		return false
	}
}

// Pop waits up to timeout for an item. The short timeout keeps idle
// workers cycling through their stop and pause checks.
func (q *workQueue) Pop(timeout time.Duration) (workItem, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case item := <-q.ch:
		return item, true
	case <-t.C:
		return workItem{}, false
	}
}

// Done releases one popped item. Every Pop that returns true must be
// paired with exactly one Done, on every exit path including discards.
func (q *workQueue) Done() {
	q.outstanding.Add(-1)
}

// Pending returns the number of items pushed but not yet Done.
func (q *workQueue) Pending() int64 {
	return q.outstanding.Load()
}

// Drained reports whether every pushed item has been processed.
func (q *workQueue) Drained() bool {
	return q.outstanding.Load() == 0
}
