package controller

import (
	"sync"
	"time"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
)

// item is a queued key and the earliest time it may be handed out.
type item struct {
	key   string
	ready time.Time
}

// WorkQueue hands out run names to a worker. A name is queued at most once,
// and a name added while it is being processed is handed out again after Done.
type WorkQueue struct {
	mu         sync.Mutex
	items      []item
	dirty      map[string]bool
	processing map[string]bool
	failures   map[string]int
	notify     chan struct{}
	closed     bool
	now        func() time.Time
}

// NewWorkQueue creates an empty queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{
		dirty:      make(map[string]bool),
		processing: make(map[string]bool),
		failures:   make(map[string]int),
		notify:     make(chan struct{}, 1),
		now:        time.Now,
	}
}

// Add queues key for immediate processing.
func (q *WorkQueue) Add(key string) {
	q.AddAfter(key, 0)
}

// AddAfter queues key to become ready after d. An earlier pending entry for
// the same key wins.
func (q *WorkQueue) AddAfter(key string, d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	ready := q.now().Add(d)
	if q.processing[key] {
		q.dirty[key] = true
		if d > 0 {
			q.push(key, ready)
		}
		return
	}
	q.push(key, ready)
}

// push adds or moves an entry forward. Callers hold mu.
func (q *WorkQueue) push(key string, ready time.Time) {
	for i := range q.items {
		if q.items[i].key == key {
			if ready.Before(q.items[i].ready) {
				q.items[i].ready = ready
				q.wake()
			}
			return
		}
	}
	q.items = append(q.items, item{key: key, ready: ready})
	q.wake()
}

// wake signals a blocked Get. Callers hold mu.
func (q *WorkQueue) wake() {
	if q.closed {
		return
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Get blocks until a key is ready and marks it as processing. It returns
// false once the queue is closed.
func (q *WorkQueue) Get() (string, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return "", false
		}

		now := q.now()
		var wait time.Duration
		for i, it := range q.items {
			if q.processing[it.key] {
				continue
			}
			if !it.ready.After(now) {
				q.items = append(q.items[:i], q.items[i+1:]...)
				q.processing[it.key] = true
				delete(q.dirty, it.key)
				q.mu.Unlock()
				return it.key, true
			}
			if d := it.ready.Sub(now); wait == 0 || d < wait {
				wait = d
			}
		}
		q.mu.Unlock()

		if wait == 0 {
			<-q.notify
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-q.notify:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Done finishes processing key and forgets its failures. If key was added
// while processing, it is queued again.
func (q *WorkQueue) Done(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, key)
	delete(q.failures, key)
	if q.dirty[key] && !q.closed {
		delete(q.dirty, key)
		q.push(key, q.now())
	}
	q.wake()
}

// Requeue finishes processing key and queues it again after an exponential
// backoff (1s, 2s, 4s, ... capped at 60s).
func (q *WorkQueue) Requeue(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.processing, key)
	delete(q.dirty, key)
	if q.closed {
		return
	}
	q.failures[key]++
	q.push(key, q.now().Add(backoffFor(q.failures[key])))
}

func backoffFor(failures int) time.Duration {
	d := initialBackoff
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Len returns the number of queued keys, ready or not.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close unblocks Get and drops every queued key.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.notify)
}
