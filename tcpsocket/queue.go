package tcpsocket

import (
	"context"
	"sync"
	"time"
)

// sendQueue is a bounded FIFO with one consumer. Once completed it refuses new
// entries; whatever was accepted is handed back by drain.
type sendQueue struct {
	ch   chan *message
	done chan struct{}

	mu       sync.RWMutex
	complete bool
	inflight sync.WaitGroup // enqueuers that passed the complete check
}

func newSendQueue(capacity int) *sendQueue {
	return &sendQueue{
		ch:   make(chan *message, capacity),
		done: make(chan struct{}),
	}
}

// enqueue blocks while the queue is full.
func (q *sendQueue) enqueue(ctx context.Context, m *message) error {
	q.mu.RLock()
	if q.complete {
		q.mu.RUnlock()
		return ErrQueueComplete
	}
	q.inflight.Add(1)
	q.mu.RUnlock()
	defer q.inflight.Done()

	select {
	case q.ch <- m:
		return nil
	default:
	}

	select {
	case q.ch <- m:
		return nil
	case <-q.done:
		return ErrQueueComplete
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dequeue waits at most timeout for the next entry. ok is false on timeout or
// once the queue is complete.
func (q *sendQueue) dequeue(timeout time.Duration) (m *message, ok bool) {
	select {
	case m = <-q.ch:
		return m, true
	case <-q.done:
		return nil, false
	default:
	}

	t := timerPool.acquire(timeout)
	defer timerPool.release(t)

	select {
	case m = <-q.ch:
		return m, true
	case <-q.done:
		return nil, false
	case <-t.C:
		return nil, false
	}
}

func (q *sendQueue) markComplete() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.complete {
		return
	}
	q.complete = true
	close(q.done)
}

func (q *sendQueue) isComplete() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.complete
}

// drain completes the queue and returns every entry left in it, in order.
func (q *sendQueue) drain() []*message {
	q.markComplete()
	q.inflight.Wait()

	var left []*message
	for {
		select {
		case m := <-q.ch:
			left = append(left, m)
		default:
			return left
		}
	}
}

func (q *sendQueue) len() int { return len(q.ch) }
