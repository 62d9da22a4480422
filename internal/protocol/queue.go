package protocol

import (
	"context"
	"io"
	"sync"
)

// messageQueue is an unbounded FIFO of conversation messages.
//
// The reader loop never blocks on Push, so control traffic keeps flowing
// while the consumer is slow.
type messageQueue struct {
	mu     sync.Mutex
	items  []map[string]any
	closed bool
	err    error
	notify chan struct{}
}

func newMessageQueue() *messageQueue {
	return &messageQueue{
		items:  make([]map[string]any, 0, 16),
		notify: make(chan struct{}, 1),
	}
}

// Push appends msg. Pushing to a closed queue drops msg.
func (q *messageQueue) Push(msg map[string]any) bool {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return false
	}

	q.items = append(q.items, msg)
	q.mu.Unlock()

	q.wake()

	return true
}

// Close ends the queue. Pop drains remaining items, then returns err, or
// io.EOF when err is nil. Only the first Close takes effect.
func (q *messageQueue) Close(err error) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return
	}

	q.closed = true
	q.err = err
	q.mu.Unlock()

	q.wake()
}

func (q *messageQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of queued messages.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Pop removes the oldest message, blocking until one arrives, the queue is
// closed, ctx is done or stop is closed. stopErr supplies the error returned
// when stop fires.
func (q *messageQueue) Pop(
	ctx context.Context,
	stop <-chan struct{},
	stopErr func() error,
) (map[string]any, error) {
	for {
		q.mu.Lock()

		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0 || q.closed
			q.mu.Unlock()

			if more {
				q.wake()
			}

			return msg, nil
		}

		if q.closed {
			err := q.err
			q.mu.Unlock()

			// Keep later Pops returning promptly.
			q.wake()

			if err == nil {
				return nil, io.EOF
			}

			return nil, err
		}

		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-stop:
			return nil, stopErr()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
