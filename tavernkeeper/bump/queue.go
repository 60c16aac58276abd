package bump

import (
	"context"
	"sync"
)

// SendQueue bounds how many bump sends run at once across the whole process,
// smoothing bursts when many timers fire together. Tasks run in FIFO order;
// nothing enqueued is ever dropped.
type SendQueue struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	pending  []*sendTask
}

type sendTask struct {
	ctx  context.Context
	run  func(context.Context) error
	done chan error
}

func NewSendQueue(limit int) *SendQueue {
	if limit <= 0 {
		limit = 1
	}
	return &SendQueue{limit: limit}
}

// Do enqueues fn and blocks until it has run to completion, returning its
// error so callers can apply their own backoff or removal policy. fn runs
// exactly once even if ctx is cancelled while the task is still queued.
func (q *SendQueue) Do(ctx context.Context, fn func(context.Context) error) error {
	t := &sendTask{ctx: ctx, run: fn, done: make(chan error, 1)}

	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	q.drain()
	return <-t.done
}

// InFlight returns the number of currently executing tasks.
func (q *SendQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Pending returns the number of queued, not-yet-started tasks.
func (q *SendQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *SendQueue) drain() {
	for {
		q.mu.Lock()
		if q.inFlight >= q.limit || len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		q.inFlight++
		q.mu.Unlock()

		go func(t *sendTask) {
			t.done <- t.run(t.ctx)

			q.mu.Lock()
			q.inFlight--
			q.mu.Unlock()
			q.drain()
		}(t)
	}
}
