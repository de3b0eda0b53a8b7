package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitdock/internal/logging"
)

type task struct {
	id   string
	name string
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// taskQueue serializes index-mutating work: at most one task runs at a
// time, strictly in submission order. Readers never enter the queue.
type taskQueue struct {
	log *logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []*task
	stopped  bool
	finished chan struct{}
}

func newTaskQueue(log *logging.Logger) *taskQueue {
	q := &taskQueue{log: log, finished: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *taskQueue) run() {
	defer close(q.finished)
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped {
			pending := q.pending
			q.pending = nil
			q.mu.Unlock()
			for _, t := range pending {
				t.done <- ErrDestroyed
			}
			return
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := t.ctx.Err(); err != nil {
			t.done <- err
			continue
		}

		tctx := logging.WithTaskID(t.ctx, t.id)
		start := time.Now()
		err := t.fn(tctx)
		q.log.ForTask(tctx).Debug("task finished",
			zap.String("task", t.name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		t.done <- err
	}
}

// do submits fn and blocks until it has run. The error is the task's
// own, or ErrDestroyed when the queue stopped before the task ran.
func (q *taskQueue) do(ctx context.Context, name string, fn func(context.Context) error) error {
	t := &task{
		id:   uuid.NewString(),
		name: name,
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrDestroyed
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()
	q.cond.Signal()

	return <-t.done
}

// stop drains the queue, failing pending tasks with ErrDestroyed, and
// waits for a task already running to finish.
func (q *taskQueue) stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.finished
		return
	}
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.finished
}
