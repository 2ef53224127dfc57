package notifications

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goliatone/go-hookgate/core"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull   = errors.New("notifications: task queue is full")
	ErrQueueClosed = errors.New("notifications: task queue is closed")
)

type TaskQueueConfig struct {
	Workers      int
	QueueSize    int
	DrainTimeout time.Duration
}

type queuedRequest struct {
	ctx context.Context
	req Request
}

// TaskQueue is the in-process Scheduler: a buffered channel drained by a fixed
// pool of workers. Items are independent; a failing or panicking item is
// logged and does not affect the others.
type TaskQueue struct {
	processor Processor
	observer  *core.Observer
	items     chan queuedRequest
	group     *errgroup.Group
	drain     time.Duration

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	done   chan struct{}
}

func NewTaskQueue(processor Processor, cfg TaskQueueConfig, observer *core.Observer) *TaskQueue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	drain := cfg.DrainTimeout
	if drain <= 0 {
		drain = 10 * time.Second
	}
	q := &TaskQueue{
		processor: processor,
		observer:  observer,
		items:     make(chan queuedRequest, size),
		group:     &errgroup.Group{},
		drain:     drain,
		done:      make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		q.group.Go(q.work)
	}
	go func() {
		_ = q.group.Wait()
		close(q.done)
	}()
	return q
}

// Submit never blocks: a full queue rejects the item.
func (q *TaskQueue) Submit(ctx context.Context, req Request) error {
	if q == nil {
		return ErrQueueClosed
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.items <- queuedRequest{ctx: ctx, req: req}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports items waiting for a worker.
func (q *TaskQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Close stops intake and waits for queued items until ctx or the drain
// timeout expires.
func (q *TaskQueue) Close(ctx context.Context) error {
	if q == nil {
		return nil
	}
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
	})
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(q.drain)
	defer timer.Stop()
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("notifications: drain timed out with %d items pending", len(q.items))
	}
}

func (q *TaskQueue) work() error {
	for item := range q.items {
		q.run(item)
	}
	return nil
}

func (q *TaskQueue) run(item queuedRequest) {
	defer func() {
		if recovered := recover(); recovered != nil {
			q.observer.Error(item.ctx, "notification task panicked", map[string]any{
				"project_id":        item.req.ProjectID,
				"recipient_user_id": item.req.RecipientUserID,
				"type":              string(item.req.Type()),
				"panic":             fmt.Sprint(recovered),
				"stack":             string(debug.Stack()),
			})
		}
	}()
	if q.processor == nil {
		return
	}
	if err := q.processor.Process(item.ctx, item.req); err != nil {
		q.observer.Error(item.ctx, "notification task failed", map[string]any{
			"project_id":        item.req.ProjectID,
			"recipient_user_id": item.req.RecipientUserID,
			"type":              string(item.req.Type()),
			"error":             err.Error(),
		})
	}
}
