package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	// ErrPoolClosed is returned when dispatching to a released pool
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolBusy is returned when the dispatch queue is full
	ErrPoolBusy = errors.New("worker pool queue is full")
)

const shutdownTimeout = 30 * time.Second

// Pool runs follow-up tasks (screening, notification) on a bounded set of
// goroutines. Dispatch never blocks: tasks wait in a fixed-size queue and are
// refused with ErrPoolBusy once it is full. Tasks get the pool's lifecycle
// context, not the request's.
type Pool struct {
	pool   *ants.Pool
	queue  chan func()
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewPool creates a pool with size workers and room for queueSize waiting tasks
func NewPool(size, queueSize int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size * 8
	}

	p, err := ants.NewPool(size,
		ants.WithPanicHandler(func(v interface{}) {
			logger.Error("Worker panic recovered", zap.Any("panic", v), zap.Stack("stack"))
		}),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp := &Pool{
		pool:   p,
		queue:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	go wp.feed()
	return wp, nil
}

// feed hands queued tasks to the workers, waiting for a free one
func (p *Pool) feed() {
	defer close(p.done)
	for task := range p.queue {
		if err := p.pool.Submit(task); err != nil {
			p.logger.Warn("Dropped queued task", zap.Error(err))
		}
	}
}

// Dispatch queues a task
func (p *Pool) Dispatch(task func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	wrapped := func() {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Task skipped: pool shutting down")
			return
		default:
		}
		task(p.ctx)
	}

	select {
	case p.queue <- wrapped:
		return nil
	default:
		return ErrPoolBusy
	}
}

// Running returns the number of busy workers
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Queued returns the number of tasks waiting for a worker
func (p *Pool) Queued() int {
	return len(p.queue)
}

// Shutdown drains the queue, waits for running tasks and releases the
// workers. Tasks still pending after the timeout see a cancelled context.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	deadline := time.Now().Add(shutdownTimeout)
	select {
	case <-p.done:
	case <-time.After(shutdownTimeout):
		p.logger.Warn("Worker queue drain timeout")
		p.cancel()
	}

	if err := p.pool.ReleaseTimeout(max(time.Until(deadline), time.Second)); err != nil {
		p.logger.Warn("Worker pool shutdown timeout", zap.Error(err))
	}
	p.cancel()
}
