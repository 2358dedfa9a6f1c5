// Package pool runs independent operations on a fixed set of workers.
//
// One Pool is created per run and shared by every batch in it. RunBatch submits one task
// per item and waits on a per-batch barrier, so the pool width bounds how many operations
// are in flight while any throttling of external calls stays with the caller's client.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultWidth is the number of workers used when none is configured
const DefaultWidth = 10

// ErrClosed is returned when submitting to a closed pool
var ErrClosed = errors.New("pool closed")

// Pool is a fixed-width set of workers fed from a task channel
type Pool struct {
	tasks  chan func()
	width  int
	logger *logrus.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts width workers. A non-positive width uses DefaultWidth.
func New(width int, logger *logrus.Logger) *Pool {
	if width <= 0 {
		width = DefaultWidth
	}
	if logger == nil {
		logger = logrus.New()
	}

	p := &Pool{
		tasks:  make(chan func()),
		width:  width,
		logger: logger,
	}

	for i := 0; i < width; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logger.Debugf("Worker pool started (width=%d)", width)
	return p
}

// Width returns the number of workers
func (p *Pool) Width() int {
	return p.width
}

// Submit hands task to the next free worker, blocking until one accepts it
func (p *Pool) Submit(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for the workers to drain
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debugf("Worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(id, task)
	}
}

// run keeps a panicking task from taking its worker down
func (p *Pool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("worker", id).Errorf("task panicked: %v", r)
		}
	}()
	task()
}

// safeCall converts a panic in op into an error
func safeCall[T, R any](ctx context.Context, op Operation[T, R], item T) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx, item)
}
