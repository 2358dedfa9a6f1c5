package pool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Operation is the per-item work of a batch
type Operation[T, R any] func(ctx context.Context, item T) (R, error)

// Failure is an item whose operation failed, with the reason
type Failure[T any] struct {
	Item T
	Err  error
}

// Batch is the outcome of RunBatch. Values holds successes only, in completion order.
type Batch[T, R any] struct {
	Values   []R
	Failures []Failure[T]
	Elapsed  time.Duration
}

// Succeeded returns the number of successful items
func (b *Batch[T, R]) Succeeded() int {
	return len(b.Values)
}

// Failed returns the number of failed items
func (b *Batch[T, R]) Failed() int {
	return len(b.Failures)
}

// RunBatch runs op for every item on p and blocks until all of them finished.
// Failures, panics and items that could not be submitted are recorded, never returned.
// op must not submit to p itself.
func RunBatch[T, R any](ctx context.Context, p *Pool, items []T, op Operation[T, R]) *Batch[T, R] {
	start := time.Now()
	batch := &Batch[T, R]{
		Values: make([]R, 0, len(items)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fail := func(item T, err error) {
		mu.Lock()
		batch.Failures = append(batch.Failures, Failure[T]{Item: item, Err: err})
		mu.Unlock()
	}

	for _, item := range items {
		item := item // per-iteration copy for go < 1.22 loop semantics
		wg.Add(1)
		err := p.Submit(ctx, func() {
			defer wg.Done()
			v, err := safeCall(ctx, op, item)
			if err != nil {
				fail(item, err)
				return
			}
			mu.Lock()
			batch.Values = append(batch.Values, v)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			fail(item, fmt.Errorf("not submitted: %w", err))
		}
	}

	wg.Wait()
	batch.Elapsed = time.Since(start)

	if len(batch.Failures) > 0 {
		p.logger.Warnf("Batch finished: %d succeeded, %d failed (%s)",
			len(batch.Values), len(batch.Failures), batch.Elapsed.Round(time.Millisecond))
	} else {
		p.logger.Debugf("Batch finished: %d succeeded (%s)",
			len(batch.Values), batch.Elapsed.Round(time.Millisecond))
	}
	return batch
}
