// Package worker runs CPU-bound work (audio decoding, local inference) on a
// bounded number of goroutines so gateway handlers never compete for CPU
// without limit.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"discord-transcriber/internal/observability/metrics"
)

// Pool bounds concurrent jobs. Jobs beyond the limit wait for a free slot.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	metrics *metrics.Metrics
}

// New creates a pool with size slots. size below 1 is treated as 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		metrics: metrics.DefaultMetrics,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// PanicError is returned when a job panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// Run executes fn on a pool goroutine and waits for its result. The caller
// returns early only when ctx is cancelled; the job keeps its slot until it
// finishes.
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	p.metrics.RecordWorker(1)

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			p.sem.Release(1)
			p.metrics.RecordWorker(-1)
		}()
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("component", "worker").
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("Recovered worker panic")
				done <- result{err: &PanicError{Value: r}}
			}
		}()

		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
