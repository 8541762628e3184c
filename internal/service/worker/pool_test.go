package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_ReturnsValue(t *testing.T) {
	p := New(2)

	got, err := Run(context.Background(), p, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "done" {
		t.Errorf("expected 'done', got %q", got)
	}
}

func TestRun_PropagatesError(t *testing.T) {
	p := New(1)
	want := errors.New("boom")

	_, err := Run(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	p := New(1)

	_, err := Run(context.Background(), p, func(ctx context.Context) (int, error) {
		panic("decoder exploded")
	})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Value != "decoder exploded" {
		t.Errorf("unexpected panic value %v", pe.Value)
	}

	// slot must be released after a panic
	v, err := Run(context.Background(), p, func(ctx context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("expected pool usable after panic, got %d %v", v, err)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	const size = 2
	p := New(size)

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Run(context.Background(), p, func(ctx context.Context) (struct{}, error) {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	if peak > size {
		t.Errorf("expected at most %d concurrent jobs, saw %d", size, peak)
	}
	if peak == 0 {
		t.Error("expected jobs to run")
	}
}

func TestRun_ContextCancelledWhileWaiting(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = Run(context.Background(), p, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 0, nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, p, func(ctx context.Context) (int, error) { return 1, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	close(release)
}

func TestNew_MinimumSize(t *testing.T) {
	if got := New(0).Size(); got != 1 {
		t.Errorf("expected size 1, got %d", got)
	}
}
