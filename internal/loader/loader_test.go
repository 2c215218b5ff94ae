package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquire_SharesOneLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Acquire(context.Background())
		}()
	}

	waitFor(t, func() bool {
		st, _ := s.State()
		return st == StateLoading
	})
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 load, got %d", got)
	}

	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("expected memoised success, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected success to be memoised, got %d loads", got)
	}
	if st, _ := s.State(); st != StateReady {
		t.Fatalf("expected ready, got %s", st)
	}
}

func TestAcquire_FailureStaysUntilRetry(t *testing.T) {
	boom := errors.New("script failed")
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return boom
		}
		return nil
	}, nil)

	if err := s.Acquire(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected first load to fail, got %v", err)
	}
	if err := s.Acquire(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected failure to be shared until retry, got %v", err)
	}
	if st, err := s.State(); st != StateFailed || !errors.Is(err, boom) {
		t.Fatalf("expected failed state, got %s %v", st, err)
	}

	if err := s.Retry(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 loads, got %d", got)
	}
}

func TestAcquire_CallerCancelDoesNotCancelLoad(t *testing.T) {
	release := make(chan struct{})
	var sawCancel atomic.Bool
	s := New(func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			sawCancel.Store(true)
			return ctx.Err()
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Acquire(ctx) }()

	waitFor(t, func() bool {
		st, _ := s.State()
		return st == StateLoading
	})
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected caller to see cancellation, got %v", err)
	}

	close(release)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("expected shared load to complete, got %v", err)
	}
	if sawCancel.Load() {
		t.Fatalf("expected load to ignore the first caller's cancellation")
	}
}

func TestRetry_SupersedesInFlight(t *testing.T) {
	first := make(chan struct{})
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			<-first
			return errors.New("stale failure")
		}
		return nil
	}, nil)

	go func() { _ = s.Acquire(context.Background()) }()
	waitFor(t, func() bool { return calls.Load() == 1 })

	if err := s.Retry(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	close(first)

	waitFor(t, func() bool { return calls.Load() == 2 })
	time.Sleep(10 * time.Millisecond)
	if st, err := s.State(); st != StateReady {
		t.Fatalf("expected stale attempt not to override retry, got %s %v", st, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
