// Package loader shares one map-provider load across every caller in the
// process. The outcome of a load is kept until Retry is called.
package loader

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"club_archive/core-go/internal/metrics"
)

type LoadFunc func(ctx context.Context) error

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

type Shared struct {
	load    LoadFunc
	metrics *metrics.Metrics
	group   singleflight.Group

	mu      sync.Mutex
	gen     uint64
	loading bool
	settled bool
	err     error
}

func New(load LoadFunc, m *metrics.Metrics) *Shared {
	return &Shared{load: load, metrics: m}
}

// Acquire waits for the shared load, starting it if nobody has. Concurrent
// callers wait on the same attempt. A caller whose ctx ends stops waiting
// but does not cancel the load for the others.
func (s *Shared) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.settled {
		err := s.err
		s.mu.Unlock()
		return err
	}
	gen := s.gen
	s.mu.Unlock()

	ch := s.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, s.attempt(context.WithoutCancel(ctx), gen)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Retry forgets the previous outcome, including a load still in flight,
// and starts over.
func (s *Shared) Retry(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	s.settled = false
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	return s.Acquire(ctx)
}

// State reports the outcome of the current attempt without blocking.
func (s *Shared) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.settled && s.err == nil:
		return StateReady, nil
	case s.settled:
		return StateFailed, s.err
	case s.loading:
		return StateLoading, nil
	default:
		return StateIdle, nil
	}
}

func (s *Shared) attempt(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if s.gen == gen && s.settled {
		// A caller that read settled=false raced a flight that has since
		// finished; hand back its outcome instead of loading again.
		err := s.err
		s.mu.Unlock()
		return err
	}
	if s.gen == gen {
		s.loading = true
	}
	s.mu.Unlock()

	err := s.load(ctx)
	s.metrics.ObserveProviderLoad(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.loading = false
		s.settled = true
		s.err = err
	}
	return err
}
