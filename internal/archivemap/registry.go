package archivemap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"club_archive/core-go/internal/loader"
	"club_archive/core-go/internal/mapprovider"
	"club_archive/core-go/internal/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

type RegistryOptions struct {
	MaxSessions   int
	TTL           time.Duration
	SweepInterval time.Duration
	// StartTimeout bounds a session's wait for the provider load.
	StartTimeout  time.Duration
}

// Registry owns the live map views, keyed by session id. Idle sessions are
// closed by Run.
type Registry struct {
	log      zerolog.Logger
	loader   *loader.Shared
	provider mapprovider.Provider
	catalog  Catalog
	cfg      Config
	metrics  *metrics.Metrics
	opts     RegistryOptions

	mu    sync.Mutex
	views map[string]*View
}

func NewRegistry(log zerolog.Logger, ld *loader.Shared, p mapprovider.Provider, catalog Catalog, cfg Config, m *metrics.Metrics, opts RegistryOptions) *Registry {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 30 * time.Second
	}
	return &Registry{
		log:      log,
		loader:   ld,
		provider: p,
		catalog:  catalog,
		cfg:      cfg,
		metrics:  m,
		opts:     opts,
		views:    make(map[string]*View),
	}
}

func (r *Registry) Catalog() Catalog { return r.catalog }

// Loader is the provider load shared by every session.
func (r *Registry) Loader() *loader.Shared { return r.loader }

// Create registers a new view and starts it in the background; the view
// reports StatusLoading until the start settles. Use View.Wait to block on
// it. A view whose start failed is kept so the caller can retry it. The
// start outlives ctx's cancellation but keeps its values.
func (r *Registry) Create(ctx context.Context) (*View, error) {
	id := uuid.NewString()
	v := NewView(id, r.log, r.loader, r.provider, r.catalog, r.cfg, r.metrics)

	r.mu.Lock()
	if len(r.views) >= r.opts.MaxSessions {
		r.mu.Unlock()
		return nil, ErrTooManySessions
	}
	r.views[id] = v
	n := len(r.views)
	r.mu.Unlock()
	r.metrics.SetActiveSessions(n)

	go func() {
		startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.StartTimeout)
		defer cancel()
		// Start failures are part of the view state.
		_ = v.Start(startCtx)
	}()
	return v, nil
}

func (r *Registry) Get(id string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	if ok {
		delete(r.views, id)
	}
	n := len(r.views)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	r.metrics.SetActiveSessions(n)
	v.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep closes sessions idle since before now-TTL and returns how many.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.opts.TTL)

	r.mu.Lock()
	var expired []*View
	for id, v := range r.views {
		if v.idleSince().Before(cutoff) {
			expired = append(expired, v)
			delete(r.views, id)
		}
	}
	n := len(r.views)
	r.mu.Unlock()

	for _, v := range expired {
		v.Close()
	}
	if len(expired) > 0 {
		r.metrics.SetActiveSessions(n)
		r.log.Info().Int("expired", len(expired)).Int("active", n).Msg("sessions expired")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done, then closes the rest.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	r.metrics.SetActiveSessions(0)
}
