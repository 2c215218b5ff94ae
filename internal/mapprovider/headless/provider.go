// Package headless is an in-process map provider. It keeps the viewport,
// markers and clusters server-side so the archive map can be driven over
// an API, and probes the browser script endpoint as its "load" step.
package headless

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"club_archive/core-go/internal/mapprovider"
)

type Options struct {
	APIKey string
	// ScriptURL is probed on Load. Empty skips the probe.
	ScriptURL     string
	Libraries     []mapprovider.Library
	Client        *http.Client
	ClusterRadius float64
}

type Provider struct {
	apiKey        string
	scriptURL     string
	libraries     []mapprovider.Library
	client        *http.Client
	clusterRadius float64

	mu     sync.Mutex
	loaded bool
}

var _ mapprovider.Provider = (*Provider)(nil)

func New(opts Options) *Provider {
	libs := opts.Libraries
	if len(libs) == 0 {
		libs = []mapprovider.Library{mapprovider.LibraryMaps, mapprovider.LibraryMarker}
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{
		apiKey:        strings.TrimSpace(opts.APIKey),
		scriptURL:     strings.TrimSpace(opts.ScriptURL),
		libraries:     libs,
		client:        client,
		clusterRadius: opts.ClusterRadius,
	}
}

// Load checks the credential and, when a script URL is configured, that the
// provider script answers. It does not memoise; see package loader.
func (p *Provider) Load(ctx context.Context) error {
	if p.apiKey == "" {
		return mapprovider.ErrMissingCredential
	}

	if p.scriptURL != "" {
		if err := p.probe(ctx); err != nil {
			return fmt.Errorf("%w: %v", mapprovider.ErrLoadFailed, err)
		}
	}

	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()
	return nil
}

func (p *Provider) probe(ctx context.Context) error {
	u, err := url.Parse(p.scriptURL)
	if err != nil {
		return fmt.Errorf("parse script url: %w", err)
	}
	libs := make([]string, 0, len(p.libraries))
	for _, l := range p.libraries {
		libs = append(libs, string(l))
	}
	q := u.Query()
	q.Set("key", p.apiKey)
	q.Set("libraries", strings.Join(libs, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("script endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) isLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *Provider) ImportLibrary(ctx context.Context, lib mapprovider.Library) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.isLoaded() {
		return mapprovider.ErrNotLoaded
	}
	for _, l := range p.libraries {
		if l == lib {
			return nil
		}
	}
	return fmt.Errorf("%w: library %q was not requested", mapprovider.ErrLoadFailed, lib)
}

func (p *Provider) NewMap(opts mapprovider.MapOptions) (mapprovider.Map, error) {
	if !p.isLoaded() {
		return nil, mapprovider.ErrNotLoaded
	}
	return newMap(opts), nil
}

func (p *Provider) NewMarker(opts mapprovider.MarkerOptions) mapprovider.Marker {
	return newMarker(opts)
}

func (p *Provider) NewClusterer(opts mapprovider.ClustererOptions) mapprovider.Clusterer {
	return newClusterer(opts, p.clusterRadius)
}
