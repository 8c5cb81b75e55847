package mediasession

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// MediaResource is the wrapping object that owns the HTTP share handle
// (connection/DNS/TLS pool) across every backend it opens, and memoizes
// resolver output per source URL. It reserves the seat for a future
// multi-backend (DASH) variant but today opens only single-stream
// MediaSessions.
type MediaResource struct {
	cfg       *Config
	resolver  Resolver
	transport *http.Transport

	resolved *expirable.LRU[string, *ResolvedMedia]
	group    singleflight.Group
}

// NewMediaResource builds a MediaResource. If resolver is nil, the
// default httpResolver is used.
func NewMediaResource(cfg *Config, resolver Resolver) (*MediaResource, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mediasession: invalid config: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}

	if resolver == nil {
		resolver = newHTTPResolver(transport)
	}

	m := &MediaResource{
		cfg:       cfg,
		resolver:  resolver,
		transport: transport,
	}
	m.resolved = expirable.NewLRU[string, *ResolvedMedia](
		cfg.ResolveCacheSize, nil, cfg.ResolveCacheTTL,
	)
	return m, nil
}

// Close releases the shared transport's idle connections. Open sessions
// must be closed individually before or after this call; it does not
// reach into them.
func (m *MediaResource) Close() {
	m.transport.CloseIdleConnections()
}

// Open resolves url and starts a new MediaSession backed by this
// resource's shared transport. Construction fails if the scheme is
// rejected, resolution fails, a required field is missing, or the
// content length is non-positive.
func (m *MediaResource) Open(ctx context.Context, url string) (*MediaSession, error) {
	if !hasAcceptedScheme(url) {
		return nil, fmt.Errorf("%w: %s", ErrBadScheme, url)
	}

	resolved, err := m.resolveMemoized(ctx, url)
	if err != nil {
		return nil, err
	}
	if resolved.StreamURL == "" || resolved.ContentLength <= 0 || resolved.Client == nil {
		return nil, ErrMissingField
	}
	// Each session gets its own copy of the resolved client, bound to the
	// shared transport.
	client := *resolved.Client
	client.Transport = m.transport

	return newSession(m.cfg, resolved, &client), nil
}

func (m *MediaResource) resolveMemoized(ctx context.Context, url string) (*ResolvedMedia, error) {
	if cached, ok := m.resolved.Get(url); ok {
		return cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, m.cfg.ResolveTimeout)
	defer cancel()

	v, err, _ := m.group.Do(url, func() (any, error) {
		return m.resolver.Resolve(rctx, url)
	})
	if err != nil {
		return nil, err
	}
	resolved := v.(*ResolvedMedia)
	m.resolved.Add(url, resolved)
	return resolved, nil
}
