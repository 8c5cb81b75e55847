package mediasession

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
)

// ResolvedMedia is the narrow interface the core consumes from URL
// resolution: the canonical stream URL, a human title, the declared
// content type and length, and an HTTP client pre-configured for
// fetching the stream.
type ResolvedMedia struct {
	StreamURL     string
	Title         string
	ContentType   string
	ContentLength int64
	Client        *http.Client
}

// Resolver turns a source URL into a ResolvedMedia. Real resolution
// backends (querying a site-specific extraction service, for instance)
// implement this interface; the core never depends on a concrete
// resolver.
type Resolver interface {
	Resolve(ctx context.Context, sourceURL string) (*ResolvedMedia, error)
}

// httpResolver is the default Resolver: it treats sourceURL as already
// being the stream URL and learns the required metadata via a single
// HTTP probe, without a third-party resolution backend. A real resolver
// is a drop-in replacement behind the same interface.
type httpResolver struct {
	transport *http.Transport
	group     singleflight.Group
}

func newHTTPResolver(transport *http.Transport) *httpResolver {
	return &httpResolver{transport: transport}
}

func (h *httpResolver) Resolve(ctx context.Context, sourceURL string) (*ResolvedMedia, error) {
	if !hasAcceptedScheme(sourceURL) {
		return nil, fmt.Errorf("%w: %s", ErrBadScheme, sourceURL)
	}

	v, err, _ := h.group.Do(sourceURL, func() (any, error) {
		return h.probe(ctx, sourceURL)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResolvedMedia), nil
}

func (h *httpResolver) probe(ctx context.Context, sourceURL string) (*ResolvedMedia, error) {
	client := &http.Client{Transport: h.transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResolveFailed, err)
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResolveFailed, err)
	}
	defer resp.Body.Close()

	var length int64
	switch resp.StatusCode {
	case http.StatusPartialContent:
		length = parseContentRangeTotal(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		length = resp.ContentLength
	default:
		return nil, fmt.Errorf("%w: upstream status %d", ErrResolveFailed, resp.StatusCode)
	}

	if length <= 0 {
		return nil, fmt.Errorf("%w: content length", ErrMissingField)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &ResolvedMedia{
		StreamURL:     sourceURL,
		Title:         titleFromURL(sourceURL),
		ContentType:   contentType,
		ContentLength: length,
		Client:        client,
	}, nil
}

func hasAcceptedScheme(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// parseContentRangeTotal extracts the total length from a header of the
// form "bytes 0-0/12345". Returns 0 if the header is malformed or the
// total is unknown ("*").
func parseContentRangeTotal(header string) int64 {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0
	}
	total := header[idx+1:]
	if total == "*" {
		return 0
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func titleFromURL(u string) string {
	u = strings.TrimSuffix(u, "/")
	if idx := strings.LastIndex(u, "/"); idx >= 0 && idx < len(u)-1 {
		return u[idx+1:]
	}
	return u
}
