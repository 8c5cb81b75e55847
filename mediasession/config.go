package mediasession

import (
	"fmt"
	"time"
)

// PacketSize is the fixed stride of the packet cache, in bytes.
const PacketSize int64 = 65536

// NearWindow bounds how many further packets the fetch worker finishes
// before abandoning a transfer to jump to a newly-requested region.
const NearWindow int = 64

// Config controls a MediaResource's resolved-media cache and the packet
// cache geometry of every MediaSession it opens. The zero value is not
// valid; use DefaultConfig and override selectively.
type Config struct {
	// PacketSize is the fixed packet stride. Defaults to PacketSize.
	PacketSize int64
	// NearWindow is the abort-and-replan lookahead, in packets. Defaults
	// to NearWindow.
	NearWindow int
	// ResolveTimeout bounds a single resolution call.
	ResolveTimeout time.Duration
	// ResolveCacheTTL bounds how long a resolved URL is memoized.
	ResolveCacheTTL time.Duration
	// ResolveCacheSize bounds the number of memoized resolutions.
	ResolveCacheSize int
	// TransferTimeout bounds a single HTTP range request. Zero means no
	// per-request timeout, so a read blocks as long as the upstream does.
	TransferTimeout time.Duration
	// MaxIdleConns and MaxIdleConnsPerHost configure the shared transport's
	// connection pooling.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// DefaultConfig returns the packet cache's compile-time-sized defaults,
// exposed as overridable fields so callers can tune geometry and timeouts
// without touching the zero value directly.
func DefaultConfig() *Config {
	return &Config{
		PacketSize:          PacketSize,
		NearWindow:          NearWindow,
		ResolveTimeout:      15 * time.Second,
		ResolveCacheTTL:     10 * time.Minute,
		ResolveCacheSize:    256,
		TransferTimeout:     0,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}
}

// Validate rejects a Config that would make packet geometry or timeouts
// nonsensical.
func (c *Config) Validate() error {
	if c.PacketSize <= 0 {
		return fmt.Errorf("packet_size must be positive")
	}
	if c.NearWindow <= 0 {
		return fmt.Errorf("near_window must be positive")
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("resolve_timeout must be positive")
	}
	if c.ResolveCacheSize <= 0 {
		return fmt.Errorf("resolve_cache_size must be positive")
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("idle conn limits must not be negative")
	}
	return nil
}
