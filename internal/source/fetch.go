package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher retrieves the raw content at a location. Timeouts and transport
// details are the fetcher's business, not the resolver's.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// RateLimiter wraps a token bucket rate limiter.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter that allows rps requests per second.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the rate limiter allows another request.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// maxBodySize caps a single dataset download.
const maxBodySize = 256 << 20

// HTTPFetcher fetches http(s) locations.
type HTTPFetcher struct {
	Client  *http.Client
	Limiter *RateLimiter
}

// NewHTTPFetcher returns a fetcher with the given request timeout and rate.
func NewHTTPFetcher(timeout time.Duration, rps float64) *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: timeout},
		Limiter: NewRateLimiter(rps),
	}
}

// Fetch implements Fetcher. Any non-2xx status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	// Mirrors may serve stale copies, always ask for a fresh one.
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/geo+json, application/json;q=0.9, */*;q=0.1")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}

// FileFetcher reads local paths, relative to Dir when not absolute.
// file:// URLs are accepted.
type FileFetcher struct {
	Dir string
}

// Fetch implements Fetcher.
func (f FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := location
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parsing file url: %w", err)
		}
		path = u.Path
	}
	if !filepath.IsAbs(path) && f.Dir != "" {
		path = filepath.Join(f.Dir, path)
	}
	return os.ReadFile(path)
}

// MultiFetcher routes http and https locations to HTTP and everything else
// to File.
type MultiFetcher struct {
	HTTP Fetcher
	File Fetcher
}

// Fetch implements Fetcher.
func (m MultiFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if isHTTP(location) {
		if m.HTTP == nil {
			return nil, fmt.Errorf("no http fetcher for %s", location)
		}
		return m.HTTP.Fetch(ctx, location)
	}
	if m.File == nil {
		return nil, fmt.Errorf("no file fetcher for %s", location)
	}
	return m.File.Fetch(ctx, location)
}

func isHTTP(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
