package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/siteatlas/siteatlas/internal/resilience"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxRetries  = 3
	defaultUserAgent   = "siteatlas/1.0"

	// fallbackRate applies to hosts outside the rate table.
	fallbackRate = rate.Limit(20)
)

// defaultHostRates throttles the geodata sources this tool pulls from.
// Overpass enforces a hard per-IP budget; the rest is plain politeness.
var defaultHostRates = map[string]rate.Limit{
	"overpass-api.de":       2,
	"apihub.latlong.ai":     5,
	"data.opencity.in":      10,
	"download.geofabrik.de": 5,
}

// HTTPOptions configures the HTTP fetcher. Zero values pick the defaults
// above; HostRates entries override or extend the built-in host table.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	HostRates  map[string]rate.Limit
}

// hostLimiter is a token bucket that tunes itself to the server's mood: a
// 429 halves the rate (floored at a quarter of the starting rate) and each
// success nudges it back up (capped at double).
type hostLimiter struct {
	mu      sync.Mutex
	bucket  *rate.Limiter
	current rate.Limit
	floor   rate.Limit
	ceil    rate.Limit
}

func newHostLimiter(start rate.Limit) *hostLimiter {
	return &hostLimiter{
		bucket:  rate.NewLimiter(start, max(int(start), 1)),
		current: start,
		floor:   start / 4,
		ceil:    start * 2,
	}
}

func (h *hostLimiter) wait(ctx context.Context) error { return h.bucket.Wait(ctx) }

func (h *hostLimiter) slower() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current /= 2
	if h.current < h.floor {
		h.current = h.floor
	}
	h.bucket.SetLimit(h.current)
}

func (h *hostLimiter) faster() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current *= 1.2
	if h.current > h.ceil {
		h.current = h.ceil
	}
	h.bucket.SetLimit(h.current)
}

func (h *hostLimiter) limit() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// HTTPFetcher downloads over HTTP with per-host adaptive rate limiting and
// transient-aware retries.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retry     resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*hostLimiter
	rates    map[string]rate.Limit
}

// NewHTTPFetcher builds an HTTPFetcher, filling option defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	rates := make(map[string]rate.Limit, len(defaultHostRates)+len(opts.HostRates))
	for host, r := range defaultHostRates {
		rates[host] = r
	}
	for host, r := range opts.HostRates {
		rates[host] = r
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	retry.InitialBackoff = time.Second
	retry.OnRetry = resilience.RetryLogger("fetcher", "download")

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: opts.UserAgent,
		retry:     retry,
		limiters:  make(map[string]*hostLimiter),
		rates:     rates,
	}
}

// limiterFor returns the adaptive limiter for the URL's host, creating it on
// first use. Hosts outside the rate table get the generous fallback.
func (f *HTTPFetcher) limiterFor(rawURL string) *hostLimiter {
	var host string
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	start, ok := f.rates[host]
	if !ok {
		start = fallbackRate
	}
	lim := newHostLimiter(start)
	f.limiters[host] = lim
	return lim
}

// Download fetches rawURL and returns the response body. 429 and 5xx
// responses are retried with backoff; a 429 additionally slows the host's
// limiter.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: build request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	lim := f.limiterFor(rawURL)
	body, err := resilience.DoVal(ctx, f.retry, func(ctx context.Context) (io.ReadCloser, error) {
		if err := lim.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limit wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			lim.faster()
			return resp.Body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lim.slower()
			zap.L().Warn("rate limited, slowing down",
				zap.String("url", rawURL),
				zap.Float64("rate", float64(lim.limit())))
			return nil, resilience.NewTransientError(eris.Errorf("http 429 from %s", rawURL), resp.StatusCode)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			_ = resp.Body.Close()
			return nil, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		default:
			_ = resp.Body.Close()
			return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		}
	})
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: download")
	}
	return body, nil
}

// DownloadToFile streams rawURL into path and reports bytes written.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	return n, eris.Wrap(err, "fetcher: write file")
}
