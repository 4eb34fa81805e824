package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/basinwx/road-weather-service/internal/observability"
)

const (
	// DefaultMaxCallsPerWindow is the upstream quota: 10 calls per rolling window.
	DefaultMaxCallsPerWindow = 10
	// DefaultWindow is the quota's rolling window.
	DefaultWindow = 60 * time.Second
	// DefaultMinInterval is the conservative spacing between any two calls.
	// Kept separate from the window quota; see the configuration docs.
	DefaultMinInterval = 6 * time.Second
	// DefaultTimeout bounds each upstream HTTP request.
	DefaultTimeout = 15 * time.Second

	// waitBuffer pads the computed window wait so the oldest timestamp has
	// actually left the window when we re-check.
	waitBuffer = 100 * time.Millisecond
)

// NetworkError reports an upstream failure: a non-2xx response or a transport
// error (including timeout). The fetcher never retries; callers fall back to
// cached data instead.
type NetworkError struct {
	Endpoint   string
	StatusCode int // 0 for transport errors
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrBreakerOpen is returned when the optional circuit breaker is open.
var ErrBreakerOpen = errors.New("upstream circuit open")

// Options configure a Fetcher. Zero values fall back to the defaults above.
type Options struct {
	MaxCallsPerWindow int
	Window            time.Duration
	MinInterval       time.Duration
	Timeout           time.Duration
	APIKey            string
	UserAgent         string
}

// Fetcher paces calls to the quota-constrained traffic-authority API.
// It must be shared by every adapter: a second instance would double the
// effective call rate and blow the upstream quota. Safe for concurrent use.
type Fetcher struct {
	opts    Options
	client  *http.Client
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker

	mu        sync.Mutex
	callTimes []time.Time

	// now and sleep are swapped out in tests to drive a simulated clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher with the given options and logger.
func New(opts Options, logger *zap.Logger) *Fetcher {
	if opts.MaxCallsPerWindow <= 0 {
		opts.MaxCallsPerWindow = DefaultMaxCallsPerWindow
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MinInterval < 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Fetcher{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// SetCircuitBreaker installs an optional breaker around upstream calls.
// When the breaker is open, Call fails fast with ErrBreakerOpen wrapped in a
// NetworkError so adapters take their normal cache-fallback path.
func (f *Fetcher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	f.breaker = cb
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Call performs a rate-limited GET against endpoint with the given query
// params and returns the raw response body. endpoint is a full URL; name is
// a short label for logs and metrics (e.g. "cameras"). Blocks while the
// quota window is full or the minimum spacing has not elapsed; that wait is
// backpressure, not an error.
func (f *Fetcher) Call(ctx context.Context, name, endpoint string, params url.Values) ([]byte, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}

	if f.breaker != nil {
		body, err := f.breaker.Execute(func() (interface{}, error) {
			return f.do(ctx, name, endpoint, params)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, &NetworkError{Endpoint: name, Err: fmt.Errorf("%w: %v", ErrBreakerOpen, err)}
			}
			return nil, err
		}
		return body.([]byte), nil
	}
	return f.do(ctx, name, endpoint, params)
}

// acquire blocks until a call slot is available, then records the call
// timestamp. Enforces both constraints: the rolling-window quota and the
// fixed minimum spacing between consecutive calls.
func (f *Fetcher) acquire(ctx context.Context) error {
	waitStart := f.now()

	f.mu.Lock()
	for {
		now := f.now()
		f.pruneLocked(now)

		if len(f.callTimes) >= f.opts.MaxCallsPerWindow {
			oldest := f.callTimes[0]
			wait := f.opts.Window - now.Sub(oldest) + waitBuffer
			f.mu.Unlock()
			if f.logger != nil {
				f.logger.Warn("upstream rate limit reached, waiting",
					zap.Duration("wait", wait))
			}
			if err := f.sleep(ctx, wait); err != nil {
				return err
			}
			f.mu.Lock()
			continue
		}

		if n := len(f.callTimes); n > 0 && f.opts.MinInterval > 0 {
			sinceLast := now.Sub(f.callTimes[n-1])
			if sinceLast < f.opts.MinInterval {
				wait := f.opts.MinInterval - sinceLast
				f.mu.Unlock()
				if err := f.sleep(ctx, wait); err != nil {
					return err
				}
				f.mu.Lock()
				continue
			}
		}

		f.callTimes = append(f.callTimes, f.now())
		f.mu.Unlock()
		break
	}

	waited := f.now().Sub(waitStart)
	if waited > 0 {
		observability.RateLimitWaitSeconds.Observe(waited.Seconds())
	}
	return nil
}

// pruneLocked drops call timestamps older than the rolling window.
// Must be called with mu held.
func (f *Fetcher) pruneLocked(now time.Time) {
	cutoff := now.Add(-f.opts.Window)
	i := 0
	for ; i < len(f.callTimes) && !f.callTimes[i].After(cutoff); i++ {
	}
	if i > 0 {
		f.callTimes = append(f.callTimes[:0], f.callTimes[i:]...)
	}
}

// CallsInWindow reports the number of calls recorded in the current window.
func (f *Fetcher) CallsInWindow() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked(f.now())
	return len(f.callTimes)
}

func (f *Fetcher) do(ctx context.Context, name, endpoint string, params url.Values) ([]byte, error) {
	start := time.Now()

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %s: %w", name, err)
	}
	q := u.Query()
	if f.opts.APIKey != "" {
		q.Set("key", f.opts.APIKey)
	}
	q.Set("format", "json")
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	if f.logger != nil {
		f.logger.Debug("upstream call", zap.String("endpoint", name))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(name, "error").Inc()
		observability.UpstreamCallDuration.WithLabelValues(name, "error").Observe(time.Since(start).Seconds())
		return nil, &NetworkError{Endpoint: name, Err: err}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(name, status).Inc()
	observability.UpstreamCallDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{Endpoint: name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Endpoint: name, Err: fmt.Errorf("read response body: %w", err)}
	}
	return body, nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
