package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the fetcher with simulated time. Sleep advances the clock
// instead of blocking, so pacing behavior is testable without real waits.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	c.sleeps++
	return ctx.Err()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestFetcher(t *testing.T, clock *fakeClock, opts Options, handler http.HandlerFunc) (*Fetcher, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := New(opts, nil)
	f.now = clock.Now
	f.sleep = clock.Sleep
	return f, srv.URL
}

// TestCall_WindowNeverExceeded verifies the core quota property: across any
// rolling 60s window the fetcher records at most 10 calls, no matter how many
// are requested back to back.
func TestCall_WindowNeverExceeded(t *testing.T) {
	clock := newFakeClock()
	var callTimes []time.Time
	var mu sync.Mutex
	f, srvURL := newTestFetcher(t, clock,
		Options{MaxCallsPerWindow: 10, Window: 60 * time.Second, MinInterval: 0},
		func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			callTimes = append(callTimes, clock.Now())
			mu.Unlock()
			w.Write([]byte(`[]`))
		})

	for i := 0; i < 30; i++ {
		if _, err := f.Call(context.Background(), "test", srvURL, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	// Slide a 60s window over the recorded simulated timestamps.
	for i := range callTimes {
		inWindow := 0
		end := callTimes[i]
		start := end.Add(-60 * time.Second)
		for _, ts := range callTimes {
			if ts.After(start) && !ts.After(end) {
				inWindow++
			}
		}
		if inWindow > 10 {
			t.Fatalf("window ending at call %d holds %d calls, want <= 10", i, inWindow)
		}
	}
}

// TestCall_BlocksAtCapacity verifies that the 11th call within a window waits
// for the oldest timestamp to age out (plus the buffer) before proceeding.
func TestCall_BlocksAtCapacity(t *testing.T) {
	clock := newFakeClock()
	f, srvURL := newTestFetcher(t, clock,
		Options{MaxCallsPerWindow: 2, Window: 60 * time.Second, MinInterval: 0},
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.Call(ctx, "test", srvURL, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	before := clock.sleeps
	if _, err := f.Call(ctx, "test", srvURL, nil); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if clock.sleeps == before {
		t.Fatal("third call did not wait despite full window")
	}
	// The wait must cover the remainder of the window plus the buffer.
	if got := clock.slept[len(clock.slept)-1]; got < 60*time.Second {
		t.Errorf("window wait = %v, want >= 60s", got)
	}
}

// TestCall_MinimumSpacing verifies the fixed spacing between consecutive
// calls is enforced even when the window has capacity.
func TestCall_MinimumSpacing(t *testing.T) {
	clock := newFakeClock()
	var callTimes []time.Time
	var mu sync.Mutex
	f, srvURL := newTestFetcher(t, clock,
		Options{MaxCallsPerWindow: 10, Window: 60 * time.Second, MinInterval: 6 * time.Second},
		func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			callTimes = append(callTimes, clock.Now())
			mu.Unlock()
			w.Write([]byte(`[]`))
		})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := f.Call(ctx, "test", srvURL, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	for i := 1; i < len(callTimes); i++ {
		if gap := callTimes[i].Sub(callTimes[i-1]); gap < 6*time.Second {
			t.Errorf("gap between call %d and %d = %v, want >= 6s", i-1, i, gap)
		}
	}
}

// TestCall_NoWaitAfterSpacingElapsed verifies a call proceeds immediately once
// the minimum interval has already passed.
func TestCall_NoWaitAfterSpacingElapsed(t *testing.T) {
	clock := newFakeClock()
	f, srvURL := newTestFetcher(t, clock,
		Options{MaxCallsPerWindow: 10, Window: 60 * time.Second, MinInterval: 6 * time.Second},
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})

	ctx := context.Background()
	if _, err := f.Call(ctx, "test", srvURL, nil); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Second)
	before := clock.sleeps
	if _, err := f.Call(ctx, "test", srvURL, nil); err != nil {
		t.Fatal(err)
	}
	if clock.sleeps != before {
		t.Error("call waited although spacing had already elapsed")
	}
}

// TestCall_NonOKStatus verifies that a non-2xx response surfaces as a
// NetworkError carrying the status code, without retrying.
func TestCall_NonOKStatus(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	f, srvURL := newTestFetcher(t, clock,
		Options{MinInterval: 0},
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadGateway)
		})

	_, err := f.Call(context.Background(), "test", srvURL, nil)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if netErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", netErr.StatusCode, http.StatusBadGateway)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1 (no internal retries)", calls)
	}
}

// TestCall_AppendsKeyAndFormat verifies the API key and format params are
// attached to every request alongside caller params.
func TestCall_AppendsKeyAndFormat(t *testing.T) {
	clock := newFakeClock()
	var gotQuery url.Values
	f, srvURL := newTestFetcher(t, clock,
		Options{MinInterval: 0, APIKey: "test-key"},
		func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			w.Write([]byte(`[]`))
		})

	params := url.Values{}
	params.Set("station", "42")
	if _, err := f.Call(context.Background(), "test", srvURL, params); err != nil {
		t.Fatal(err)
	}
	if gotQuery.Get("key") != "test-key" {
		t.Errorf("key = %q, want test-key", gotQuery.Get("key"))
	}
	if gotQuery.Get("format") != "json" {
		t.Errorf("format = %q, want json", gotQuery.Get("format"))
	}
	if gotQuery.Get("station") != "42" {
		t.Errorf("station = %q, want 42", gotQuery.Get("station"))
	}
}

// TestCall_ContextCanceledDuringWait verifies a canceled context aborts the
// rate-limit wait instead of issuing the call.
func TestCall_ContextCanceledDuringWait(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	f, srvURL := newTestFetcher(t, clock,
		Options{MaxCallsPerWindow: 1, Window: 60 * time.Second, MinInterval: 0},
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`[]`))
		})

	if _, err := f.Call(context.Background(), "test", srvURL, nil); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Call(ctx, "test", srvURL, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}
}
