package udot

import (
	"context"
	"sync"
	"time"
)

// inFlightFetch tracks a single upstream fetch that multiple callers may wait
// for.
type inFlightFetch struct {
	mu      sync.Mutex
	body    []byte
	err     error
	done    bool
	waiters []chan struct{}
}

// fetchCoalescer folds concurrent cache misses for the same dataset into one
// upstream call. Every extra call burns quota, so when the scheduler and a
// request handler miss the cache at the same moment, only one of them pays.
type fetchCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightFetch
	timeout  time.Duration
}

func newFetchCoalescer(timeout time.Duration) *fetchCoalescer {
	return &fetchCoalescer{
		inFlight: make(map[string]*inFlightFetch),
		timeout:  timeout,
	}
}

// getOrDo returns the in-flight fetch result for key when one exists,
// otherwise runs fn and shares its result with any waiters that arrive
// before it completes. Waiting respects context cancellation and the
// coalescer timeout; fn itself runs on a detached context so a canceled
// owner cannot poison the result every coalesced waiter shares.
func (fc *fetchCoalescer) getOrDo(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	fc.mu.Lock()
	req, exists := fc.inFlight[key]
	if exists {
		notify := make(chan struct{})
		req.mu.Lock()
		if req.done {
			body, err := req.body, req.err
			req.mu.Unlock()
			fc.mu.Unlock()
			return body, err
		}
		req.waiters = append(req.waiters, notify)
		req.mu.Unlock()
		fc.mu.Unlock()
		return fc.wait(ctx, req, notify)
	}

	req = &inFlightFetch{}
	fc.inFlight[key] = req
	fc.mu.Unlock()

	go func() {
		fetchCtx, cancel := context.WithTimeout(context.Background(), fc.timeout)
		body, err := fn(fetchCtx)
		cancel()

		req.mu.Lock()
		req.body = body
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		fc.mu.Lock()
		delete(fc.inFlight, key)
		fc.mu.Unlock()
	}()

	notify := make(chan struct{})
	req.mu.Lock()
	if req.done {
		body, err := req.body, req.err
		req.mu.Unlock()
		return body, err
	}
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()
	return fc.wait(ctx, req, notify)
}

func (fc *fetchCoalescer) wait(ctx context.Context, req *inFlightFetch, notify chan struct{}) ([]byte, error) {
	waitCtx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()
	select {
	case <-notify:
		req.mu.Lock()
		body, err := req.body, req.err
		req.mu.Unlock()
		return body, err
	case <-waitCtx.Done():
		return nil, waitCtx.Err()
	}
}
