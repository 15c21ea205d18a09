package gateway

import (
	"context"
	"sync"
	"time"
)

// inFlightFetch tracks a single upstream fetch that multiple callers may wait for.
type inFlightFetch[T any] struct {
	mu      sync.Mutex
	result  T
	err     error
	done    bool
	waiters []chan struct{} // Channels to notify waiters when result is ready
}

// coalescer collapses concurrent fetches for the same cache key into one
// upstream call, enforcing the at-most-one-in-flight-fetch-per-key
// invariant.
type coalescer[T any] struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightFetch[T]
	timeout  time.Duration
}

// newCoalescer creates a coalescer with the specified wait timeout.
func newCoalescer[T any](timeout time.Duration) *coalescer[T] {
	return &coalescer[T]{
		inFlight: make(map[string]*inFlightFetch[T]),
		timeout:  timeout,
	}
}

// GetOrDo checks if a fetch for key is already in-flight. If yes, waits for
// its result. If no, executes fn and registers the fetch. Respects context
// cancellation and timeout to prevent indefinite blocking.
func (c *coalescer[T]) GetOrDo(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	req, exists := c.inFlight[key]
	if exists {
		// Fetch in-flight; wait for it
		notify := make(chan struct{})
		req.mu.Lock()
		if req.done {
			result := req.result
			err := req.err
			req.mu.Unlock()
			c.mu.Unlock()
			if err != nil {
				return zero, err
			}
			return result, nil
		}
		req.waiters = append(req.waiters, notify)
		req.mu.Unlock()
		c.mu.Unlock()

		waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		select {
		case <-notify:
			req.mu.Lock()
			result := req.result
			err := req.err
			req.mu.Unlock()
			if err != nil {
				return zero, err
			}
			return result, nil
		case <-waitCtx.Done():
			return zero, waitCtx.Err()
		}
	}

	// No existing fetch; create one
	req = &inFlightFetch[T]{
		waiters: make([]chan struct{}, 0),
	}
	c.inFlight[key] = req
	c.mu.Unlock()

	go func() {
		result, err := fn()

		req.mu.Lock()
		req.result = result
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		c.cleanup(key)
	}()

	// Wait for result with timeout
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	notify := make(chan struct{})
	req.mu.Lock()
	if req.done {
		result := req.result
		err := req.err
		req.mu.Unlock()
		if err != nil {
			return zero, err
		}
		return result, nil
	}
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	select {
	case <-notify:
		req.mu.Lock()
		result := req.result
		err := req.err
		req.mu.Unlock()
		if err != nil {
			return zero, err
		}
		return result, nil
	case <-waitCtx.Done():
		return zero, waitCtx.Err()
	}
}

// cleanup removes the in-flight fetch for key. Called after the fetch completes.
func (c *coalescer[T]) cleanup(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}
