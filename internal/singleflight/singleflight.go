package singleflight

import (
	"context"
	"sync"
)

// Flight coalesces concurrent executions of one logical operation so that
// fn runs at most once at a time. Concurrent callers wait for the shared
// result; once the flight lands, the next caller starts a fresh one.
//
// Concurrency notes:
//   - The first caller becomes the leader and runs fn.
//   - Followers wait on c.done. Publishing (val, err) happens-before
//     close(c.done), so reads after <-done observe the final values.
//   - Cancelling ctx in a follower unblocks only that follower; it does
//     NOT cancel the leader's fn. If the work itself must be cancellable,
//     thread ctx into fn and handle it there.
type Flight[V any] struct {
	mu  sync.Mutex
	cur *call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
}

// Do runs fn, or — if a flight is already in progress — waits for its
// result. If ctx is cancelled while waiting, that waiter returns ctx.Err()
// while the leader continues to run fn.
func (f *Flight[V]) Do(ctx context.Context, fn func() (V, error)) (V, error) {
	f.mu.Lock()
	if c := f.cur; c != nil {
		done := c.done
		f.mu.Unlock()

		select {
		case <-done:
			return c.val, c.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	// We are the leader.
	c := &call[V]{done: make(chan struct{})}
	f.cur = c
	f.mu.Unlock()

	// Execute fn outside the lock.
	v, err := fn()

	// Publish result and wake followers.
	c.val, c.err = v, err
	close(c.done)

	// Clear the in-flight marker.
	f.mu.Lock()
	f.cur = nil
	f.mu.Unlock()

	return v, err
}
