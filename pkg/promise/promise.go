package promise

import (
	"context"
	"errors"
	"sync"
)

// ErrRejected is the cause reported when a promise is rejected with a nil
// error.
var ErrRejected = errors.New("promise: rejected")

// Promise is a single-assignment value shared between one producer and any
// number of waiters. It settles at most once, either resolved with a value
// or rejected with an error, and every waiter observes the same outcome.
type Promise[T any] struct {
	mu   sync.Mutex
	done chan struct{}
	val  T
	err  error
}

func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve settles the promise with v. Only the first settlement wins,
// later Resolve or Reject calls change nothing and report false.
func (p *Promise[T]) Resolve(v T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settledLocked() {
		return false
	}
	p.val = v
	close(p.done)
	return true
}

// Reject settles the promise with err. A nil err is replaced with
// ErrRejected so waiters always see a cause.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settledLocked() {
		return false
	}
	p.err = err
	close(p.done)
	return true
}

// Await blocks until the promise settles or ctx is done. Waiters arriving
// after settlement return immediately.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether Resolve or Reject has already won.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the rejection cause. It is nil while the promise is pending
// and nil forever after a Resolve.
func (p *Promise[T]) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *Promise[T]) settledLocked() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
