package sqlite

import "sync"

// Result is the pending outcome of an operation submitted to a handle. It is
// completed exactly once on the handle's execution goroutine; callers either
// block on Wait or select on Done. Abandoning a Result does not cancel the
// underlying operation, which still runs to completion against the engine.
type Result[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// complete assigns the outcome. Later calls are no-ops.
func (r *Result[T]) complete(value T, err error) {
	r.once.Do(func() {
		r.value = value
		r.err = err
		close(r.done)
	})
}

// Done returns a channel that is closed once the operation has finished.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the operation has finished and returns its outcome.
func (r *Result[T]) Wait() (T, error) {
	<-r.done
	return r.value, r.err
}

// Err waits for completion and returns only the error.
func (r *Result[T]) Err() error {
	<-r.done
	return r.err
}

func failedResult[T any](err error) *Result[T] {
	r := newResult[T]()
	var zero T
	r.complete(zero, err)
	return r
}
