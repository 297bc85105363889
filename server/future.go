package server

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
)

// Future is the result of an asynchronous method. A handler returning
// (*Future[R], error) is dispatched like any other; the server awaits the
// future before responding, and discovery reports R as the result type.
//
//	srv.Method("report").Handler(func(ctx context.Context, p ReportParams) (*server.Future[Report], error) {
//	    return server.Go(func() (Report, error) { return build(p) }), nil
//	})
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on a new goroutine and returns its future. A panic in fn is
// recovered and reported as the future's error.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, complete := NewFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				complete(zero, &panicError{value: r, stack: debug.Stack()})
			}
		}()
		complete(fn())
	}()
	return f
}

// NewFuture returns a pending future and the function that completes it.
// Only the first completion takes effect.
func NewFuture[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	var once sync.Once
	return f, func(v T, err error) {
		once.Do(func() {
			f.value, f.err = v, err
			close(f.done)
		})
	}
}

// Resolved returns a completed future holding v.
func Resolved[T any](v T) *Future[T] {
	f, complete := NewFuture[T]()
	complete(v, nil)
	return f
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed on completion.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// awaitable is implemented by *Future[T].
type awaitable interface {
	awaitAny(ctx context.Context) (any, error)
	resultType() reflect.Type
}

func (f *Future[T]) awaitAny(ctx context.Context) (any, error) {
	if f == nil {
		return nil, fmt.Errorf("nil future")
	}
	return f.Await(ctx)
}

func (*Future[T]) resultType() reflect.Type {
	return reflect.TypeFor[T]()
}

var awaitableType = reflect.TypeFor[awaitable]()
