// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package future

import (
	"context"
	"fmt"
	"sync"
)

// Future is the handle returned by every asynchronous client operation.
// The result is computed once and can be awaited any number of times.
type Future[T any] interface {
	// Await blocks until the result is available or the context is done.
	// A context error does not cancel the underlying work; use Cancel for that.
	Await(ctx context.Context) (T, error)
	// Done is closed once the result is available.
	Done() <-chan struct{}
	// Cancel cancels the context handed to the underlying work.
	Cancel()
}

type future[T any] struct {
	value  T
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// enforce compilation error
var _ Future[struct{}] = (*future[struct{}])(nil)

// New runs fn on its own goroutine and returns a Future for its result.
// A panic in fn is captured as the future error.
func New[T any](ctx context.Context, fn func(context.Context) (T, error)) Future[T] {
	cctx, cancel := context.WithCancel(ctx)
	f := &future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(f.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("future panicked: %v", r)
			}
		}()
		f.value, f.err = fn(cctx)
	}()

	return f
}

// Completed returns an already resolved Future.
func Completed[T any](value T, err error) Future[T] {
	f := &future[T]{
		value:  value,
		err:    err,
		done:   make(chan struct{}),
		cancel: func() {},
	}
	close(f.done)
	return f
}

// Await returns the result or the context error, whichever comes first
func (f *future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available
func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel cancels the work context
func (f *future[T]) Cancel() {
	f.cancel()
}

// AwaitAll waits for every future and returns their results in order.
// The first error encountered is returned along with the results gathered so far.
func AwaitAll[T any](ctx context.Context, futures ...Future[T]) ([]T, error) {
	results := make([]T, len(futures))
	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	for i, f := range futures {
		wg.Add(1)
		go func(i int, f Future[T]) {
			defer wg.Done()
			value, err := f.Await(ctx)
			mu.Lock()
			defer mu.Unlock()
			results[i] = value
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}(i, f)
	}

	wg.Wait()
	return results, firstErr
}
