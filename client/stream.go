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

package client

import (
	"context"
	"sync"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/action"
	"github.com/tochemey/etcdclient/response"
)

// Watcher follows every change of a key or a range until it is cancelled
type Watcher struct {
	watch *action.Watch
}

// Watcher starts watching key, or the range selected by the call options,
// and hands every event batch to callback. callback runs on the watch
// goroutine, one batch at a time, and must not block.
func (c *Client) Watcher(ctx context.Context, key string, callback func(*response.Response), opts ...CallOption) (*Watcher, error) {
	if c.closed.Load() {
		return nil, errors.ErrClientClosed
	}
	if callback == nil {
		callback = func(*response.Response) {}
	}

	p := c.params(key, opts)
	p.Timeout = 0
	watcher := &Watcher{watch: action.NewWatcher(ctx, p, callback)}
	c.track("watch-"+watcher.watch.ID(), watcher)
	return watcher, nil
}

// WatchID returns the id of the watch
func (w *Watcher) WatchID() int64 {
	return w.watch.WatchID()
}

// Established is closed once the server has acknowledged the watch
func (w *Watcher) Established() <-chan struct{} {
	return w.watch.Established()
}

// Cancel stops the watch. It is safe to call any number of times.
func (w *Watcher) Cancel() {
	w.watch.Cancel()
}

// Cancelled reports whether Cancel has been called
func (w *Watcher) Cancelled() bool {
	return w.watch.Cancelled()
}

// Done is closed once the watch stream is closed
func (w *Watcher) Done() <-chan struct{} {
	return w.watch.Done()
}

// Wait blocks until the watch ends and returns how it ended.
// A watch ended by Cancel succeeds; one ended by the server carries its error.
func (w *Watcher) Wait() *response.Response {
	return response.New(w.watch.Result())
}

// Observer follows the leader of an election until it is cancelled
type Observer struct {
	observe *action.Observe

	mu      sync.Mutex
	pending []*response.Response
	notify  chan struct{}
}

// Observe starts following the leader of election name. Every leader
// change is queued and returned by WaitOnce.
func (c *Client) Observe(ctx context.Context, name string, opts ...CallOption) (*Observer, error) {
	if c.closed.Load() {
		return nil, errors.ErrClientClosed
	}

	p := c.params("", opts)
	p.Name = name
	p.Timeout = 0

	observer := &Observer{notify: make(chan struct{}, 1)}
	observer.observe = action.NewObserve(ctx, p, observer.enqueue)
	c.track("observe-"+observer.observe.ID(), observer)
	return observer, nil
}

// WaitOnce returns the oldest leader update not yet returned. Once the
// stream has ended and every update has been returned, it returns how
// the stream ended.
func (o *Observer) WaitOnce(ctx context.Context) (*response.Response, error) {
	for {
		o.mu.Lock()
		if len(o.pending) > 0 {
			next := o.pending[0]
			o.pending = o.pending[1:]
			o.mu.Unlock()
			return next, nil
		}
		o.mu.Unlock()

		select {
		case <-o.notify:
		case <-o.observe.Done():
			o.mu.Lock()
			drained := len(o.pending) == 0
			o.mu.Unlock()
			if drained {
				return response.New(o.observe.Result()), nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Cancel stops observing. It is safe to call any number of times.
func (o *Observer) Cancel() {
	o.observe.Cancel()
}

// Cancelled reports whether Cancel has been called
func (o *Observer) Cancelled() bool {
	return o.observe.Cancelled()
}

// Done is closed once the observe stream is closed
func (o *Observer) Done() <-chan struct{} {
	return o.observe.Done()
}

func (o *Observer) enqueue(update *response.Response) {
	o.mu.Lock()
	o.pending = append(o.pending, update)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}
