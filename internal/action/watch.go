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

package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.uber.org/atomic"
	"google.golang.org/grpc/codes"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/decode"
	"github.com/tochemey/etcdclient/response"
)

type watchState int

const (
	watchCreate watchState = iota
	watchWrite
	watchReading
	watchCancelling
	watchFinishing
	watchDone
)

func (s watchState) closing() bool {
	return s == watchCancelling || s == watchFinishing
}

// watchIDs hands out watch ids when the caller does not pick one
var watchIDs = atomic.NewInt64(0)

// Watch drives one watch over its own bidirectional stream.
//
// A single-shot watch completes with the first event batch. A continuous
// watch delivers every batch to its callback until it is cancelled or the
// server ends it. All stream state is owned by the drain goroutine; the only
// cross-goroutine entry point is Cancel.
type Watch struct {
	*base
	callback   func(*response.Response)
	continuous bool
	cancelled  *atomic.Bool

	// owned by the drain goroutine
	stream          etcdserverpb.Watch_WatchClient
	state           watchState
	watchID         int64
	reading         bool
	writing         bool
	cancelPending   bool
	finishPending   bool
	serverCancelled bool
	cancelAcked     bool
	ctxCancelled    bool
	deadline        time.Time
	result          *response.Result

	established   chan struct{}
	establishOnce sync.Once
	done          chan struct{}
	final         *response.Result
}

// NewWatch starts a single-shot watch on params.Key, or the range it selects,
// from params.Revision. Result blocks until the first event batch, the
// Timeout or a cancellation.
func NewWatch(ctx context.Context, params Parameters) *Watch {
	return newWatch(ctx, params, nil)
}

// NewWatcher starts a continuous watch delivering every event batch to callback.
// callback runs on the drain goroutine and must not block.
func NewWatcher(ctx context.Context, params Parameters, callback func(*response.Response)) *Watch {
	return newWatch(ctx, params, callback)
}

func newWatch(ctx context.Context, params Parameters, callback func(*response.Response)) *Watch {
	a := &Watch{
		base:        newBase(ctx, KindWatch, params),
		callback:    callback,
		continuous:  callback != nil,
		cancelled:   atomic.NewBool(false),
		watchID:     params.WatchID,
		established: make(chan struct{}),
		done:        make(chan struct{}),
	}
	if a.watchID == 0 {
		a.watchID = watchIDs.Inc()
	}
	if !a.continuous && params.Timeout > 0 {
		a.deadline = a.start.Add(params.Timeout)
	}

	a.cq.start(tagCreate, func() (any, error) {
		return a.params.Watch.Watch(a.ctx)
	})
	go a.run()
	return a
}

// WatchID returns the id the watch was created with
func (a *Watch) WatchID() int64 {
	return a.watchID
}

// Cancel stops the watch. It is safe to call any number of times from any goroutine.
func (a *Watch) Cancel() {
	if a.cancelled.CompareAndSwap(false, true) {
		a.cq.post(completion{tag: tagWake})
	}
}

// Cancelled reports whether Cancel has been called
func (a *Watch) Cancelled() bool {
	return a.cancelled.Load()
}

// Established is closed once the server acknowledged the watch
func (a *Watch) Established() <-chan struct{} {
	return a.established
}

// Done is closed once the stream is fully closed
func (a *Watch) Done() <-chan struct{} {
	return a.done
}

// Result waits for the watch to end and returns its outcome.
// For a single-shot watch this is the first event batch.
func (a *Watch) Result() *response.Result {
	<-a.done
	return a.final
}

func (a *Watch) run() {
	defer close(a.done)
	for a.state != watchDone {
		c, st := a.cq.next(a.waitTimeout())
		switch st {
		case shutdown:
			a.state = watchDone
		case timedOut:
			a.onTimeout()
		default:
			a.dispatch(c)
		}
	}
	a.final = a.stamp(a.outcome())
	a.release(a.final)
}

func (a *Watch) waitTimeout() time.Duration {
	switch {
	case a.state.closing():
		return a.params.grace()
	case !a.deadline.IsZero() && a.result == nil:
		if remaining := time.Until(a.deadline); remaining > 0 {
			return remaining
		}
		return time.Nanosecond
	default:
		return 0
	}
}

func (a *Watch) onTimeout() {
	if a.state.closing() {
		a.logger.Warnf("watch %d did not close within %s, forcing it down", a.watchID, a.params.grace())
		a.force()
		return
	}

	a.result = response.Failed(errors.DeadlineExceeded, fmt.Sprintf("watch timed out after %s", a.params.Timeout))
	if a.state == watchCreate {
		a.force()
		return
	}
	a.beginCancel()
}

func (a *Watch) dispatch(c completion) {
	switch c.tag {
	case tagCreate:
		a.onCreate(c)
	case tagWrite:
		a.onWrite(c)
	case tagRead:
		a.onRead(c)
	case tagCancelWrite:
		a.onCancelWritten(c)
	case tagWritesDone:
		a.onWritesDone(c)
	case tagFinish:
		a.onFinish(c)
	case tagWake:
		a.beginCancel()
	default:
		a.result = response.Failed(errors.ActionCancelled, "unexpected completion "+c.tag.String())
		a.force()
	}
}

func (a *Watch) onCreate(c completion) {
	if c.err != nil {
		a.setStatus(c.err)
		a.state = watchDone
		return
	}

	a.stream = c.reply.(etcdserverpb.Watch_WatchClient)
	if a.cancelPending {
		// nothing was registered on the server yet
		a.cancelPending = false
		a.closeSend()
		return
	}

	key, end := a.params.Range()
	request := &etcdserverpb.WatchRequest{
		RequestUnion: &etcdserverpb.WatchRequest_CreateRequest{
			CreateRequest: &etcdserverpb.WatchCreateRequest{
				Key:           key,
				RangeEnd:      end,
				StartRevision: a.params.Revision,
				PrevKv:        true,
				WatchId:       a.watchID,
			},
		},
	}

	a.state = watchWrite
	a.writing = true
	a.cq.start(tagWrite, func() (any, error) {
		return nil, a.stream.Send(request)
	})
}

func (a *Watch) onWrite(c completion) {
	a.writing = false
	if c.err != nil {
		a.setStatus(c.err)
		a.startFinish()
		return
	}

	a.state = watchReading
	a.read()
	if a.cancelPending {
		a.cancelPending = false
		a.beginCancel()
	}
}

func (a *Watch) read() {
	a.reading = true
	a.cq.start(tagRead, func() (any, error) {
		return a.stream.Recv()
	})
}

func (a *Watch) onRead(c completion) {
	a.reading = false

	if a.state.closing() {
		if reply, ok := c.reply.(*etcdserverpb.WatchResponse); ok && c.err == nil && reply.Canceled {
			a.cancelAcked = true
		}
		if a.finishPending {
			a.startFinish()
		}
		return
	}

	if c.err != nil {
		a.setStatus(c.err)
		if !a.continuous && a.result == nil {
			a.result = a.failure()
		}
		a.startFinish()
		return
	}

	reply := c.reply.(*etcdserverpb.WatchResponse)
	if reply.Created {
		a.establishOnce.Do(func() { close(a.established) })
	}

	switch {
	case reply.Canceled:
		a.serverCancelled = true
		a.deliver(reply)
		a.beginCancel()
		return
	case len(reply.Events) > 0, a.pendingRevision(reply):
		a.deliver(reply)
		if !a.continuous {
			a.beginCancel()
			return
		}
	}
	a.read()
}

// pendingRevision reports whether reply acknowledges a watch starting past
// the current revision. Such an ack is delivered as an empty batch.
func (a *Watch) pendingRevision(reply *etcdserverpb.WatchResponse) bool {
	return reply.Created && reply.Header != nil && a.params.Revision > reply.Header.Revision
}

func (a *Watch) deliver(reply *etcdserverpb.WatchResponse) {
	r := new(response.Result)
	decode.Watch(r, reply)
	a.stamp(r)

	if !a.continuous {
		if a.result == nil {
			a.result = r
		}
		return
	}

	if !r.OK() && a.result == nil {
		a.result = r
	}
	a.callback(response.New(r))
}

// beginCancel starts the close sequence: cancel request, CloseSend, finish
func (a *Watch) beginCancel() {
	switch a.state {
	case watchCreate, watchWrite:
		a.cancelPending = true
	case watchReading:
		if a.serverCancelled {
			a.closeSend()
			return
		}
		a.state = watchCancelling
		a.writing = true
		request := &etcdserverpb.WatchRequest{
			RequestUnion: &etcdserverpb.WatchRequest_CancelRequest{
				CancelRequest: &etcdserverpb.WatchCancelRequest{WatchId: a.watchID},
			},
		}
		a.cq.start(tagCancelWrite, func() (any, error) {
			return nil, a.stream.Send(request)
		})
	}
}

func (a *Watch) onCancelWritten(c completion) {
	a.writing = false
	if c.err != nil {
		a.setStatus(c.err)
		a.startFinish()
		return
	}
	a.closeSend()
}

func (a *Watch) closeSend() {
	a.state = watchCancelling
	a.writing = true
	a.cq.start(tagWritesDone, func() (any, error) {
		return nil, a.stream.CloseSend()
	})
}

func (a *Watch) onWritesDone(c completion) {
	a.writing = false
	a.setStatus(c.err)
	a.startFinish()
}

// startFinish drains the stream to its terminal status.
// It waits for an in-flight read to come back first.
func (a *Watch) startFinish() {
	a.state = watchFinishing
	if a.reading {
		a.finishPending = true
		return
	}
	a.finishPending = false

	if a.cancelAcked || a.serverCancelled {
		// the watch is gone server side, nothing is left to read
		a.ctxCancelled = true
		a.cancel()
	}

	// the server may keep the stream open after CloseSend, so the cancel
	// ack of this watch also ends the drain
	id := a.watchID
	a.cq.start(tagFinish, func() (any, error) {
		for {
			reply, err := a.stream.Recv()
			if err != nil {
				return nil, err
			}
			if reply.Canceled && reply.WatchId == id {
				return reply, nil
			}
		}
	})
}

func (a *Watch) onFinish(c completion) {
	if c.err == nil && c.reply != nil {
		a.cancelAcked = true
		a.ctxCancelled = true
		a.cancel()
	}
	st := toStatus(c.err)
	if !(a.ctxCancelled && st.Code() == codes.Canceled) {
		a.setStatus(c.err)
	}
	a.state = watchDone
}

func (a *Watch) force() {
	a.ctxCancelled = true
	a.cancel()
	a.state = watchDone
}

func (a *Watch) outcome() *response.Result {
	switch {
	case a.result != nil:
		return a.result
	case !a.ok():
		return a.failure()
	case a.cancelled.Load() && !a.continuous:
		return response.Failed(errors.ActionCancelled, "watch cancelled")
	default:
		return &response.Result{WatchID: a.watchID}
	}
}
