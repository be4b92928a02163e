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
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.uber.org/atomic"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	gerrors "github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/decode"
	"github.com/tochemey/etcdclient/response"
)

// KeepAlive refreshes leases over one LeaseKeepAlive stream.
//
// Refresh performs one write then one read. Calls are serialized by mu so the
// stream never has more than one write and one read outstanding.
type KeepAlive struct {
	*base
	cancelled *atomic.Bool

	mu           sync.Mutex
	stream       etcdserverpb.Lease_LeaseKeepAliveClient
	creating     bool
	writing      bool
	reading      bool
	closed       bool
	ctxCancelled bool
	done         chan struct{}
}

// NewKeepAlive opens a keepalive stream. The stream is ready once the first
// Refresh returns.
func NewKeepAlive(ctx context.Context, params Parameters) *KeepAlive {
	a := &KeepAlive{
		base:      newBase(ctx, KindLeaseKeepAlive, params),
		cancelled: atomic.NewBool(false),
		creating:  true,
		done:      make(chan struct{}),
	}
	a.cq.start(tagCreate, func() (any, error) {
		return a.params.Lease.LeaseKeepAlive(a.ctx)
	})
	return a
}

// Refresh sends one heartbeat for leaseID and waits for its acknowledgement.
// A transport failure closes the stream; a lease the server no longer knows
// is reported as NotFound and leaves the stream usable.
func (a *KeepAlive) Refresh(leaseID int64) *response.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, fatal := a.refreshLocked(leaseID)
	if fatal {
		a.closeLocked()
	}
	return a.stamp(r)
}

// Cancel closes the stream. It is safe to call any number of times and
// interrupts a Refresh in progress.
func (a *KeepAlive) Cancel() {
	if !a.cancelled.CompareAndSwap(false, true) {
		return
	}
	a.cq.post(completion{tag: tagWake})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

// Cancelled reports whether the stream is closed or closing
func (a *KeepAlive) Cancelled() bool {
	return a.cancelled.Load()
}

// Done is closed once the stream is fully closed
func (a *KeepAlive) Done() <-chan struct{} {
	return a.done
}

func (a *KeepAlive) refreshLocked(leaseID int64) (*response.Result, bool) {
	if a.closed || a.cancelled.Load() {
		return response.Failed(gerrors.ActionCancelled, "keepalive cancelled"), false
	}

	var deadline time.Time
	if a.params.Timeout > 0 {
		deadline = time.Now().Add(a.params.Timeout)
	}

	if a.creating {
		c, failed := a.awaitLocked(tagCreate, deadline)
		if failed != nil {
			return failed, true
		}
		a.creating = false
		if c.err != nil {
			a.setStatus(c.err)
			return a.failure(), true
		}
		a.stream = c.reply.(etcdserverpb.Lease_LeaseKeepAliveClient)
	}

	request := &etcdserverpb.LeaseKeepAliveRequest{ID: leaseID}
	a.writing = true
	a.cq.start(tagWrite, func() (any, error) {
		return nil, a.stream.Send(request)
	})
	c, failed := a.awaitLocked(tagWrite, deadline)
	if failed != nil {
		return failed, true
	}
	a.writing = false
	// a failed stream reports EOF on Send; its status comes from Recv
	if c.err != nil && !errors.Is(c.err, io.EOF) {
		a.setStatus(c.err)
		return a.failure(), true
	}

	a.reading = true
	a.cq.start(tagRead, func() (any, error) {
		return a.stream.Recv()
	})
	c, failed = a.awaitLocked(tagRead, deadline)
	if failed != nil {
		return failed, true
	}
	a.reading = false
	if errors.Is(c.err, io.EOF) {
		c.err = status.Error(codes.Unavailable, "keepalive stream closed by the server")
	}
	if c.err != nil {
		a.setStatus(c.err)
		return a.failure(), true
	}

	r := new(response.Result)
	decode.LeaseKeepAlive(r, c.reply.(*etcdserverpb.LeaseKeepAliveResponse))
	return r, false
}

// awaitLocked waits for the completion tagged want. Any other outcome is a failure
// and leaves the operation flagged as outstanding.
func (a *KeepAlive) awaitLocked(want tag, deadline time.Time) (completion, *response.Result) {
	var timeout time.Duration
	if !deadline.IsZero() {
		if timeout = time.Until(deadline); timeout <= 0 {
			timeout = time.Nanosecond
		}
	}

	c, st := a.cq.next(timeout)
	switch st {
	case timedOut:
		a.ctxCancelled = true
		a.cancel()
		message := fmt.Sprintf("keepalive timed out after %s", a.params.Timeout)
		a.setStatus(status.Error(codes.DeadlineExceeded, message))
		return c, response.Failed(gerrors.DeadlineExceeded, message)
	case shutdown:
		return c, response.Failed(gerrors.Unavailable, "completion queue shut down")
	}

	switch c.tag {
	case want:
		return c, nil
	case tagWake:
		return c, response.Failed(gerrors.ActionCancelled, "keepalive cancelled")
	default:
		return c, response.Failed(gerrors.ActionCancelled, "unexpected completion "+c.tag.String())
	}
}

// closeLocked walks the close sequence: wait for outstanding operations,
// CloseSend, then drain the stream to its terminal status.
func (a *KeepAlive) closeLocked() {
	if a.closed {
		return
	}
	a.closed = true
	a.cancelled.Store(true)

	if a.creating {
		c, ok := a.drainLocked(tagCreate)
		if !ok {
			a.forceLocked()
			return
		}
		a.creating = false
		if c.err != nil {
			a.setStatus(c.err)
			a.finishLocked()
			return
		}
		a.stream = c.reply.(etcdserverpb.Lease_LeaseKeepAliveClient)
	}

	if a.writing {
		if _, ok := a.drainLocked(tagWrite); !ok {
			a.forceLocked()
			return
		}
		a.writing = false
	}

	a.cq.start(tagWritesDone, func() (any, error) {
		return nil, a.stream.CloseSend()
	})
	if _, ok := a.drainLocked(tagWritesDone); !ok {
		a.forceLocked()
		return
	}

	if a.reading {
		if _, ok := a.drainLocked(tagRead); !ok {
			a.forceLocked()
			return
		}
		a.reading = false
	}

	a.cq.start(tagFinish, func() (any, error) {
		for {
			if _, err := a.stream.Recv(); err != nil {
				return nil, err
			}
		}
	})
	c, ok := a.drainLocked(tagFinish)
	if !ok {
		a.forceLocked()
		return
	}
	if st := toStatus(c.err); !(a.ctxCancelled && st.Code() == codes.Canceled) {
		a.setStatus(c.err)
	}
	a.finishLocked()
}

// drainLocked waits up to the grace window for the completion tagged want,
// discarding wake-ups and stale completions.
func (a *KeepAlive) drainLocked(want tag) (completion, bool) {
	grace := a.params.grace()
	deadline := time.Now().Add(grace)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return completion{}, false
		}
		c, st := a.cq.next(remaining)
		if st != gotEvent {
			return c, false
		}
		if c.tag == want {
			return c, true
		}
	}
}

func (a *KeepAlive) forceLocked() {
	a.logger.Warnf("keepalive stream did not close within %s, forcing it down", a.params.grace())
	a.ctxCancelled = true
	a.cancel()
	a.finishLocked()
}

func (a *KeepAlive) finishLocked() {
	r := new(response.Result)
	if !a.ok() {
		r = a.failure()
	}
	a.release(a.stamp(r))
	close(a.done)
}
