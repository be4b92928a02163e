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

	"go.etcd.io/etcd/server/v3/etcdserver/api/v3election/v3electionpb"
	"go.uber.org/atomic"
	"google.golang.org/grpc/codes"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/decode"
	"github.com/tochemey/etcdclient/response"
)

// Observe follows the leader of an election over a server stream and hands
// every update to its callback from the drain goroutine.
type Observe struct {
	*base
	callback  func(*response.Response)
	cancelled *atomic.Bool

	// owned by the drain goroutine
	stream        v3electionpb.Election_ObserveClient
	reading       bool
	closing       bool
	finishPending bool
	ctxCancelled  bool
	finished      bool
	result        *response.Result

	done  chan struct{}
	final *response.Result
}

// NewObserve starts observing election params.Name
func NewObserve(ctx context.Context, params Parameters, callback func(*response.Response)) *Observe {
	a := &Observe{
		base:      newBase(ctx, KindObserve, params),
		callback:  callback,
		cancelled: atomic.NewBool(false),
		done:      make(chan struct{}),
	}
	request := &v3electionpb.LeaderRequest{Name: []byte(params.Name)}
	a.cq.start(tagCreate, func() (any, error) {
		return a.params.Election.Observe(a.ctx, request)
	})
	go a.run()
	return a
}

// Cancel stops observing. It is safe to call any number of times.
func (a *Observe) Cancel() {
	if a.cancelled.CompareAndSwap(false, true) {
		a.cq.post(completion{tag: tagWake})
	}
}

// Cancelled reports whether Cancel has been called
func (a *Observe) Cancelled() bool {
	return a.cancelled.Load()
}

// Done is closed once the stream is fully closed
func (a *Observe) Done() <-chan struct{} {
	return a.done
}

// Result waits for the stream to end and returns its outcome
func (a *Observe) Result() *response.Result {
	<-a.done
	return a.final
}

func (a *Observe) run() {
	defer close(a.done)
	for !a.finished {
		timeout := a.params.grace()
		if !a.closing {
			timeout = 0
		}

		c, st := a.cq.next(timeout)
		switch st {
		case shutdown:
			a.finished = true
		case timedOut:
			a.logger.Warnf("observe %q did not close within %s, forcing it down", a.params.Name, a.params.grace())
			a.finished = true
		default:
			a.dispatch(c)
		}
	}

	a.final = a.stamp(a.outcome())
	a.release(a.final)
}

func (a *Observe) dispatch(c completion) {
	switch c.tag {
	case tagCreate:
		if c.err != nil {
			a.setFinalStatus(c.err)
			a.finished = true
			return
		}
		a.stream = c.reply.(v3electionpb.Election_ObserveClient)
		if a.closing {
			a.startFinish()
			return
		}
		a.read()
	case tagRead:
		a.onRead(c)
	case tagFinish:
		a.setFinalStatus(c.err)
		a.finished = true
	case tagWake:
		a.beginCancel()
	default:
		a.result = response.Failed(errors.ActionCancelled, "unexpected completion "+c.tag.String())
		a.beginCancel()
	}
}

func (a *Observe) read() {
	a.reading = true
	a.cq.start(tagRead, func() (any, error) {
		return a.stream.Recv()
	})
}

func (a *Observe) onRead(c completion) {
	a.reading = false
	if a.closing {
		if a.finishPending {
			a.startFinish()
		}
		return
	}

	if c.err != nil {
		// a server stream is over once Recv fails
		a.setStatus(c.err)
		a.finished = true
		return
	}

	r := new(response.Result)
	decode.Leader(r, c.reply.(*v3electionpb.LeaderResponse))
	a.stamp(r)
	if a.callback != nil {
		a.callback(response.New(r))
	}

	if !r.OK() {
		a.result = r
		a.beginCancel()
		return
	}
	a.read()
}

func (a *Observe) beginCancel() {
	if a.closing {
		return
	}
	a.closing = true
	a.ctxCancelled = true
	a.cancel()
	if a.stream != nil {
		a.startFinish()
	}
}

func (a *Observe) startFinish() {
	if a.reading {
		a.finishPending = true
		return
	}
	a.finishPending = false
	a.cq.start(tagFinish, func() (any, error) {
		for {
			if _, err := a.stream.Recv(); err != nil {
				return nil, err
			}
		}
	})
}

// setFinalStatus records err unless it is the cancellation we caused
func (a *Observe) setFinalStatus(err error) {
	if a.ctxCancelled && toStatus(err).Code() == codes.Canceled {
		return
	}
	a.setStatus(err)
}

func (a *Observe) outcome() *response.Result {
	switch {
	case a.result != nil:
		return a.result
	case !a.ok():
		return a.failure()
	default:
		return new(response.Result)
	}
}
