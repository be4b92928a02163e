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

// Package action implements the asynchronous RPC engine of the client.
//
// An action binds Parameters to one pending call. Every operation it starts runs
// on its own goroutine and posts a tagged completion to the action's completion
// queue; a single drain loop consumes the completions in order and dispatches them
// by tag. Unary actions wait for one completion. Streaming actions drive a small
// state machine over the stream, with at most one read and one write in flight.
package action

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tochemey/etcdclient/internal/decode"
	"github.com/tochemey/etcdclient/log"
	"github.com/tochemey/etcdclient/response"
	"github.com/tochemey/etcdclient/telemetry"
)

// tokenMetadataKey is the metadata key etcd reads the auth token from
const tokenMetadataKey = "token"

type base struct {
	id     string
	kind   Kind
	params Parameters
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	cq     *completionQueue
	start  time.Time
	status *status.Status
	logger log.Logger

	releaseOnce sync.Once
}

func newBase(ctx context.Context, kind Kind, params Parameters) *base {
	if ctx == nil {
		ctx = context.Background()
	}

	id := uuid.NewString()
	callCtx, span := params.Telemetry.StartSpan(ctx, kind.String(), telemetry.ActionKey.String(kind.String()))
	if params.HasToken() {
		callCtx = metadata.AppendToOutgoingContext(callCtx, tokenMetadataKey, params.Token())
	}

	var cancel context.CancelFunc
	if !kind.Streaming() && params.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, params.Timeout)
	} else {
		callCtx, cancel = context.WithCancel(callCtx)
	}

	b := &base{
		id:     id,
		kind:   kind,
		params: params,
		ctx:    callCtx,
		cancel: cancel,
		span:   span,
		cq:     newCompletionQueue(),
		start:  time.Now(),
		logger: params.logger().With("action", kind.String(), "id", id),
	}

	if kind.Streaming() && params.Telemetry != nil {
		params.Telemetry.Metrics.StreamOpened(ctx, kind.String())
	}

	b.logger.Debugf("issuing %s on %q", kind, params.Key)
	return b
}

// ID returns the correlation id of the action
func (b *base) ID() string {
	return b.id
}

// Kind returns the operation kind
func (b *base) Kind() Kind {
	return b.kind
}

// waitForResponse waits for the single completion of a unary call
// and records the terminal status.
func (b *base) waitForResponse() completion {
	c, st := b.cq.next(b.params.Timeout)
	switch st {
	case timedOut:
		b.cancel()
		b.status = status.Newf(codes.DeadlineExceeded, "%s timed out after %s", b.kind, b.params.Timeout)
	case shutdown:
		b.status = status.New(codes.Unavailable, "completion queue shut down")
	default:
		b.status = toStatus(c.err)
	}
	return c
}

// setStatus records err unless a failure has already been recorded
func (b *base) setStatus(err error) {
	if b.status != nil && b.status.Code() != codes.OK {
		return
	}
	b.status = toStatus(err)
}

func (b *base) ok() bool {
	return b.status == nil || b.status.Code() == codes.OK
}

// stamp fills the fields every result carries
func (b *base) stamp(r *response.Result) *response.Result {
	if r.Action == "" {
		r.Action = b.kind.String()
	}
	r.Duration = time.Since(b.start)
	return r
}

// release ends the action: the call context is cancelled, the queue shut down
// and telemetry recorded. It runs once.
func (b *base) release(r *response.Result) {
	b.releaseOnce.Do(func() {
		code := 0
		message := ""
		if r != nil {
			code = int(r.ErrorCode)
			message = r.ErrorMessage
		}

		b.cancel()
		b.cq.shutdown()

		if b.params.Telemetry != nil {
			ctx := context.WithoutCancel(b.ctx)
			b.params.Telemetry.Metrics.RecordAction(ctx, b.kind.String(), code, time.Since(b.start))
			if b.kind.Streaming() {
				b.params.Telemetry.Metrics.StreamClosed(ctx, b.kind.String())
			}
		}

		if code != 0 {
			b.span.SetStatus(otelcodes.Error, message)
			b.logger.Debugf("%s completed with code %d: %s", b.kind, code, message)
		} else {
			b.logger.Debugf("%s completed in %s", b.kind, time.Since(b.start))
		}
		b.span.End()
	})
}

// failure converts the recorded status into a result
func (b *base) failure() *response.Result {
	r := new(response.Result)
	decode.Status(r, b.status)
	return r
}

func toStatus(err error) *status.Status {
	if err == nil || errors.Is(err, io.EOF) {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	return status.FromContextError(err)
}
