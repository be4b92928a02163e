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
	"time"
)

// CallOption customizes a single operation
type CallOption func(*callOptions)

type callOptions struct {
	revision  int64
	limit     int64
	rangeEnd  string
	prefix    bool
	keysOnly  bool
	countOnly bool
	leaseID   int64
	timeout   time.Duration
	watchID   int64
}

// WithRevision reads, or starts a watch, at the given revision
func WithRevision(revision int64) CallOption {
	return func(o *callOptions) {
		o.revision = revision
	}
}

// WithLimit bounds the number of keys a range returns. Zero means no limit.
func WithLimit(limit int64) CallOption {
	return func(o *callOptions) {
		o.limit = limit
	}
}

// WithRangeEnd makes the operation span [key, rangeEnd)
func WithRangeEnd(rangeEnd string) CallOption {
	return func(o *callOptions) {
		o.rangeEnd = rangeEnd
	}
}

// WithPrefix makes the operation span every key starting with key
func WithPrefix() CallOption {
	return func(o *callOptions) {
		o.prefix = true
	}
}

// WithKeysOnly returns keys without their values
func WithKeysOnly() CallOption {
	return func(o *callOptions) {
		o.keysOnly = true
	}
}

// WithCountOnly returns only the number of keys in range
func WithCountOnly() CallOption {
	return func(o *callOptions) {
		o.countOnly = true
	}
}

// WithLease attaches the written key to a lease
func WithLease(leaseID int64) CallOption {
	return func(o *callOptions) {
		o.leaseID = leaseID
	}
}

// WithTimeout overrides the default timeout of the client for this call
func WithTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = timeout
	}
}

// WithWatchID sets the id a watch is created with
func WithWatchID(watchID int64) CallOption {
	return func(o *callOptions) {
		o.watchID = watchID
	}
}
