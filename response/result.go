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

package response

import (
	"time"

	"github.com/tochemey/etcdclient/errors"
)

// Result accumulates a decoded reply before it is frozen into a Response.
// Decoders write into it directly; it must not be shared once handed to New.
type Result struct {
	ErrorCode       errors.Code
	ErrorMessage    string
	Index           int64
	Action          string
	Value           KeyValue
	PrevValue       KeyValue
	Values          []KeyValue
	PrevValues      []KeyValue
	Keys            []string
	Count           int64
	LockKey         string
	Leader          LeaderKey
	WatchID         int64
	CompactRevision int64
	Events          []Event
	Leases          []int64
	Members         []Member
	Member          Member
	Succeeded       bool
	GrantedTTL      int64
	ClusterID       uint64
	MemberID        uint64
	RaftTerm        uint64
	Duration        time.Duration
}

// Failed builds a Result carrying only an error
func Failed(code errors.Code, message string) *Result {
	return &Result{ErrorCode: code, ErrorMessage: message}
}

// OK reports whether no error has been recorded
func (r *Result) OK() bool {
	return r.ErrorCode == errors.OK
}

// SetError records an error unless one is already set.
// The first non-zero code wins; messages accumulate, newline separated.
func (r *Result) SetError(code errors.Code, message string) {
	if code == errors.OK {
		return
	}
	if r.ErrorCode == errors.OK {
		r.ErrorCode = code
	}
	switch {
	case message == "":
	case r.ErrorMessage == "":
		r.ErrorMessage = message
	default:
		r.ErrorMessage += "\n" + message
	}
}

// Normalize makes the singular accessors mirror the first element of the plural ones.
func (r *Result) Normalize() {
	if len(r.Values) > 0 {
		r.Value = r.Values[0]
	}
	if len(r.PrevValues) > 0 {
		r.PrevValue = r.PrevValues[0]
	}
}
