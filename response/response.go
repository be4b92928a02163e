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
	"slices"
	"time"

	"github.com/tochemey/etcdclient/errors"
)

// Response is the immutable outcome of an action.
// It is safe to share between goroutines.
type Response struct {
	result Result
}

// New freezes a Result into a Response.
// The result is normalized and deep-copied; later mutations of r are not observed.
func New(r *Result) *Response {
	if r == nil {
		r = Failed(errors.ActionCancelled, errors.ErrActionCancelled.Error())
	}

	frozen := *r
	frozen.Values = slices.Clone(r.Values)
	frozen.PrevValues = slices.Clone(r.PrevValues)
	frozen.Keys = slices.Clone(r.Keys)
	frozen.Events = slices.Clone(r.Events)
	frozen.Leases = slices.Clone(r.Leases)
	frozen.Members = cloneMembers(r.Members)
	frozen.Member = r.Member.clone()
	frozen.Normalize()
	return &Response{result: frozen}
}

// IsOK reports whether the action succeeded
func (r *Response) IsOK() bool {
	return r.result.ErrorCode == errors.OK
}

// ErrorCode returns the error code, zero on success
func (r *Response) ErrorCode() errors.Code {
	return r.result.ErrorCode
}

// ErrorMessage returns the error message
func (r *Response) ErrorMessage() string {
	return r.result.ErrorMessage
}

// Err returns nil on success, otherwise an *errors.Error that matches the
// domain sentinels with errors.Is.
func (r *Response) Err() error {
	if r.IsOK() {
		return nil
	}
	return errors.New(r.result.ErrorCode, r.result.ErrorMessage)
}

// Action returns the action tag, e.g. "get", "compareAndSwap" or, for watches, the event kind.
func (r *Response) Action() string {
	return r.result.Action
}

// Index returns the store revision reported by the reply header
func (r *Response) Index() int64 {
	return r.result.Index
}

// Value returns the single value view. For list results it is the first element.
func (r *Response) Value() KeyValue {
	return r.result.Value
}

// PrevValue returns the previous value view
func (r *Response) PrevValue() KeyValue {
	return r.result.PrevValue
}

// Values returns the list of values
func (r *Response) Values() []KeyValue {
	return slices.Clone(r.result.Values)
}

// ValueAt returns the value at index i, or the single value when no list is set
func (r *Response) ValueAt(i int) KeyValue {
	if len(r.result.Values) == 0 && i == 0 {
		return r.result.Value
	}
	if i < 0 || i >= len(r.result.Values) {
		return KeyValue{}
	}
	return r.result.Values[i]
}

// PrevValues returns the list of previous values
func (r *Response) PrevValues() []KeyValue {
	return slices.Clone(r.result.PrevValues)
}

// Keys returns the keys of a keys-only range
func (r *Response) Keys() []string {
	return slices.Clone(r.result.Keys)
}

// Key returns the key at index i
func (r *Response) Key(i int) string {
	if i < 0 || i >= len(r.result.Keys) {
		return ""
	}
	return r.result.Keys[i]
}

// Count returns the number of keys in range reported by the server
func (r *Response) Count() int64 {
	return r.result.Count
}

// LockKey returns the key owning an acquired lock
func (r *Response) LockKey() string {
	return r.result.LockKey
}

// Leader returns the leader key of a campaign
func (r *Response) Leader() LeaderKey {
	return r.result.Leader
}

// WatchID returns the watch id of a watch response
func (r *Response) WatchID() int64 {
	return r.result.WatchID
}

// CompactRevision returns the compaction revision of a cancelled watch
func (r *Response) CompactRevision() int64 {
	return r.result.CompactRevision
}

// Events returns the raw change events of a watch response
func (r *Response) Events() []Event {
	return slices.Clone(r.result.Events)
}

// Leases returns the lease ids of a lease listing
func (r *Response) Leases() []int64 {
	return slices.Clone(r.result.Leases)
}

// Members returns the cluster members
func (r *Response) Members() []Member {
	return cloneMembers(r.result.Members)
}

// Member returns the member added by an add-member call
func (r *Response) Member() Member {
	return r.result.Member.clone()
}

// Succeeded reports whether the compare branch of a transaction held
func (r *Response) Succeeded() bool {
	return r.result.Succeeded
}

// GrantedTTL returns the TTL a lease was granted with, as reported by a time-to-live query
func (r *Response) GrantedTTL() int64 {
	return r.result.GrantedTTL
}

// ClusterID returns the id of the cluster that served the request
func (r *Response) ClusterID() uint64 {
	return r.result.ClusterID
}

// MemberID returns the id of the member that served the request
func (r *Response) MemberID() uint64 {
	return r.result.MemberID
}

// RaftTerm returns the raft term of the member that served the request
func (r *Response) RaftTerm() uint64 {
	return r.result.RaftTerm
}

// Duration returns the time elapsed between issuing the action and its completion
func (r *Response) Duration() time.Duration {
	return r.result.Duration
}
