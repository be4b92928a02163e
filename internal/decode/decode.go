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

// Package decode turns etcd wire replies into response.Result values.
//
// Decoders never fail: problems are recorded in the result's error fields.
// Callers must check the transport status first and call Status instead of
// a reply decoder when the call did not succeed.
package decode

import (
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/response"
)

// Watch actions
const (
	ActionCreate = "create"
	ActionSet    = "set"
	ActionDelete = "delete"
)

// electionCodes maps the plain election errors, which the server sends with
// code Unknown, to a code callers can branch on
var electionCodes = map[string]codes.Code{
	errNoLeader:                 codes.NotFound,
	"election: not leader":      codes.FailedPrecondition,
	"election: session expired": codes.FailedPrecondition,
}

// Status records a non-OK transport status
func Status(r *response.Result, st *status.Status) {
	if st == nil || st.Err() == nil {
		return
	}
	code := st.Code()
	if mapped, ok := electionCodes[st.Message()]; ok && code == codes.Unknown {
		code = mapped
	}
	r.SetError(errors.Code(code), rpctypes.ErrorDesc(st.Err()))
}

// Header copies the reply header metadata
func Header(r *response.Result, header *etcdserverpb.ResponseHeader) {
	if header == nil {
		return
	}
	r.Index = header.Revision
	r.ClusterID = header.ClusterId
	r.MemberID = header.MemberId
	r.RaftTerm = header.RaftTerm
}

// Range decodes a range reply. A single-key read collapses to Value;
// a prefix read keeps the full list and reports zero matches as an empty list.
func Range(r *response.Result, reply *etcdserverpb.RangeResponse, prefix bool) {
	Header(r, reply.Header)
	r.Count = reply.Count

	if !prefix {
		r.Values = nil
		if len(reply.Kvs) == 0 {
			r.SetError(errors.KeyNotFound, errors.ErrKeyNotFound.Error())
			return
		}
		r.Value = response.FromKV(reply.Kvs[0])
		return
	}

	for _, kv := range reply.Kvs {
		r.Values = append(r.Values, response.FromKV(kv))
		r.Keys = append(r.Keys, string(kv.Key))
	}
}

// Put decodes a put reply. Only the previous value is reported.
func Put(r *response.Result, reply *etcdserverpb.PutResponse) {
	Header(r, reply.Header)
	if reply.PrevKv != nil {
		r.PrevValues = append(r.PrevValues, response.FromKV(reply.PrevKv))
		r.Normalize()
	}
}

// DeleteRange decodes a delete reply. Deleting nothing is an error only for a single key.
func DeleteRange(r *response.Result, reply *etcdserverpb.DeleteRangeResponse, prefix bool) {
	Header(r, reply.Header)
	if reply.Deleted == 0 && !prefix {
		r.SetError(errors.KeyNotFound, errors.ErrKeyNotFound.Error())
		return
	}
	for _, kv := range reply.PrevKvs {
		r.PrevValues = append(r.PrevValues, response.FromKV(kv))
	}
	r.Normalize()
}

// Txn decodes a transaction reply by walking the executed branch of request.
// request may be nil, in which case every nested read or delete is treated as single-key.
func Txn(r *response.Result, reply *etcdserverpb.TxnResponse, request *etcdserverpb.TxnRequest) {
	Header(r, reply.Header)
	r.Succeeded = reply.Succeeded

	var ops []*etcdserverpb.RequestOp
	if request != nil {
		ops = request.Failure
		if reply.Succeeded {
			ops = request.Success
		}
	}

	for i, sub := range reply.Responses {
		var op *etcdserverpb.RequestOp
		if i < len(ops) {
			op = ops[i]
		}

		nested := new(response.Result)
		switch resp := sub.Response.(type) {
		case *etcdserverpb.ResponseOp_ResponseRange:
			Range(nested, resp.ResponseRange, len(op.GetRequestRange().GetRangeEnd()) > 0)
			merge(r, nested, false)
		case *etcdserverpb.ResponseOp_ResponsePut:
			Put(nested, resp.ResponsePut)
			merge(r, nested, false)
		case *etcdserverpb.ResponseOp_ResponseDeleteRange:
			DeleteRange(nested, resp.ResponseDeleteRange, len(op.GetRequestDeleteRange().GetRangeEnd()) > 0)
			merge(r, nested, true)
		case *etcdserverpb.ResponseOp_ResponseTxn:
			Txn(nested, resp.ResponseTxn, op.GetRequestTxn())
			merge(r, nested, false)
		}
	}

	r.Normalize()
}

func merge(dst, src *response.Result, deletion bool) {
	if !(deletion && src.ErrorCode == errors.KeyNotFound) {
		dst.SetError(src.ErrorCode, src.ErrorMessage)
	}

	switch {
	case len(src.Values) > 0:
		dst.Values = append(dst.Values, src.Values...)
	case !src.Value.IsZero():
		dst.Values = append(dst.Values, src.Value)
	}

	switch {
	case len(src.PrevValues) > 0:
		dst.PrevValues = append(dst.PrevValues, src.PrevValues...)
	case !src.PrevValue.IsZero():
		dst.PrevValues = append(dst.PrevValues, src.PrevValue)
	}

	dst.Keys = append(dst.Keys, src.Keys...)
}

// Watch decodes a watch reply. Only the first event is flattened into
// Action, Value and PrevValue; Events carries the whole batch.
func Watch(r *response.Result, reply *etcdserverpb.WatchResponse) {
	Header(r, reply.Header)
	r.WatchID = reply.WatchId

	if reply.Canceled {
		if reply.CompactRevision != 0 {
			r.CompactRevision = reply.CompactRevision
			r.SetError(errors.OutOfRange, rpctypes.ErrCompacted.Error())
			return
		}
		if reply.CancelReason != "" {
			r.SetError(errors.ActionCancelled, reply.CancelReason)
			return
		}
	}

	for _, event := range reply.Events {
		r.Events = append(r.Events, response.FromEvent(event))
	}

	if len(reply.Events) == 0 {
		return
	}

	first := reply.Events[0]
	switch {
	case first.Type == mvccpb.DELETE:
		r.Action = ActionDelete
	case first.Kv != nil && first.Kv.Version == 1:
		r.Action = ActionCreate
	default:
		r.Action = ActionSet
	}
	r.Value = response.FromKV(first.Kv)
	r.PrevValue = response.FromKV(first.PrevKv)
}
