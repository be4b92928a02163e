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

package etcdtest

import (
	"bytes"
	"context"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc"
)

type kvService struct {
	etcdserverpb.UnimplementedKVServer
	server *Server
}

func (x *kvService) RegisterService(srv *grpc.Server) {
	etcdserverpb.RegisterKVServer(srv, x)
}

func (x *kvService) Range(_ context.Context, request *etcdserverpb.RangeRequest) (*etcdserverpb.RangeResponse, error) {
	store := x.server.store
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.rangeLocked(request)
}

func (x *kvService) Put(_ context.Context, request *etcdserverpb.PutRequest) (*etcdserverpb.PutResponse, error) {
	store := x.server.store
	store.mu.Lock()
	defer store.mu.Unlock()

	mark := len(store.history)
	reply, err := store.putRequestLocked(request, store.revision+1)
	if err != nil {
		return nil, err
	}
	store.commitLocked(mark)
	reply.Header = store.header()
	return reply, nil
}

func (x *kvService) DeleteRange(_ context.Context, request *etcdserverpb.DeleteRangeRequest) (*etcdserverpb.DeleteRangeResponse, error) {
	store := x.server.store
	store.mu.Lock()
	defer store.mu.Unlock()

	mark := len(store.history)
	reply := store.deleteRequestLocked(request, store.revision+1)
	store.commitLocked(mark)
	reply.Header = store.header()
	return reply, nil
}

// Txn evaluates the compares and runs one branch atomically at a single revision
func (x *kvService) Txn(_ context.Context, request *etcdserverpb.TxnRequest) (*etcdserverpb.TxnResponse, error) {
	store := x.server.store
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := store.checkTxnLocked(request); err != nil {
		return nil, err
	}

	mark := len(store.history)
	reply, err := store.txnLocked(request, store.revision+1)
	if err != nil {
		return nil, err
	}
	store.commitLocked(mark)
	reply.Header = store.header()
	return reply, nil
}

func (x *kvService) Compact(_ context.Context, request *etcdserverpb.CompactionRequest) (*etcdserverpb.CompactionResponse, error) {
	if err := x.server.store.Compact(request.Revision); err != nil {
		return nil, err
	}
	return &etcdserverpb.CompactionResponse{Header: x.server.store.Header()}, nil
}

func (s *store) putRequestLocked(request *etcdserverpb.PutRequest, revision int64) (*etcdserverpb.PutResponse, error) {
	prev, err := s.putLocked(request.Key, request.Value, request.Lease, revision)
	if err != nil {
		return nil, err
	}
	reply := &etcdserverpb.PutResponse{Header: s.header()}
	if request.PrevKv {
		reply.PrevKv = prev
	}
	return reply, nil
}

func (s *store) deleteRequestLocked(request *etcdserverpb.DeleteRangeRequest, revision int64) *etcdserverpb.DeleteRangeResponse {
	removed := s.deleteLocked(request.Key, request.RangeEnd, revision)
	reply := &etcdserverpb.DeleteRangeResponse{Header: s.header(), Deleted: int64(len(removed))}
	if request.PrevKv {
		reply.PrevKvs = removed
	}
	return reply
}

func (s *store) txnLocked(request *etcdserverpb.TxnRequest, revision int64) (*etcdserverpb.TxnResponse, error) {
	succeeded := true
	for _, compare := range request.Compare {
		if !s.compareLocked(compare) {
			succeeded = false
			break
		}
	}

	ops := request.Failure
	if succeeded {
		ops = request.Success
	}

	reply := &etcdserverpb.TxnResponse{Header: s.header(), Succeeded: succeeded}
	for _, op := range ops {
		out := new(etcdserverpb.ResponseOp)
		switch req := op.Request.(type) {
		case *etcdserverpb.RequestOp_RequestRange:
			r, err := s.rangeLocked(req.RequestRange)
			if err != nil {
				return nil, err
			}
			out.Response = &etcdserverpb.ResponseOp_ResponseRange{ResponseRange: r}
		case *etcdserverpb.RequestOp_RequestPut:
			r, err := s.putRequestLocked(req.RequestPut, revision)
			if err != nil {
				return nil, err
			}
			out.Response = &etcdserverpb.ResponseOp_ResponsePut{ResponsePut: r}
		case *etcdserverpb.RequestOp_RequestDeleteRange:
			r := s.deleteRequestLocked(req.RequestDeleteRange, revision)
			out.Response = &etcdserverpb.ResponseOp_ResponseDeleteRange{ResponseDeleteRange: r}
		case *etcdserverpb.RequestOp_RequestTxn:
			r, err := s.txnLocked(req.RequestTxn, revision)
			if err != nil {
				return nil, err
			}
			out.Response = &etcdserverpb.ResponseOp_ResponseTxn{ResponseTxn: r}
		default:
			return nil, rpctypes.ErrGRPCTooManyOps
		}
		reply.Responses = append(reply.Responses, out)
	}
	return reply, nil
}

// checkTxnLocked rejects a transaction whose operations could fail half way
func (s *store) checkTxnLocked(request *etcdserverpb.TxnRequest) error {
	for _, op := range append(append([]*etcdserverpb.RequestOp(nil), request.Success...), request.Failure...) {
		switch req := op.Request.(type) {
		case *etcdserverpb.RequestOp_RequestRange:
			if req.RequestRange.Revision > s.revision {
				return rpctypes.ErrGRPCFutureRev
			}
			if req.RequestRange.Revision > 0 && req.RequestRange.Revision < s.compacted {
				return rpctypes.ErrGRPCCompacted
			}
		case *etcdserverpb.RequestOp_RequestPut:
			if len(req.RequestPut.Key) == 0 {
				return rpctypes.ErrGRPCEmptyKey
			}
			if id := req.RequestPut.Lease; id != 0 {
				if _, ok := s.leases[id]; !ok {
					return rpctypes.ErrGRPCLeaseNotFound
				}
			}
		case *etcdserverpb.RequestOp_RequestTxn:
			if err := s.checkTxnLocked(req.RequestTxn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *store) compareLocked(compare *etcdserverpb.Compare) bool {
	current := s.kvs[string(compare.Key)]
	if current == nil {
		current = new(mvccpb.KeyValue)
	}

	var result int
	switch target := compare.TargetUnion.(type) {
	case *etcdserverpb.Compare_Version:
		result = compareInt(current.Version, target.Version)
	case *etcdserverpb.Compare_CreateRevision:
		result = compareInt(current.CreateRevision, target.CreateRevision)
	case *etcdserverpb.Compare_ModRevision:
		result = compareInt(current.ModRevision, target.ModRevision)
	case *etcdserverpb.Compare_Value:
		if s.kvs[string(compare.Key)] == nil {
			// a missing key never matches a value compare
			return false
		}
		result = bytes.Compare(current.Value, target.Value)
	case *etcdserverpb.Compare_Lease:
		result = compareInt(current.Lease, target.Lease)
	default:
		return false
	}

	switch compare.Result {
	case etcdserverpb.Compare_EQUAL:
		return result == 0
	case etcdserverpb.Compare_NOT_EQUAL:
		return result != 0
	case etcdserverpb.Compare_GREATER:
		return result > 0
	case etcdserverpb.Compare_LESS:
		return result < 0
	default:
		return false
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
