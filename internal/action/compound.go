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

	"go.etcd.io/etcd/api/v3/etcdserverpb"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/decode"
	"github.com/tochemey/etcdclient/response"
	"github.com/tochemey/etcdclient/txn"
)

// newTxnAction issues request and decodes the executed branch.
// When the compares fail, onFailure translates the outcome into a domain error.
func newTxnAction(ctx context.Context, kind Kind, params Parameters, request *etcdserverpb.TxnRequest, onFailure func(*response.Result)) *Unary[*etcdserverpb.TxnResponse] {
	return newUnary(ctx, kind, params, params.KV.Txn, request, func(r *response.Result, reply *etcdserverpb.TxnResponse) {
		decode.Txn(r, reply, request)
		if !reply.Succeeded && onFailure != nil {
			onFailure(r)
		}
	})
}

// failWith replaces whatever the failure branch reported with code
func failWith(code errors.Code, err error) func(*response.Result) {
	return func(r *response.Result) {
		r.ErrorCode = code
		r.ErrorMessage = err.Error()
	}
}

// NewTxn runs a caller-built transaction. A transaction whose compares fail
// reports CompareFailed with the failure branch still decoded.
func NewTxn(ctx context.Context, params Parameters, request *etcdserverpb.TxnRequest) *Unary[*etcdserverpb.TxnResponse] {
	return newTxnAction(ctx, KindTxn, params, request, failWith(errors.CompareFailed, errors.ErrCompareFailed))
}

// NewSet writes a key whether or not it exists, reading it back in the same round trip
func NewSet(ctx context.Context, params Parameters) *Unary[*etcdserverpb.TxnResponse] {
	tx := txn.NewKeyed(params.Key)
	tx.InitCompare(txn.Equal, txn.Version)
	tx.SetupBasicCreateSequence(params.Key, params.Value, params.LeaseID)
	tx.SetupSetFailureOperation(params.Key, params.Value, params.LeaseID)
	return newTxnAction(ctx, KindSet, params, mustRequest(tx), nil)
}

// NewCreate writes a key only when it does not exist yet
func NewCreate(ctx context.Context, params Parameters) *Unary[*etcdserverpb.TxnResponse] {
	tx := txn.NewKeyed(params.Key)
	tx.InitCompare(txn.Equal, txn.Version)
	tx.SetupBasicCreateSequence(params.Key, params.Value, params.LeaseID)
	tx.SetupBasicFailureOperation(params.Key)
	return newTxnAction(ctx, KindCreate, params, mustRequest(tx), failWith(errors.KeyAlreadyExists, errors.ErrKeyAlreadyExists))
}

// NewUpdate writes a key only when it already exists
func NewUpdate(ctx context.Context, params Parameters) *Unary[*etcdserverpb.TxnResponse] {
	tx := txn.NewKeyed(params.Key)
	tx.InitCompare(txn.Greater, txn.Version)
	tx.SetupCompareAndSwapSequence(params.Value, params.LeaseID)
	return newTxnAction(ctx, KindUpdate, params, mustRequest(tx), failWith(errors.KeyNotFound, errors.ErrKeyNotFound))
}

// NewCompareAndSwap writes a key when its value equals params.OldValue or,
// when params.OldRevision is set, when its mod revision equals it.
func NewCompareAndSwap(ctx context.Context, params Parameters) *Unary[*etcdserverpb.TxnResponse] {
	tx := txn.NewKeyed(params.Key)
	compareCurrent(tx, params)
	tx.SetupCompareAndSwapSequence(params.Value, params.LeaseID)
	tx.SetupBasicFailureOperation(params.Key)
	return newTxnAction(ctx, KindCompareAndSwap, params, mustRequest(tx), failWith(errors.CompareFailed, errors.ErrCompareFailed))
}

// NewCompareAndDelete deletes a key when its value equals params.OldValue or,
// when params.OldRevision is set, when its mod revision equals it.
func NewCompareAndDelete(ctx context.Context, params Parameters) *Unary[*etcdserverpb.TxnResponse] {
	tx := txn.NewKeyed(params.Key)
	compareCurrent(tx, params)
	tx.SetupDeleteSequence(params.Key, "", false)
	tx.SetupDeleteFailureOperation(params.Key, "", false)
	return newTxnAction(ctx, KindCompareAndDelete, params, mustRequest(tx), failWith(errors.CompareFailed, errors.ErrCompareFailed))
}

func compareCurrent(tx *txn.Transaction, params Parameters) {
	if params.OldRevision > 0 {
		tx.InitCompareRevision(params.OldRevision, txn.Equal, txn.Mod)
		return
	}
	tx.InitCompareValue(params.OldValue, txn.Equal)
}

// mustRequest compiles a transaction built locally, which cannot have been consumed
func mustRequest(tx *txn.Transaction) *etcdserverpb.TxnRequest {
	request, err := tx.Request()
	if err != nil {
		panic(err)
	}
	return request
}
