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

// Package txn builds etcd transactions: a list of compare conditions
// evaluated against the active key, a success branch and a failure branch.
//
// A Transaction is not safe for concurrent use. It is consumed once, when the
// compiled request is handed over to the action issuing it.
package txn

import (
	"go.etcd.io/etcd/api/v3/etcdserverpb"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/keyrange"
)

// CompareResult is the comparison operator of a condition
type CompareResult int

const (
	Equal CompareResult = iota
	Greater
	Less
	NotEqual
)

// CompareTarget is the key field a condition inspects
type CompareTarget int

const (
	Version CompareTarget = iota
	Create
	Mod
	Value
	Lease
)

// Transaction is a compare-then-act request under construction
type Transaction struct {
	key      []byte
	request  *etcdserverpb.TxnRequest
	consumed bool
}

// New creates an empty Transaction
func New() *Transaction {
	return &Transaction{request: new(etcdserverpb.TxnRequest)}
}

// NewKeyed creates a Transaction whose active key is key
func NewKeyed(key string) *Transaction {
	t := New()
	t.ResetKey(key)
	return t
}

// ResetKey sets the active key used by the InitCompare family
func (t *Transaction) ResetKey(key string) {
	t.key = []byte(key)
}

// InitCompare adds a condition comparing the active key's target field to zero.
// InitCompare(Equal, Version) holds when the key does not exist.
func (t *Transaction) InitCompare(result CompareResult, target CompareTarget) {
	if target == Value {
		t.InitCompareValue("", result)
		return
	}
	t.InitCompareRevision(0, result, target)
}

// InitCompareValue adds a condition comparing the active key's value
func (t *Transaction) InitCompareValue(value string, result CompareResult) {
	t.addCompare(t.key, nil, result, Value, []byte(value), 0)
}

// InitCompareRevision adds a condition comparing one of the active key's
// version, create revision, mod revision or lease to operand.
func (t *Transaction) InitCompareRevision(operand int64, result CompareResult, target CompareTarget) {
	t.addCompare(t.key, nil, result, target, nil, operand)
}

// AddCompareVersion adds a version condition on key
func (t *Transaction) AddCompareVersion(key string, result CompareResult, version int64) {
	t.addCompare([]byte(key), nil, result, Version, nil, version)
}

// AddCompareCreate adds a create revision condition on key
func (t *Transaction) AddCompareCreate(key string, result CompareResult, revision int64) {
	t.addCompare([]byte(key), nil, result, Create, nil, revision)
}

// AddCompareMod adds a mod revision condition on key
func (t *Transaction) AddCompareMod(key string, result CompareResult, revision int64) {
	t.addCompare([]byte(key), nil, result, Mod, nil, revision)
}

// AddCompareValue adds a value condition on key
func (t *Transaction) AddCompareValue(key string, result CompareResult, value string) {
	t.addCompare([]byte(key), nil, result, Value, []byte(value), 0)
}

// AddCompareLease adds a lease condition on key
func (t *Transaction) AddCompareLease(key string, result CompareResult, lease int64) {
	t.addCompare([]byte(key), nil, result, Lease, nil, lease)
}

// SetupBasicCreateSequence puts key and reads it back on success
func (t *Transaction) SetupBasicCreateSequence(key, value string, leaseID int64) {
	t.AddSuccessPut(key, value, leaseID, false)
	t.AddSuccessRange(key, "", false, 0)
}

// SetupBasicFailureOperation reads key back on failure
func (t *Transaction) SetupBasicFailureOperation(key string) {
	t.AddFailureRange(key, "", false, 0)
}

// SetupSetFailureOperation overwrites key and reads it back on failure,
// reporting the overwritten value.
func (t *Transaction) SetupSetFailureOperation(key, value string, leaseID int64) {
	t.AddFailurePut(key, value, leaseID, true)
	t.AddFailureRange(key, "", false, 0)
}

// SetupCompareAndSwapSequence puts the active key and reads it back on success,
// reporting the previous value.
func (t *Transaction) SetupCompareAndSwapSequence(value string, leaseID int64) {
	key := string(t.key)
	t.AddSuccessPut(key, value, leaseID, true)
	t.AddSuccessRange(key, "", false, 0)
}

// SetupDeleteSequence deletes key, or the range it selects, on success
// and reports the deleted values.
func (t *Transaction) SetupDeleteSequence(key, rangeEnd string, recursive bool) {
	t.AddSuccessDelete(key, rangeEnd, recursive, true)
}

// SetupDeleteFailureOperation reads key, or the range it selects, on failure.
// Recursive reads are sorted by key.
func (t *Transaction) SetupDeleteFailureOperation(key, rangeEnd string, recursive bool) {
	t.AddFailureRange(key, rangeEnd, recursive, 0)
}

// SetupPut puts key on success without reading it back
func (t *Transaction) SetupPut(key, value string) {
	t.AddSuccessPut(key, value, 0, false)
}

// SetupDelete deletes key, or the range it selects, on success without reporting previous values
func (t *Transaction) SetupDelete(key, rangeEnd string, recursive bool) {
	t.AddSuccessDelete(key, rangeEnd, recursive, false)
}

// AddSuccessRange appends a range read to the success branch
func (t *Transaction) AddSuccessRange(key, rangeEnd string, recursive bool, limit int64) {
	t.request.Success = append(t.request.Success, rangeOp(key, rangeEnd, recursive, limit))
}

// AddSuccessPut appends a put to the success branch
func (t *Transaction) AddSuccessPut(key, value string, leaseID int64, prevKV bool) {
	t.request.Success = append(t.request.Success, putOp(key, value, leaseID, prevKV))
}

// AddSuccessDelete appends a delete to the success branch
func (t *Transaction) AddSuccessDelete(key, rangeEnd string, recursive, prevKV bool) {
	t.request.Success = append(t.request.Success, deleteOp(key, rangeEnd, recursive, prevKV))
}

// AddSuccessTxn nests sub in the success branch. sub is consumed.
func (t *Transaction) AddSuccessTxn(sub *Transaction) error {
	op, err := txnOp(sub)
	if err != nil {
		return err
	}
	t.request.Success = append(t.request.Success, op)
	return nil
}

// AddFailureRange appends a range read to the failure branch
func (t *Transaction) AddFailureRange(key, rangeEnd string, recursive bool, limit int64) {
	t.request.Failure = append(t.request.Failure, rangeOp(key, rangeEnd, recursive, limit))
}

// AddFailurePut appends a put to the failure branch
func (t *Transaction) AddFailurePut(key, value string, leaseID int64, prevKV bool) {
	t.request.Failure = append(t.request.Failure, putOp(key, value, leaseID, prevKV))
}

// AddFailureDelete appends a delete to the failure branch
func (t *Transaction) AddFailureDelete(key, rangeEnd string, recursive, prevKV bool) {
	t.request.Failure = append(t.request.Failure, deleteOp(key, rangeEnd, recursive, prevKV))
}

// AddFailureTxn nests sub in the failure branch. sub is consumed.
func (t *Transaction) AddFailureTxn(sub *Transaction) error {
	op, err := txnOp(sub)
	if err != nil {
		return err
	}
	t.request.Failure = append(t.request.Failure, op)
	return nil
}

// Request hands over the compiled request. It can be called only once.
func (t *Transaction) Request() (*etcdserverpb.TxnRequest, error) {
	if t.consumed {
		return nil, errors.ErrTransactionConsumed
	}
	t.consumed = true
	request := t.request
	t.request = nil
	return request, nil
}

func (t *Transaction) addCompare(key, rangeEnd []byte, result CompareResult, target CompareTarget, value []byte, operand int64) {
	compare := &etcdserverpb.Compare{
		Result:   toCompareResult(result),
		Target:   toCompareTarget(target),
		Key:      key,
		RangeEnd: rangeEnd,
	}

	switch target {
	case Version:
		compare.TargetUnion = &etcdserverpb.Compare_Version{Version: operand}
	case Create:
		compare.TargetUnion = &etcdserverpb.Compare_CreateRevision{CreateRevision: operand}
	case Mod:
		compare.TargetUnion = &etcdserverpb.Compare_ModRevision{ModRevision: operand}
	case Value:
		compare.TargetUnion = &etcdserverpb.Compare_Value{Value: value}
	case Lease:
		compare.TargetUnion = &etcdserverpb.Compare_Lease{Lease: operand}
	}

	t.request.Compare = append(t.request.Compare, compare)
}

func rangeOp(key, rangeEnd string, recursive bool, limit int64) *etcdserverpb.RequestOp {
	k, end := keyrange.Resolve(key, rangeEnd, recursive)
	request := &etcdserverpb.RangeRequest{Key: k, RangeEnd: end, Limit: limit}
	if recursive {
		request.SortOrder = etcdserverpb.RangeRequest_ASCEND
		request.SortTarget = etcdserverpb.RangeRequest_KEY
	}
	return &etcdserverpb.RequestOp{Request: &etcdserverpb.RequestOp_RequestRange{RequestRange: request}}
}

func putOp(key, value string, leaseID int64, prevKV bool) *etcdserverpb.RequestOp {
	return &etcdserverpb.RequestOp{Request: &etcdserverpb.RequestOp_RequestPut{RequestPut: &etcdserverpb.PutRequest{
		Key:    []byte(key),
		Value:  []byte(value),
		Lease:  leaseID,
		PrevKv: prevKV,
	}}}
}

func deleteOp(key, rangeEnd string, recursive, prevKV bool) *etcdserverpb.RequestOp {
	k, end := keyrange.Resolve(key, rangeEnd, recursive)
	return &etcdserverpb.RequestOp{Request: &etcdserverpb.RequestOp_RequestDeleteRange{RequestDeleteRange: &etcdserverpb.DeleteRangeRequest{
		Key:      k,
		RangeEnd: end,
		PrevKv:   prevKV,
	}}}
}

func txnOp(sub *Transaction) (*etcdserverpb.RequestOp, error) {
	request, err := sub.Request()
	if err != nil {
		return nil, err
	}
	return &etcdserverpb.RequestOp{Request: &etcdserverpb.RequestOp_RequestTxn{RequestTxn: request}}, nil
}

func toCompareResult(result CompareResult) etcdserverpb.Compare_CompareResult {
	switch result {
	case Greater:
		return etcdserverpb.Compare_GREATER
	case Less:
		return etcdserverpb.Compare_LESS
	case NotEqual:
		return etcdserverpb.Compare_NOT_EQUAL
	default:
		return etcdserverpb.Compare_EQUAL
	}
}

func toCompareTarget(target CompareTarget) etcdserverpb.Compare_CompareTarget {
	switch target {
	case Create:
		return etcdserverpb.Compare_CREATE
	case Mod:
		return etcdserverpb.Compare_MOD
	case Value:
		return etcdserverpb.Compare_VALUE
	case Lease:
		return etcdserverpb.Compare_LEASE
	default:
		return etcdserverpb.Compare_VERSION
	}
}
