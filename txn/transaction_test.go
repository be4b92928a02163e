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

package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/etcdserverpb"

	"github.com/tochemey/etcdclient/errors"
)

func TestTransaction(t *testing.T) {
	t.Run("compares follow the active key", func(t *testing.T) {
		tx := NewKeyed("/a")
		tx.InitCompare(Equal, Version)
		tx.ResetKey("/b")
		tx.InitCompareValue("old", NotEqual)
		tx.InitCompareRevision(7, Equal, Mod)

		request, err := tx.Request()
		require.NoError(t, err)
		require.Len(t, request.Compare, 3)

		first := request.Compare[0]
		assert.Equal(t, "/a", string(first.Key))
		assert.Equal(t, etcdserverpb.Compare_EQUAL, first.Result)
		assert.Equal(t, etcdserverpb.Compare_VERSION, first.Target)
		assert.EqualValues(t, 0, first.GetVersion())

		second := request.Compare[1]
		assert.Equal(t, "/b", string(second.Key))
		assert.Equal(t, etcdserverpb.Compare_NOT_EQUAL, second.Result)
		assert.Equal(t, "old", string(second.GetValue()))

		third := request.Compare[2]
		assert.Equal(t, etcdserverpb.Compare_MOD, third.Target)
		assert.EqualValues(t, 7, third.GetModRevision())
	})
	t.Run("basic create sequence", func(t *testing.T) {
		tx := NewKeyed("/k")
		tx.InitCompare(Equal, Version)
		tx.SetupBasicCreateSequence("/k", "v", 42)
		tx.SetupBasicFailureOperation("/k")

		request, err := tx.Request()
		require.NoError(t, err)
		require.Len(t, request.Success, 2)
		put := request.Success[0].GetRequestPut()
		require.NotNil(t, put)
		assert.Equal(t, "v", string(put.Value))
		assert.EqualValues(t, 42, put.Lease)
		assert.False(t, put.PrevKv)
		get := request.Success[1].GetRequestRange()
		require.NotNil(t, get)
		assert.Empty(t, get.RangeEnd)

		require.Len(t, request.Failure, 1)
		assert.NotNil(t, request.Failure[0].GetRequestRange())
	})
	t.Run("set failure operation reports the previous value", func(t *testing.T) {
		tx := NewKeyed("/k")
		tx.SetupSetFailureOperation("/k", "v", 0)
		request, err := tx.Request()
		require.NoError(t, err)
		require.Len(t, request.Failure, 2)
		assert.True(t, request.Failure[0].GetRequestPut().PrevKv)
	})
	t.Run("compare and swap uses the active key", func(t *testing.T) {
		tx := NewKeyed("/cas")
		tx.InitCompareValue("old", Equal)
		tx.SetupCompareAndSwapSequence("new", 3)
		request, err := tx.Request()
		require.NoError(t, err)
		put := request.Success[0].GetRequestPut()
		assert.Equal(t, "/cas", string(put.Key))
		assert.True(t, put.PrevKv)
		assert.EqualValues(t, 3, put.Lease)
		assert.Equal(t, "/cas", string(request.Success[1].GetRequestRange().Key))
	})
	t.Run("recursive delete sequence", func(t *testing.T) {
		tx := NewKeyed("/dir/")
		tx.SetupDeleteSequence("/dir/", "", true)
		tx.SetupDeleteFailureOperation("/dir/", "", true)
		request, err := tx.Request()
		require.NoError(t, err)

		del := request.Success[0].GetRequestDeleteRange()
		assert.Equal(t, "/dir0", string(del.RangeEnd))
		assert.True(t, del.PrevKv)

		get := request.Failure[0].GetRequestRange()
		assert.Equal(t, "/dir0", string(get.RangeEnd))
		assert.Equal(t, etcdserverpb.RangeRequest_ASCEND, get.SortOrder)
		assert.Equal(t, etcdserverpb.RangeRequest_KEY, get.SortTarget)
	})
	t.Run("explicit range end", func(t *testing.T) {
		tx := New()
		tx.SetupDelete("/a", "/c", false)
		request, err := tx.Request()
		require.NoError(t, err)
		del := request.Success[0].GetRequestDeleteRange()
		assert.Equal(t, "/c", string(del.RangeEnd))
		assert.False(t, del.PrevKv)
	})
	t.Run("minimal put", func(t *testing.T) {
		tx := New()
		tx.SetupPut("/a", "1")
		request, err := tx.Request()
		require.NoError(t, err)
		require.Len(t, request.Success, 1)
		assert.False(t, request.Success[0].GetRequestPut().PrevKv)
	})
	t.Run("nested transactions", func(t *testing.T) {
		sub := NewKeyed("/inner")
		sub.InitCompare(Greater, Version)
		sub.SetupPut("/inner", "x")

		tx := New()
		tx.AddCompareLease("/outer", Equal, 0)
		require.NoError(t, tx.AddSuccessTxn(sub))
		require.ErrorIs(t, tx.AddFailureTxn(sub), errors.ErrTransactionConsumed)

		request, err := tx.Request()
		require.NoError(t, err)
		nested := request.Success[0].GetRequestTxn()
		require.NotNil(t, nested)
		assert.Equal(t, etcdserverpb.Compare_GREATER, nested.Compare[0].Result)
		assert.Equal(t, etcdserverpb.Compare_LEASE, request.Compare[0].Target)
	})
	t.Run("generic compares", func(t *testing.T) {
		tx := New()
		tx.AddCompareVersion("/a", Greater, 1)
		tx.AddCompareCreate("/a", Less, 5)
		tx.AddCompareMod("/a", Equal, 4)
		tx.AddCompareValue("/a", Equal, "v")
		tx.InitCompare(Equal, Value)
		request, err := tx.Request()
		require.NoError(t, err)
		require.Len(t, request.Compare, 5)
		assert.EqualValues(t, 5, request.Compare[1].GetCreateRevision())
		assert.Equal(t, etcdserverpb.Compare_LESS, request.Compare[1].Result)
		assert.Equal(t, etcdserverpb.Compare_VALUE, request.Compare[4].Target)
	})
	t.Run("request is consumed once", func(t *testing.T) {
		tx := New()
		_, err := tx.Request()
		require.NoError(t, err)
		_, err = tx.Request()
		require.ErrorIs(t, err, errors.ErrTransactionConsumed)
	})
}
