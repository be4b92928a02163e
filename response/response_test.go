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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"

	"github.com/tochemey/etcdclient/errors"
)

func TestResponse(t *testing.T) {
	t.Run("singular accessors mirror the first list entry", func(t *testing.T) {
		result := &Result{
			Values:     []KeyValue{{Key: "/a", Value: "1"}, {Key: "/b", Value: "2"}},
			PrevValues: []KeyValue{{Key: "/a", Value: "0"}},
			Value:      KeyValue{Key: "stale"},
		}
		resp := New(result)
		require.True(t, resp.IsOK())
		assert.Equal(t, "/a", resp.Value().Key)
		assert.Equal(t, "0", resp.PrevValue().Value)
		assert.Equal(t, "2", resp.ValueAt(1).Value)
		assert.Zero(t, resp.ValueAt(5))
	})
	t.Run("response does not observe later mutations", func(t *testing.T) {
		result := &Result{Values: []KeyValue{{Key: "/a"}}, Keys: []string{"/a"}}
		resp := New(result)
		result.Values[0].Key = "/z"
		result.Keys[0] = "/z"
		assert.Equal(t, "/a", resp.Values()[0].Key)
		assert.Equal(t, "/a", resp.Key(0))

		values := resp.Values()
		values[0].Key = "/y"
		assert.Equal(t, "/a", resp.Value().Key)
	})
	t.Run("With members copied in depth", func(t *testing.T) {
		result := &Result{
			Members: []Member{{ID: 1, PeerURLs: []string{"http://a:2380"}, ClientURLs: []string{"http://a:2379"}}},
			Member:  Member{ID: 2, PeerURLs: []string{"http://b:2380"}},
		}
		resp := New(result)
		result.Members[0].PeerURLs[0] = "http://z:2380"
		result.Members[0].ClientURLs[0] = "http://z:2379"
		result.Member.PeerURLs[0] = "http://z:2380"
		assert.Equal(t, "http://a:2380", resp.Members()[0].PeerURLs[0])
		assert.Equal(t, "http://a:2379", resp.Members()[0].ClientURLs[0])
		assert.Equal(t, "http://b:2380", resp.Member().PeerURLs[0])

		members := resp.Members()
		members[0].PeerURLs[0] = "http://y:2380"
		member := resp.Member()
		member.PeerURLs[0] = "http://y:2380"
		assert.Equal(t, "http://a:2380", resp.Members()[0].PeerURLs[0])
		assert.Equal(t, "http://b:2380", resp.Member().PeerURLs[0])
	})
	t.Run("single value without list", func(t *testing.T) {
		resp := New(&Result{Value: KeyValue{Key: "/k", Value: "v"}})
		assert.Equal(t, "v", resp.ValueAt(0).Value)
		assert.Empty(t, resp.Values())
	})
	t.Run("errors", func(t *testing.T) {
		resp := New(Failed(errors.KeyNotFound, "key not found"))
		require.False(t, resp.IsOK())
		assert.Equal(t, errors.KeyNotFound, resp.ErrorCode())
		require.ErrorIs(t, resp.Err(), errors.ErrKeyNotFound)

		resp = New(nil)
		require.ErrorIs(t, resp.Err(), errors.ErrActionCancelled)
	})
}

func TestResultSetError(t *testing.T) {
	result := new(Result)
	result.SetError(errors.OK, "ignored")
	require.True(t, result.OK())

	result.SetError(errors.CompareFailed, "first")
	result.SetError(errors.KeyNotFound, "second")
	result.SetError(errors.Unavailable, "")
	assert.Equal(t, errors.CompareFailed, result.ErrorCode)
	assert.Equal(t, "first\nsecond", result.ErrorMessage)
}

func TestConversions(t *testing.T) {
	kv := &mvccpb.KeyValue{Key: []byte("/k"), Value: []byte("v"), CreateRevision: 2, ModRevision: 3, Version: 2, Lease: 9}
	converted := FromKV(kv)
	assert.Equal(t, KeyValue{Key: "/k", Value: "v", CreateRevision: 2, ModRevision: 3, Version: 2, Lease: 9}, converted)
	assert.True(t, FromKV(nil).IsZero())

	event := FromEvent(&mvccpb.Event{Type: mvccpb.DELETE, Kv: kv, PrevKv: kv})
	assert.Equal(t, EventDelete, event.Type)
	assert.Equal(t, "DELETE", event.Type.String())
	assert.Equal(t, "/k", event.PrevKV.Key)
	assert.Equal(t, "PUT", FromEvent(&mvccpb.Event{Kv: kv}).Type.String())
}
