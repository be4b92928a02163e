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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/etcdtest"
	"github.com/tochemey/etcdclient/internal/grpcc"
	"github.com/tochemey/etcdclient/response"
)

type harness struct {
	server *etcdtest.Server
	stubs  Stubs
}

func newHarness(t *testing.T, opts ...etcdtest.Option) *harness {
	t.Helper()
	server, err := etcdtest.Start(opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpcc.NewConn([]string{server.Endpoint()}).Dial(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return &harness{server: server, stubs: NewStubs(conn)}
}

// newCheckedHarness is newHarness followed, once the server and the
// connection are gone, by a goroutine leak check
func newCheckedHarness(t *testing.T, opts ...etcdtest.Option) *harness {
	t.Helper()
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() {
		goleak.VerifyNone(t, ignore)
	})
	return newHarness(t, opts...)
}

// params returns Parameters wired to the harness stubs
func (h *harness) params(key string) Parameters {
	return Parameters{Stubs: h.stubs, Key: key}
}

func (h *harness) grant(t *testing.T, ttl int64) int64 {
	t.Helper()
	p := h.params("")
	p.TTL = ttl
	r := NewLeaseGrant(context.Background(), p).Result()
	require.True(t, r.OK(), r.ErrorMessage)
	return r.Value.Lease
}

func TestUnary(t *testing.T) {
	ctx := context.Background()

	t.Run("With put then get", func(t *testing.T) {
		h := newHarness(t)
		p := h.params("/a")
		p.Value = "1"

		put := NewPut(ctx, p)
		r := put.Result()
		require.True(t, r.OK(), r.ErrorMessage)
		assert.Equal(t, KindPut.String(), r.Action)
		assert.EqualValues(t, 2, r.Index)
		assert.Equal(t, "1", r.Value.Value)
		assert.EqualValues(t, 2, r.Value.ModRevision)
		assert.True(t, r.PrevValue.IsZero())
		assert.NotEmpty(t, put.ID())
		// results are memoized
		assert.Same(t, r, put.Result())

		p.Value = "2"
		r = NewPut(ctx, p).Result()
		require.True(t, r.OK())
		assert.Equal(t, "1", r.PrevValue.Value)

		r = NewGet(ctx, h.params("/a")).Result()
		require.True(t, r.OK())
		assert.Equal(t, "/a", r.Value.Key)
		assert.Equal(t, "2", r.Value.Value)
		assert.EqualValues(t, 2, r.Value.Version)
		assert.EqualValues(t, 1, r.Count)
		assert.EqualValues(t, 0x1000, r.ClusterID)
		assert.Positive(t, r.Duration)
	})
	t.Run("With a missing key", func(t *testing.T) {
		h := newHarness(t)
		r := NewGet(ctx, h.params("/missing")).Result()
		assert.Equal(t, errors.KeyNotFound, r.ErrorCode)

		r = NewDelete(ctx, h.params("/missing")).Result()
		assert.Equal(t, errors.KeyNotFound, r.ErrorCode)
	})
	t.Run("With prefix reads and deletes", func(t *testing.T) {
		h := newHarness(t)
		h.server.Put("/dir/b", "b")
		h.server.Put("/dir/a", "a")
		h.server.Put("/dir0", "x")

		p := h.params("/dir/")
		p.WithPrefix = true
		r := NewGet(ctx, p).Result()
		require.True(t, r.OK())
		assert.Equal(t, []string{"/dir/a", "/dir/b"}, r.Keys)
		assert.Equal(t, "a", r.Values[0].Value)
		assert.EqualValues(t, 2, r.Count)

		p.KeysOnly = true
		r = NewGet(ctx, p).Result()
		require.True(t, r.OK())
		assert.Equal(t, []string{"/dir/a", "/dir/b"}, r.Keys)
		assert.Empty(t, r.Values[0].Value)

		p.KeysOnly = false
		p.CountOnly = true
		r = NewGet(ctx, p).Result()
		require.True(t, r.OK())
		assert.Empty(t, r.Values)
		assert.EqualValues(t, 2, r.Count)

		p.CountOnly = false
		r = NewDelete(ctx, p).Result()
		require.True(t, r.OK())
		assert.Len(t, r.PrevValues, 2)

		// an empty prefix is not an error
		r = NewGet(ctx, p).Result()
		require.True(t, r.OK())
		assert.Empty(t, r.Values)

		r = NewDelete(ctx, p).Result()
		require.True(t, r.OK())

		_, ok := h.server.Get("/dir0")
		assert.True(t, ok)
	})
	t.Run("With an explicit range end", func(t *testing.T) {
		h := newHarness(t)
		for _, key := range []string{"a", "b", "c"} {
			h.server.Put(key, key)
		}
		p := h.params("a")
		p.RangeEnd = "c"
		r := NewGet(ctx, p).Result()
		require.True(t, r.OK())
		assert.Equal(t, []string{"a", "b"}, r.Keys)

		p.Limit = 1
		r = NewGet(ctx, p).Result()
		require.True(t, r.OK())
		assert.Equal(t, []string{"a"}, r.Keys)
	})
	t.Run("With a revision read and compaction", func(t *testing.T) {
		h := newHarness(t)
		h.server.Put("/r", "1")
		h.server.Put("/r", "2")

		p := h.params("/r")
		p.Revision = 2
		r := NewGet(ctx, p).Result()
		require.True(t, r.OK())
		assert.Equal(t, "1", r.Value.Value)

		require.NoError(t, h.server.Compact(3))
		r = NewGet(ctx, p).Result()
		assert.Equal(t, errors.OutOfRange, r.ErrorCode)
		assert.Contains(t, r.ErrorMessage, "compacted")
	})
	t.Run("With head", func(t *testing.T) {
		h := newHarness(t)
		h.server.Put("/a", "1")
		h.server.Put("/b", "1")
		r := NewHead(ctx, h.params("")).Result()
		require.True(t, r.OK())
		assert.EqualValues(t, 3, r.Index)
		assert.Equal(t, KindHead.String(), r.Action)
	})
	t.Run("With a cancelled context", func(t *testing.T) {
		h := newHarness(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		r := NewGet(cancelled, h.params("/a")).Result()
		assert.Equal(t, errors.Canceled, r.ErrorCode)
	})
	t.Run("With a timeout", func(t *testing.T) {
		h := newHarness(t)
		lease := h.grant(t, 30)
		other := h.grant(t, 30)

		p := h.params("")
		p.Name = "/locks/t"
		p.LeaseID = lease
		require.True(t, NewLock(ctx, p).Result().OK())

		p.LeaseID = other
		p.Timeout = 100 * time.Millisecond
		start := time.Now()
		r := NewLock(ctx, p).Result()
		assert.Equal(t, errors.DeadlineExceeded, r.ErrorCode)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
	t.Run("With an auth token", func(t *testing.T) {
		h := newHarness(t)
		p := h.params("/a")
		p.AuthToken = "token-1"
		NewGet(ctx, p).Result()
		assert.Equal(t, []string{"token-1"}, h.server.Tokens())
	})
}

func TestLeaseActions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p := h.params("")
	p.TTL = 10
	r := NewLeaseGrant(ctx, p).Result()
	require.True(t, r.OK())
	lease := r.Value.Lease
	assert.NotZero(t, lease)
	assert.EqualValues(t, 10, r.Value.TTL)

	p = h.params("/leased")
	p.Value = "v"
	p.LeaseID = lease
	require.True(t, NewPut(ctx, p).Result().OK())

	p = h.params("")
	p.LeaseID = lease
	r = NewLeaseTimeToLive(ctx, p).Result()
	require.True(t, r.OK())
	assert.EqualValues(t, 10, r.GrantedTTL)
	assert.Equal(t, []string{"/leased"}, r.Keys)

	r = NewLeaseLeases(ctx, h.params("")).Result()
	require.True(t, r.OK())
	assert.Equal(t, []int64{lease}, r.Leases)

	r = NewLeaseRevoke(ctx, p).Result()
	require.True(t, r.OK())
	_, ok := h.server.Get("/leased")
	assert.False(t, ok)

	r = NewLeaseRevoke(ctx, p).Result()
	assert.Equal(t, errors.NotFound, r.ErrorCode)

	r = NewLeaseTimeToLive(ctx, p).Result()
	assert.Equal(t, errors.NotFound, r.ErrorCode)
}

func TestLockActions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lease := h.grant(t, 30)

	p := h.params("")
	p.Name = "/locks/l"
	p.LeaseID = lease
	r := NewLock(ctx, p).Result()
	require.True(t, r.OK(), r.ErrorMessage)
	assert.Contains(t, r.LockKey, "/locks/l/")
	_, ok := h.server.Get(r.LockKey)
	assert.True(t, ok)

	p = h.params(r.LockKey)
	require.True(t, NewUnlock(ctx, p).Result().OK())
	_, ok = h.server.Get(r.LockKey)
	assert.False(t, ok)

	p = h.params("")
	p.Name = "/locks/l"
	p.LeaseID = 0x999
	r = NewLock(ctx, p).Result()
	assert.Equal(t, errors.NotFound, r.ErrorCode)
}

func TestElectionActions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p := h.params("")
	p.Name = "/election"
	r := NewLeader(ctx, p).Result()
	assert.Equal(t, errors.NotFound, r.ErrorCode)

	p.LeaseID = h.grant(t, 30)
	p.Value = "first"
	r = NewCampaign(ctx, p).Result()
	require.True(t, r.OK(), r.ErrorMessage)
	leader := r.Leader
	assert.Equal(t, "/election", leader.Name)
	assert.Equal(t, p.LeaseID, leader.Lease)
	assert.Equal(t, "first", r.Value.Value)

	p = h.params("")
	p.Leader = leader
	p.Value = "second"
	require.True(t, NewProclaim(ctx, p).Result().OK())

	p = h.params("")
	p.Name = "/election"
	r = NewLeader(ctx, p).Result()
	require.True(t, r.OK())
	assert.Equal(t, "second", r.Value.Value)

	p = h.params("")
	p.Leader = leader
	require.True(t, NewResign(ctx, p).Result().OK())

	p.Value = "third"
	r = NewProclaim(ctx, p).Result()
	assert.Equal(t, errors.FailedPrecondition, r.ErrorCode)
}

func TestMemberActions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	r := NewListMember(ctx, h.params("")).Result()
	require.True(t, r.OK())
	require.Len(t, r.Members, 1)

	p := h.params("")
	p.PeerURLs = []string{"http://10.0.0.9:2380"}
	p.IsLearner = true
	r = NewAddMember(ctx, p).Result()
	require.True(t, r.OK())
	assert.True(t, r.Member.IsLearner)
	assert.Len(t, r.Members, 2)

	p = h.params("")
	p.MemberID = r.Member.ID
	r = NewRemoveMember(ctx, p).Result()
	require.True(t, r.OK())
	assert.Len(t, r.Members, 1)

	r = NewRemoveMember(ctx, p).Result()
	assert.Equal(t, errors.NotFound, r.ErrorCode)
	assert.Equal(t, []response.Member(nil), r.Members)
}
