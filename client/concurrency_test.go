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
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/etcdclient/errors"
)

func TestLock(t *testing.T) {
	ctx := context.Background()

	t.Run("With a client granted lease", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)

		resp := awaitOK(t, client.Lock(ctx, "/jobs"))
		key := resp.LockKey()
		assert.True(t, strings.HasPrefix(key, "/jobs/"))
		assert.Equal(t, "lock", resp.Action())

		leases := server.Leases()
		require.Len(t, leases, 1)
		assert.True(t, client.scheduler.Tracked(leases[0]))
		leaseID, ok := client.lockLeases.Get(key)
		require.True(t, ok)
		assert.Equal(t, leases[0], leaseID)

		// the lease carries the configured lock TTL
		ttl := awaitOK(t, client.LeaseTimeToLive(ctx, leaseID))
		assert.EqualValues(t, 10, ttl.GrantedTTL())

		awaitOK(t, client.Unlock(ctx, key))
		assert.Empty(t, server.Leases())
		assert.False(t, client.scheduler.Tracked(leaseID))
		assert.Zero(t, client.lockLeases.Len())
		_, held := server.Get(key)
		assert.False(t, held)
	})
	t.Run("With a contended lock", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server, WithLockTTL(2*time.Second))

		first := awaitOK(t, client.Lock(ctx, "/mutex"))
		waiting := client.Lock(ctx, "/mutex")
		select {
		case <-waiting.Done():
			t.Fatal("lock acquired while held")
		case <-time.After(300 * time.Millisecond):
		}

		awaitOK(t, client.Unlock(ctx, first.LockKey()))
		second := awaitOK(t, waiting)
		assert.NotEqual(t, first.LockKey(), second.LockKey())
		assert.Len(t, server.Leases(), 1)
	})
	t.Run("With a lock held past its lease TTL", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server, WithLockTTL(time.Second))

		resp := awaitOK(t, client.Lock(ctx, "/long"))
		time.Sleep(2500 * time.Millisecond)

		_, held := server.Get(resp.LockKey())
		assert.True(t, held)
		awaitOK(t, client.Unlock(ctx, resp.LockKey()))
	})
	t.Run("With a timed out lock", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)
		awaitOK(t, client.Lock(ctx, "/busy"))

		resp := await(t, client.Lock(ctx, "/busy", WithTimeout(200*time.Millisecond)))
		assert.Equal(t, errors.DeadlineExceeded, resp.ErrorCode())

		// the lease granted for the failed attempt is revoked
		require.Eventually(t, func() bool {
			return len(server.Leases()) == 1
		}, 5*time.Second, 20*time.Millisecond)
		assert.Equal(t, 1, client.lockLeases.Len())
	})
	t.Run("With a caller lease", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)
		leaseID := awaitOK(t, client.LeaseGrant(ctx, 30)).Value().Lease

		resp := awaitOK(t, client.LockWithLease(ctx, "/owned", leaseID))
		assert.True(t, strings.HasPrefix(resp.LockKey(), "/owned/"))
		assert.False(t, client.scheduler.Tracked(leaseID))
		assert.Zero(t, client.lockLeases.Len())

		awaitOK(t, client.Unlock(ctx, resp.LockKey()))
		assert.Equal(t, []int64{leaseID}, server.Leases())
	})
	t.Run("With a missing lease", func(t *testing.T) {
		client := newTestClient(t, startServer(t))
		resp := await(t, client.LockWithLease(ctx, "/owned", 0x404))
		assert.Equal(t, errors.NotFound, resp.ErrorCode())
	})
}

func TestElection(t *testing.T) {
	ctx := context.Background()

	t.Run("With a full term", func(t *testing.T) {
		client := newTestClient(t, startServer(t))
		leaseID := awaitOK(t, client.LeaseGrant(ctx, 30)).Value().Lease

		resp := await(t, client.Leader(ctx, "/election"))
		assert.Equal(t, errors.NotFound, resp.ErrorCode())

		campaign := awaitOK(t, client.Campaign(ctx, "/election", "a", leaseID))
		leader := campaign.Leader()
		assert.Equal(t, "/election", leader.Name)
		assert.Equal(t, leaseID, leader.Lease)
		assert.True(t, strings.HasPrefix(leader.Key, "/election/"))
		assert.Equal(t, "a", campaign.Value().Value)

		assert.Equal(t, "a", awaitOK(t, client.Leader(ctx, "/election")).Value().Value)

		awaitOK(t, client.Proclaim(ctx, leader, "b"))
		current := awaitOK(t, client.Leader(ctx, "/election")).Value()
		assert.Equal(t, "b", current.Value)
		assert.Equal(t, leader.Key, current.Key)

		awaitOK(t, client.Resign(ctx, leader))
		resp = await(t, client.Leader(ctx, "/election"))
		assert.Equal(t, errors.NotFound, resp.ErrorCode())

		resp = await(t, client.Proclaim(ctx, leader, "c"))
		assert.Equal(t, errors.FailedPrecondition, resp.ErrorCode())
	})
	t.Run("With a queued candidate", func(t *testing.T) {
		client := newTestClient(t, startServer(t))
		first := awaitOK(t, client.LeaseGrant(ctx, 30)).Value().Lease
		second := awaitOK(t, client.LeaseGrant(ctx, 30)).Value().Lease

		leader := awaitOK(t, client.Campaign(ctx, "/e", "a", first)).Leader()
		pending := client.Campaign(ctx, "/e", "b", second)
		select {
		case <-pending.Done():
			t.Fatal("two leaders elected")
		case <-time.After(300 * time.Millisecond):
		}

		awaitOK(t, client.Resign(ctx, leader))
		next := awaitOK(t, pending)
		assert.Equal(t, second, next.Leader().Lease)
		assert.Equal(t, "b", awaitOK(t, client.Leader(ctx, "/e")).Value().Value)
	})
}

func TestCluster(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, startServer(t))

	members := awaitOK(t, client.ListMember(ctx)).Members()
	require.Len(t, members, 1)
	assert.Equal(t, "default", members[0].Name)

	added := awaitOK(t, client.AddMember(ctx, []string{"http://10.0.0.2:2380"}, true)).Member()
	assert.True(t, added.IsLearner)
	assert.Equal(t, []string{"http://10.0.0.2:2380"}, added.PeerURLs)
	assert.Len(t, awaitOK(t, client.ListMember(ctx)).Members(), 2)

	resp := await(t, client.AddMember(ctx, []string{"http://10.0.0.2:2380"}, false))
	assert.False(t, resp.IsOK())

	awaitOK(t, client.RemoveMember(ctx, added.ID))
	assert.Len(t, awaitOK(t, client.ListMember(ctx)).Members(), 1)

	resp = await(t, client.RemoveMember(ctx, added.ID))
	assert.Equal(t, errors.NotFound, resp.ErrorCode())
}
