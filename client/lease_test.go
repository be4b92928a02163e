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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/etcdclient/errors"
)

func TestLease(t *testing.T) {
	ctx := context.Background()

	t.Run("With a key attached to a lease", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)

		grant := awaitOK(t, client.LeaseGrant(ctx, 60))
		leaseID := grant.Value().Lease
		require.NotZero(t, leaseID)
		assert.EqualValues(t, 60, grant.Value().TTL)

		awaitOK(t, client.Set(ctx, "/leased", "v", WithLease(leaseID)))

		resp := awaitOK(t, client.Get(ctx, "/leased"))
		assert.Equal(t, "v", resp.Value().Value)
		assert.Equal(t, leaseID, resp.Value().Lease)
		assert.EqualValues(t, 60, resp.Value().TTL)

		awaitOK(t, client.LeaseRevoke(ctx, leaseID))
		resp = await(t, client.Get(ctx, "/leased"))
		assert.Equal(t, errors.KeyNotFound, resp.ErrorCode())
	})
	t.Run("With an invalid TTL", func(t *testing.T) {
		client := newTestClient(t, startServer(t))
		for _, ttl := range []int64{0, -1} {
			_, err := client.LeaseGrant(ctx, ttl).Await(ctx)
			assert.ErrorIs(t, err, errors.ErrInvalidTTL)
		}
	})
	t.Run("With a requested lease id", func(t *testing.T) {
		client := newTestClient(t, startServer(t))
		resp := awaitOK(t, client.LeaseGrant(ctx, 30, WithLease(0x1234)))
		assert.EqualValues(t, 0x1234, resp.Value().Lease)
	})
	t.Run("With lease queries", func(t *testing.T) {
		client := newTestClient(t, startServer(t))
		leaseID := awaitOK(t, client.LeaseGrant(ctx, 60)).Value().Lease
		awaitOK(t, client.Put(ctx, "/q", "v", WithLease(leaseID)))

		resp := awaitOK(t, client.LeaseTimeToLive(ctx, leaseID))
		assert.EqualValues(t, 60, resp.GrantedTTL())
		assert.Positive(t, resp.Value().TTL)
		assert.Equal(t, []string{"/q"}, resp.Keys())

		assert.Contains(t, awaitOK(t, client.LeaseLeases(ctx)).Leases(), leaseID)

		awaitOK(t, client.LeaseRevoke(ctx, leaseID))
		resp = await(t, client.LeaseTimeToLive(ctx, leaseID))
		assert.Equal(t, errors.NotFound, resp.ErrorCode())
		resp = await(t, client.LeaseRevoke(ctx, leaseID))
		assert.Equal(t, errors.NotFound, resp.ErrorCode())
	})
	t.Run("With a single keepalive", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)
		leaseID := awaitOK(t, client.LeaseGrant(ctx, 60)).Value().Lease

		resp := awaitOK(t, client.LeaseKeepAliveOnce(ctx, leaseID))
		assert.Equal(t, leaseID, resp.Value().Lease)
		assert.EqualValues(t, 60, resp.Value().TTL)
		assert.EqualValues(t, 1, server.Heartbeats())

		resp = await(t, client.LeaseKeepAliveOnce(ctx, 0x999))
		assert.Equal(t, errors.NotFound, resp.ErrorCode())
	})
	t.Run("With a kept alive lease", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)

		handle, err := client.KeepAlive(ctx, 3)
		require.NoError(t, err)
		assert.EqualValues(t, 3, handle.TTL())
		assert.True(t, handle.Alive())

		// refreshed every second, the lease outlives its TTL
		require.Eventually(t, func() bool {
			return server.Heartbeats() >= 4
		}, 8*time.Second, 50*time.Millisecond)
		assert.Contains(t, server.Leases(), handle.ID())

		handle.Cancel()
		handle.Cancel()
		assert.False(t, handle.Alive())
		select {
		case <-handle.Done():
		default:
			t.Fatal("handle not done after cancel")
		}

		require.NoError(t, handle.Revoke(ctx))
		assert.NotContains(t, server.Leases(), handle.ID())
	})
	t.Run("With a lease revoked behind the client", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)

		handle, err := client.KeepAlive(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, server.Revoke(handle.ID()))

		require.Eventually(t, func() bool {
			return !handle.Alive()
		}, 5*time.Second, 50*time.Millisecond)
	})
	t.Run("With refresh timers shared per interval", func(t *testing.T) {
		client := newTestClient(t, startServer(t))

		first, err := client.KeepAlive(ctx, 30)
		require.NoError(t, err)
		second, err := client.KeepAlive(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, 1, client.scheduler.Timers())

		other, err := client.KeepAlive(ctx, 60)
		require.NoError(t, err)
		assert.Equal(t, 2, client.scheduler.Timers())
		other.Cancel()
		assert.Equal(t, 1, client.scheduler.Timers())

		first.Cancel()
		assert.Equal(t, 1, client.scheduler.Timers())
		assert.True(t, second.Alive())

		second.Cancel()
		assert.Zero(t, client.scheduler.Timers())
	})
	t.Run("With concurrent cancellation", func(t *testing.T) {
		client := newTestClient(t, startServer(t))
		handle, err := client.KeepAlive(ctx, 30)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				handle.Cancel()
			}()
		}
		wg.Wait()
		assert.False(t, handle.Alive())
		assert.Zero(t, client.scheduler.Timers())
	})
}
