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
	"fmt"
	"sync"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/future"
	"github.com/tochemey/etcdclient/internal/action"
	"github.com/tochemey/etcdclient/response"
)

// LeaseGrant grants a lease of ttl seconds. The lease id is carried by
// Value().Lease and the granted TTL by Value().TTL.
// WithLease requests a specific lease id.
func (c *Client) LeaseGrant(ctx context.Context, ttl int64, opts ...CallOption) future.Future[*response.Response] {
	if ttl <= 0 {
		return future.Completed[*response.Response](nil, errors.ErrInvalidTTL)
	}
	p := c.params("", opts)
	p.TTL = ttl
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewLeaseGrant(ctx, p).Result()
	})
}

// LeaseRevoke revokes leaseID and deletes every key attached to it
func (c *Client) LeaseRevoke(ctx context.Context, leaseID int64, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.LeaseID = leaseID
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewLeaseRevoke(ctx, p).Result()
	})
}

// LeaseTimeToLive reads the remaining TTL of leaseID, its granted TTL and
// the keys attached to it
func (c *Client) LeaseTimeToLive(ctx context.Context, leaseID int64, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.LeaseID = leaseID
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewLeaseTimeToLive(ctx, p).Result()
	})
}

// LeaseLeases lists the active leases
func (c *Client) LeaseLeases(ctx context.Context, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewLeaseLeases(ctx, p).Result()
	})
}

// LeaseKeepAliveOnce refreshes leaseID once over a dedicated stream
func (c *Client) LeaseKeepAliveOnce(ctx context.Context, leaseID int64, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		stream := action.NewKeepAlive(ctx, p)
		defer stream.Cancel()
		return stream.Refresh(leaseID)
	})
}

// KeepAlive is a lease kept alive by the client until it is cancelled or
// the client is closed
type KeepAlive struct {
	client  *Client
	leaseID int64
	ttl     int64
	once    sync.Once
	done    chan struct{}
}

// KeepAlive grants a lease of ttl seconds and refreshes it every third of its TTL
func (c *Client) KeepAlive(ctx context.Context, ttl int64, opts ...CallOption) (*KeepAlive, error) {
	grant, err := c.LeaseGrant(ctx, ttl, opts...).Await(ctx)
	if err != nil {
		return nil, err
	}
	if err := grant.Err(); err != nil {
		return nil, err
	}

	leaseID := grant.Value().Lease
	if err := c.scheduler.Add(leaseID, refreshInterval(grant.Value().TTL)); err != nil {
		_, _ = c.LeaseRevoke(ctx, leaseID).Await(ctx)
		return nil, fmt.Errorf("failed to keep lease %x alive: %w", leaseID, err)
	}

	handle := &KeepAlive{
		client:  c,
		leaseID: leaseID,
		ttl:     grant.Value().TTL,
		done:    make(chan struct{}),
	}
	c.track(fmt.Sprintf("lease-%x", leaseID), handle)
	return handle, nil
}

// ID returns the lease id
func (k *KeepAlive) ID() int64 {
	return k.leaseID
}

// TTL returns the TTL the lease was granted with
func (k *KeepAlive) TTL() int64 {
	return k.ttl
}

// Alive reports whether the lease is still being refreshed. It turns false
// once cancelled or when the server reports the lease gone.
func (k *KeepAlive) Alive() bool {
	return k.client.scheduler.Tracked(k.leaseID)
}

// Cancel stops refreshing the lease and leaves it to expire.
// It is safe to call any number of times.
func (k *KeepAlive) Cancel() {
	k.once.Do(func() {
		_ = k.client.scheduler.Remove(context.Background(), k.leaseID, false)
		close(k.done)
	})
}

// Revoke stops refreshing the lease and revokes it
func (k *KeepAlive) Revoke(ctx context.Context) error {
	k.Cancel()
	revoked, err := k.client.LeaseRevoke(ctx, k.leaseID).Await(ctx)
	if err != nil {
		return err
	}
	return revoked.Err()
}

// Done is closed once the lease is no longer refreshed by this handle
func (k *KeepAlive) Done() <-chan struct{} {
	return k.done
}
