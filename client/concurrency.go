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
	"slices"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/future"
	"github.com/tochemey/etcdclient/internal/action"
	"github.com/tochemey/etcdclient/response"
)

// Lock acquires the lock name and returns the key owning it, see Response.LockKey.
//
// Without WithLease the client grants a lease of the configured lock TTL,
// keeps it alive while the lock is held and revokes it on Unlock.
// Lock waits until the lock is free or the call times out.
func (c *Client) Lock(ctx context.Context, name string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.Name = name
	lockTTL := ttlSeconds(c.config.LockTTL())

	return c.run(ctx, func(ctx context.Context) *response.Result {
		owned := p.LeaseID == 0
		if owned {
			gp := p
			gp.TTL = lockTTL
			grant := action.NewLeaseGrant(ctx, gp).Result()
			if !grant.OK() {
				return grant
			}

			p.LeaseID = grant.Value.Lease
			if err := c.scheduler.Add(p.LeaseID, refreshInterval(grant.Value.TTL)); err != nil {
				_ = c.scheduler.Remove(context.WithoutCancel(ctx), p.LeaseID, true)
				return response.Failed(errors.ActionCancelled, err.Error())
			}
		}

		result := action.NewLock(ctx, p).Result()
		if !owned {
			return result
		}

		if result.OK() {
			c.lockLeases.Set(result.LockKey, p.LeaseID)
			return result
		}
		c.release(ctx, name, p.LeaseID)
		return result
	})
}

// LockWithLease acquires the lock name on behalf of leaseID.
// The lock is released when the lease expires or on Unlock.
func (c *Client) LockWithLease(ctx context.Context, name string, leaseID int64, opts ...CallOption) future.Future[*response.Response] {
	return c.Lock(ctx, name, append(slices.Clone(opts), WithLease(leaseID))...)
}

// Unlock releases the lock owned by key. The lease the client granted for
// it, if any, is revoked.
func (c *Client) Unlock(ctx context.Context, key string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		result := action.NewUnlock(ctx, p).Result()
		if leaseID, ok := c.lockLeases.GetAndDelete(key); ok {
			c.release(ctx, key, leaseID)
		}
		return result
	})
}

// release stops refreshing the lease of a lock and revokes it
func (c *Client) release(ctx context.Context, lock string, leaseID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.DialTimeout())
	defer cancel()
	if err := c.scheduler.Remove(ctx, leaseID, true); err != nil {
		c.logger.Warnf("failed to revoke lease %x of lock %s: %v", leaseID, lock, err)
	}
}

// Campaign waits to become the leader of election name, proposing value.
// Leadership is bound to leaseID and is lost when the lease expires.
func (c *Client) Campaign(ctx context.Context, name, value string, leaseID int64, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.Name = name
	p.Value = value
	p.LeaseID = leaseID
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewCampaign(ctx, p).Result()
	})
}

// Proclaim replaces the value proposed by leader without a new election
func (c *Client) Proclaim(ctx context.Context, leader response.LeaderKey, value string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.Leader = leader
	p.Value = value
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewProclaim(ctx, p).Result()
	})
}

// Leader reads the current leader of election name
func (c *Client) Leader(ctx context.Context, name string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.Name = name
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewLeader(ctx, p).Result()
	})
}

// Resign gives up the leadership held by leader
func (c *Client) Resign(ctx context.Context, leader response.LeaderKey, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.Leader = leader
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewResign(ctx, p).Result()
	})
}
