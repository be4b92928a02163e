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

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/future"
	"github.com/tochemey/etcdclient/internal/action"
	"github.com/tochemey/etcdclient/response"
	"github.com/tochemey/etcdclient/txn"
)

// Get reads key, or the range selected by the call options.
// A single key attached to a lease reports the TTL the lease was granted with.
func (c *Client) Get(ctx context.Context, key string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		result := action.NewGet(ctx, p).Result()
		if !result.OK() || p.IsRange() || result.Value.Lease == 0 {
			return result
		}

		lp := p
		lp.LeaseID = result.Value.Lease
		ttl := action.NewLeaseTimeToLive(ctx, lp).Result()
		if ttl.OK() {
			result.Value.TTL = ttl.GrantedTTL
			for i := range result.Values {
				result.Values[i].TTL = ttl.GrantedTTL
			}
		}
		return result
	})
}

// Set writes value at key whether or not it exists and returns the previous value
func (c *Client) Set(ctx context.Context, key, value string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.Value = value
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewSet(ctx, p).Result()
	})
}

// Add creates key. It fails with KeyAlreadyExists when key is present.
func (c *Client) Add(ctx context.Context, key, value string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.Value = value
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewCreate(ctx, p).Result()
	})
}

// Put writes value at key with a plain put
func (c *Client) Put(ctx context.Context, key, value string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.Value = value
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewPut(ctx, p).Result()
	})
}

// Modify updates key. It fails with KeyNotFound when key is absent.
func (c *Client) Modify(ctx context.Context, key, value string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.Value = value
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewUpdate(ctx, p).Result()
	})
}

// ModifyIf updates key when its current value is oldValue
func (c *Client) ModifyIf(ctx context.Context, key, value, oldValue string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.Value = value
	p.OldValue = oldValue
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewCompareAndSwap(ctx, p).Result()
	})
}

// ModifyIfRevision updates key when its current mod revision is oldRevision
func (c *Client) ModifyIfRevision(ctx context.Context, key, value string, oldRevision int64, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.Value = value
	p.OldRevision = oldRevision
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewCompareAndSwap(ctx, p).Result()
	})
}

// Rm deletes key. It fails with KeyNotFound when key is absent.
func (c *Client) Rm(ctx context.Context, key string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewDelete(ctx, p).Result()
	})
}

// RmIf deletes key when its current value is oldValue
func (c *Client) RmIf(ctx context.Context, key, oldValue string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.OldValue = oldValue
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewCompareAndDelete(ctx, p).Result()
	})
}

// RmIfRevision deletes key when its current mod revision is oldRevision
func (c *Client) RmIfRevision(ctx context.Context, key string, oldRevision int64, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.OldRevision = oldRevision
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewCompareAndDelete(ctx, p).Result()
	})
}

// Rmdir deletes key or, when recursive, every key under the prefix key.
// A recursive delete matching no key succeeds.
func (c *Client) Rmdir(ctx context.Context, key string, recursive bool, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.WithPrefix = recursive
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewDelete(ctx, p).Result()
	})
}

// RmdirRange deletes every key in [key, rangeEnd)
func (c *Client) RmdirRange(ctx context.Context, key, rangeEnd string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.RangeEnd = rangeEnd
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewDelete(ctx, p).Result()
	})
}

// Ls lists every key under the prefix key, sorted by key
func (c *Client) Ls(ctx context.Context, key string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.WithPrefix = true
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewGet(ctx, p).Result()
	})
}

// LsRange lists every key in [key, rangeEnd)
func (c *Client) LsRange(ctx context.Context, key, rangeEnd string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.RangeEnd = rangeEnd
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewGet(ctx, p).Result()
	})
}

// Keys lists the keys under the prefix key without their values
func (c *Client) Keys(ctx context.Context, key string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	p.WithPrefix = true
	p.KeysOnly = true
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewGet(ctx, p).Result()
	})
}

// Head returns the current revision of the store
func (c *Client) Head(ctx context.Context, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewHead(ctx, p).Result()
	})
}

// Txn commits a caller-built transaction. A transaction can be committed once;
// a second commit fails the future with ErrTransactionConsumed.
func (c *Client) Txn(ctx context.Context, tx *txn.Transaction, opts ...CallOption) future.Future[*response.Response] {
	if c.closed.Load() {
		return future.Completed[*response.Response](nil, errors.ErrClientClosed)
	}

	request, err := tx.Request()
	if err != nil {
		return future.Completed[*response.Response](nil, err)
	}

	p := c.params("", opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewTxn(ctx, p, request).Result()
	})
}

// Watch waits for the first change of key, or of the range selected by the
// call options, from the given revision on. Use Watcher to follow every change.
func (c *Client) Watch(ctx context.Context, key string, opts ...CallOption) future.Future[*response.Response] {
	p := c.params(key, opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewWatch(ctx, p).Result()
	})
}
