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

	"github.com/tochemey/etcdclient/future"
	"github.com/tochemey/etcdclient/internal/action"
	"github.com/tochemey/etcdclient/response"
)

// AddMember adds a member reachable at peerURLs, as a learner when isLearner is set
func (c *Client) AddMember(ctx context.Context, peerURLs []string, isLearner bool, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.PeerURLs = append([]string(nil), peerURLs...)
	p.IsLearner = isLearner
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewAddMember(ctx, p).Result()
	})
}

// ListMember lists the cluster members
func (c *Client) ListMember(ctx context.Context, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewListMember(ctx, p).Result()
	})
}

// RemoveMember removes the member memberID from the cluster
func (c *Client) RemoveMember(ctx context.Context, memberID uint64, opts ...CallOption) future.Future[*response.Response] {
	p := c.params("", opts)
	p.MemberID = memberID
	return c.run(ctx, func(ctx context.Context) *response.Result {
		return action.NewRemoveMember(ctx, p).Result()
	})
}
