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
	"sync"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3election/v3electionpb"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3lock/v3lockpb"
	"google.golang.org/grpc"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/decode"
	"github.com/tochemey/etcdclient/response"
)

// Unary is an action issuing one request and decoding one reply
type Unary[Resp any] struct {
	*base
	decode func(*response.Result, Resp)

	once   sync.Once
	result *response.Result
}

func newUnary[Req, Resp any](
	ctx context.Context,
	kind Kind,
	params Parameters,
	call func(context.Context, Req, ...grpc.CallOption) (Resp, error),
	request Req,
	decoder func(*response.Result, Resp),
) *Unary[Resp] {
	a := &Unary[Resp]{
		base:   newBase(ctx, kind, params),
		decode: decoder,
	}
	a.cq.start(tagCall, func() (any, error) {
		return call(a.ctx, request)
	})
	return a
}

// Result waits for the reply and decodes it. It can be called any number of times.
func (a *Unary[Resp]) Result() *response.Result {
	a.once.Do(func() {
		c := a.waitForResponse()
		var r *response.Result
		switch {
		case !a.ok():
			r = a.failure()
		case c.tag != tagCall:
			r = response.Failed(errors.ActionCancelled, "unexpected completion "+c.tag.String())
		default:
			reply, ok := c.reply.(Resp)
			if !ok {
				r = response.Failed(errors.ActionCancelled, "unexpected reply type")
				break
			}
			r = new(response.Result)
			a.decode(r, reply)
		}
		a.result = a.stamp(r)
		a.release(a.result)
	})
	return a.result
}

// NewGet reads a key, a prefix or a range
func NewGet(ctx context.Context, params Parameters) *Unary[*etcdserverpb.RangeResponse] {
	key, end := params.Range()
	request := &etcdserverpb.RangeRequest{
		Key:       key,
		RangeEnd:  end,
		Limit:     params.Limit,
		Revision:  params.Revision,
		KeysOnly:  params.KeysOnly,
		CountOnly: params.CountOnly,
	}
	if params.IsRange() {
		request.SortOrder = etcdserverpb.RangeRequest_ASCEND
		request.SortTarget = etcdserverpb.RangeRequest_KEY
	}

	prefix := params.IsRange()
	return newUnary(ctx, KindGet, params, params.KV.Range, request, func(r *response.Result, reply *etcdserverpb.RangeResponse) {
		decode.Range(r, reply, prefix)
	})
}

// NewHead reads the current store revision without fetching any key
func NewHead(ctx context.Context, params Parameters) *Unary[*etcdserverpb.RangeResponse] {
	request := &etcdserverpb.RangeRequest{Key: []byte{0}, CountOnly: true}
	return newUnary(ctx, KindHead, params, params.KV.Range, request, func(r *response.Result, reply *etcdserverpb.RangeResponse) {
		decode.Header(r, reply.Header)
	})
}

// NewPut writes a key unconditionally
func NewPut(ctx context.Context, params Parameters) *Unary[*etcdserverpb.PutResponse] {
	request := &etcdserverpb.PutRequest{
		Key:    []byte(params.Key),
		Value:  []byte(params.Value),
		Lease:  params.LeaseID,
		PrevKv: true,
	}
	return newUnary(ctx, KindPut, params, params.KV.Put, request, func(r *response.Result, reply *etcdserverpb.PutResponse) {
		decode.Put(r, reply)
		r.Value = response.KeyValue{
			Key:         params.Key,
			Value:       params.Value,
			Lease:       params.LeaseID,
			ModRevision: r.Index,
		}
	})
}

// NewDelete deletes a key, a prefix or a range
func NewDelete(ctx context.Context, params Parameters) *Unary[*etcdserverpb.DeleteRangeResponse] {
	key, end := params.Range()
	request := &etcdserverpb.DeleteRangeRequest{Key: key, RangeEnd: end, PrevKv: true}
	prefix := params.IsRange()
	return newUnary(ctx, KindDelete, params, params.KV.DeleteRange, request, func(r *response.Result, reply *etcdserverpb.DeleteRangeResponse) {
		decode.DeleteRange(r, reply, prefix)
	})
}

// NewLeaseGrant grants a lease of params.TTL seconds.
// params.LeaseID requests a specific id; zero lets the server choose.
func NewLeaseGrant(ctx context.Context, params Parameters) *Unary[*etcdserverpb.LeaseGrantResponse] {
	request := &etcdserverpb.LeaseGrantRequest{TTL: params.TTL, ID: params.LeaseID}
	return newUnary(ctx, KindLeaseGrant, params, params.Lease.LeaseGrant, request, decode.LeaseGrant)
}

// NewLeaseRevoke revokes a lease and deletes the keys attached to it
func NewLeaseRevoke(ctx context.Context, params Parameters) *Unary[*etcdserverpb.LeaseRevokeResponse] {
	request := &etcdserverpb.LeaseRevokeRequest{ID: params.LeaseID}
	return newUnary(ctx, KindLeaseRevoke, params, params.Lease.LeaseRevoke, request, decode.LeaseRevoke)
}

// NewLeaseTimeToLive reads the remaining and granted TTL of a lease and its keys
func NewLeaseTimeToLive(ctx context.Context, params Parameters) *Unary[*etcdserverpb.LeaseTimeToLiveResponse] {
	request := &etcdserverpb.LeaseTimeToLiveRequest{ID: params.LeaseID, Keys: true}
	return newUnary(ctx, KindLeaseTimeToLive, params, params.Lease.LeaseTimeToLive, request, decode.LeaseTimeToLive)
}

// NewLeaseLeases lists the active leases
func NewLeaseLeases(ctx context.Context, params Parameters) *Unary[*etcdserverpb.LeaseLeasesResponse] {
	return newUnary(ctx, KindLeaseLeases, params, params.Lease.LeaseLeases, &etcdserverpb.LeaseLeasesRequest{}, decode.LeaseLeases)
}

// NewLock acquires the lock params.Name, owned by params.LeaseID
func NewLock(ctx context.Context, params Parameters) *Unary[*v3lockpb.LockResponse] {
	request := &v3lockpb.LockRequest{Name: []byte(params.Name), Lease: params.LeaseID}
	return newUnary(ctx, KindLock, params, params.Lock.Lock, request, decode.Lock)
}

// NewUnlock releases the lock owned by params.Key
func NewUnlock(ctx context.Context, params Parameters) *Unary[*v3lockpb.UnlockResponse] {
	request := &v3lockpb.UnlockRequest{Key: []byte(params.Key)}
	return newUnary(ctx, KindUnlock, params, params.Lock.Unlock, request, decode.Unlock)
}

// NewCampaign waits to become leader of election params.Name with proposal params.Value
func NewCampaign(ctx context.Context, params Parameters) *Unary[*v3electionpb.CampaignResponse] {
	request := &v3electionpb.CampaignRequest{
		Name:  []byte(params.Name),
		Lease: params.LeaseID,
		Value: []byte(params.Value),
	}
	value := params.Value
	return newUnary(ctx, KindCampaign, params, params.Election.Campaign, request, func(r *response.Result, reply *v3electionpb.CampaignResponse) {
		decode.Campaign(r, reply, value)
	})
}

// NewProclaim updates the leader's proposal without a new election
func NewProclaim(ctx context.Context, params Parameters) *Unary[*v3electionpb.ProclaimResponse] {
	request := &v3electionpb.ProclaimRequest{Leader: leaderKey(params.Leader), Value: []byte(params.Value)}
	return newUnary(ctx, KindProclaim, params, params.Election.Proclaim, request, decode.Proclaim)
}

// NewLeader reads the current leader of election params.Name
func NewLeader(ctx context.Context, params Parameters) *Unary[*v3electionpb.LeaderResponse] {
	request := &v3electionpb.LeaderRequest{Name: []byte(params.Name)}
	return newUnary(ctx, KindLeader, params, params.Election.Leader, request, decode.Leader)
}

// NewResign gives up leadership
func NewResign(ctx context.Context, params Parameters) *Unary[*v3electionpb.ResignResponse] {
	request := &v3electionpb.ResignRequest{Leader: leaderKey(params.Leader)}
	return newUnary(ctx, KindResign, params, params.Election.Resign, request, decode.Resign)
}

// NewAddMember adds a member to the cluster
func NewAddMember(ctx context.Context, params Parameters) *Unary[*etcdserverpb.MemberAddResponse] {
	request := &etcdserverpb.MemberAddRequest{PeerURLs: params.PeerURLs, IsLearner: params.IsLearner}
	return newUnary(ctx, KindAddMember, params, params.Cluster.MemberAdd, request, decode.MemberAdd)
}

// NewListMember lists the cluster members
func NewListMember(ctx context.Context, params Parameters) *Unary[*etcdserverpb.MemberListResponse] {
	request := &etcdserverpb.MemberListRequest{Linearizable: true}
	return newUnary(ctx, KindListMember, params, params.Cluster.MemberList, request, decode.MemberList)
}

// NewRemoveMember removes a member from the cluster
func NewRemoveMember(ctx context.Context, params Parameters) *Unary[*etcdserverpb.MemberRemoveResponse] {
	request := &etcdserverpb.MemberRemoveRequest{ID: params.MemberID}
	return newUnary(ctx, KindRemoveMember, params, params.Cluster.MemberRemove, request, decode.MemberRemove)
}

func leaderKey(leader response.LeaderKey) *v3electionpb.LeaderKey {
	return &v3electionpb.LeaderKey{
		Name:  []byte(leader.Name),
		Key:   []byte(leader.Key),
		Rev:   leader.Rev,
		Lease: leader.Lease,
	}
}
