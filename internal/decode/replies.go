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

package decode

import (
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3election/v3electionpb"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3lock/v3lockpb"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/response"
)

const errNoLeader = "election: no leader"

// LeaseGrant decodes a lease grant reply into Value.Lease and Value.TTL
func LeaseGrant(r *response.Result, reply *etcdserverpb.LeaseGrantResponse) {
	Header(r, reply.Header)
	if reply.Error != "" {
		r.SetError(errors.Unknown, reply.Error)
		return
	}
	r.Value = response.KeyValue{Lease: reply.ID, TTL: reply.TTL}
}

// LeaseRevoke decodes a lease revoke reply
func LeaseRevoke(r *response.Result, reply *etcdserverpb.LeaseRevokeResponse) {
	Header(r, reply.Header)
}

// LeaseKeepAlive decodes a keepalive ack. A non-positive TTL means the lease is gone.
func LeaseKeepAlive(r *response.Result, reply *etcdserverpb.LeaseKeepAliveResponse) {
	Header(r, reply.Header)
	r.Value = response.KeyValue{Lease: reply.ID, TTL: reply.TTL}
	if reply.TTL <= 0 {
		r.SetError(errors.NotFound, rpctypes.ErrLeaseNotFound.Error())
	}
}

// LeaseTimeToLive decodes a time-to-live reply; TTL -1 means the lease is gone.
func LeaseTimeToLive(r *response.Result, reply *etcdserverpb.LeaseTimeToLiveResponse) {
	Header(r, reply.Header)
	r.Value = response.KeyValue{Lease: reply.ID, TTL: reply.TTL}
	r.GrantedTTL = reply.GrantedTTL
	if reply.TTL == -1 {
		r.SetError(errors.NotFound, rpctypes.ErrLeaseNotFound.Error())
		return
	}
	for _, key := range reply.Keys {
		r.Keys = append(r.Keys, string(key))
	}
}

// LeaseLeases decodes a lease listing
func LeaseLeases(r *response.Result, reply *etcdserverpb.LeaseLeasesResponse) {
	Header(r, reply.Header)
	for _, lease := range reply.Leases {
		r.Leases = append(r.Leases, lease.ID)
	}
}

// Lock decodes a lock reply into LockKey
func Lock(r *response.Result, reply *v3lockpb.LockResponse) {
	Header(r, reply.Header)
	r.LockKey = string(reply.Key)
	r.Value = response.KeyValue{Key: r.LockKey}
}

// Unlock decodes an unlock reply
func Unlock(r *response.Result, reply *v3lockpb.UnlockResponse) {
	Header(r, reply.Header)
}

// Campaign decodes a campaign reply. value is the proposal, which the reply does not echo.
func Campaign(r *response.Result, reply *v3electionpb.CampaignResponse, value string) {
	Header(r, reply.Header)
	leader := reply.Leader
	if leader == nil {
		return
	}
	r.Leader = response.LeaderKey{
		Name:  string(leader.Name),
		Key:   string(leader.Key),
		Rev:   leader.Rev,
		Lease: leader.Lease,
	}
	r.Value = response.KeyValue{
		Key:            string(leader.Key),
		Value:          value,
		CreateRevision: leader.Rev,
		Lease:          leader.Lease,
	}
}

// Proclaim decodes a proclaim reply
func Proclaim(r *response.Result, reply *v3electionpb.ProclaimResponse) {
	Header(r, reply.Header)
}

// Leader decodes a leader or observe reply into Value
func Leader(r *response.Result, reply *v3electionpb.LeaderResponse) {
	Header(r, reply.Header)
	if reply.Kv == nil {
		r.SetError(errors.NotFound, errNoLeader)
		return
	}
	r.Value = response.FromKV(reply.Kv)
}

// Resign decodes a resign reply
func Resign(r *response.Result, reply *v3electionpb.ResignResponse) {
	Header(r, reply.Header)
}

// MemberAdd decodes an add-member reply
func MemberAdd(r *response.Result, reply *etcdserverpb.MemberAddResponse) {
	Header(r, reply.Header)
	r.Member = response.FromMember(reply.Member)
	members(r, reply.Members)
}

// MemberList decodes a list-member reply
func MemberList(r *response.Result, reply *etcdserverpb.MemberListResponse) {
	Header(r, reply.Header)
	members(r, reply.Members)
}

// MemberRemove decodes a remove-member reply
func MemberRemove(r *response.Result, reply *etcdserverpb.MemberRemoveResponse) {
	Header(r, reply.Header)
	members(r, reply.Members)
}

func members(r *response.Result, list []*etcdserverpb.Member) {
	for _, member := range list {
		r.Members = append(r.Members, response.FromMember(member))
	}
}
