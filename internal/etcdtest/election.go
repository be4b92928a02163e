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

package etcdtest

import (
	"bytes"
	"context"

	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3election/v3electionpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errNoLeader  = status.Error(codes.Unknown, "election: no leader")
	errNotLeader = status.Error(codes.Unknown, "election: not leader")
)

type electionService struct {
	v3electionpb.UnimplementedElectionServer
	server *Server
}

func (x *electionService) RegisterService(srv *grpc.Server) {
	v3electionpb.RegisterElectionServer(srv, x)
}

// Campaign enters the election and returns once the caller leads it
func (x *electionService) Campaign(ctx context.Context, request *v3electionpb.CampaignRequest) (*v3electionpb.CampaignResponse, error) {
	store := x.server.store
	prefix, key := ownerKey(request.Name, request.Lease)
	mine, err := store.Acquire(key, request.Value, request.Lease)
	if err != nil {
		return nil, err
	}

	// a candidate campaigning again on the same lease proclaims its new value
	if !bytes.Equal(mine.Value, request.Value) {
		if _, err := store.Replace(key, request.Value, mine.CreateRevision); err != nil {
			return nil, err
		}
	}

	if err := store.waitOwner(ctx, prefix, mine); err != nil {
		return nil, err
	}

	return &v3electionpb.CampaignResponse{
		Header: store.Header(),
		Leader: &v3electionpb.LeaderKey{
			Name:  request.Name,
			Key:   key,
			Rev:   mine.CreateRevision,
			Lease: request.Lease,
		},
	}, nil
}

func (x *electionService) Proclaim(_ context.Context, request *v3electionpb.ProclaimRequest) (*v3electionpb.ProclaimResponse, error) {
	if request.Leader == nil {
		return nil, status.Error(codes.InvalidArgument, `"leader" field must be provided`)
	}
	store := x.server.store
	ok, err := store.Replace(request.Leader.Key, request.Value, request.Leader.Rev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotLeader
	}
	return &v3electionpb.ProclaimResponse{Header: store.Header()}, nil
}

func (x *electionService) Leader(_ context.Context, request *v3electionpb.LeaderRequest) (*v3electionpb.LeaderResponse, error) {
	leader := x.leader(request.Name)
	if leader == nil {
		return nil, errNoLeader
	}
	return &v3electionpb.LeaderResponse{Header: x.server.store.Header(), Kv: leader}, nil
}

// Observe streams the leader every time it changes or proclaims a new value
func (x *electionService) Observe(request *v3electionpb.LeaderRequest, stream v3electionpb.Election_ObserveServer) error {
	store := x.server.store
	var last *mvccpb.KeyValue
	for {
		changed := store.Changed()
		if leader := x.leader(request.Name); leader != nil && (last == nil || leader.ModRevision != last.ModRevision) {
			last = leader
			if err := stream.Send(&v3electionpb.LeaderResponse{Header: store.Header(), Kv: leader}); err != nil {
				return err
			}
		}

		select {
		case <-changed:
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (x *electionService) Resign(_ context.Context, request *v3electionpb.ResignRequest) (*v3electionpb.ResignResponse, error) {
	if request.Leader == nil {
		return nil, status.Error(codes.InvalidArgument, `"leader" field must be provided`)
	}
	store := x.server.store
	store.DeleteIf(request.Leader.Key, request.Leader.Rev)
	return &v3electionpb.ResignResponse{Header: store.Header()}, nil
}

func (x *electionService) leader(name []byte) *mvccpb.KeyValue {
	prefix := append(bytes.Clone(name), '/')
	if owners := x.server.store.Owners(prefix); len(owners) > 0 {
		return owners[0]
	}
	return nil
}
