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
	"context"
	"io"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc"
)

const (
	minLeaseTTL = 1
	maxLeaseTTL = 9000000000
)

type leaseService struct {
	etcdserverpb.UnimplementedLeaseServer
	server *Server
}

func (x *leaseService) RegisterService(srv *grpc.Server) {
	etcdserverpb.RegisterLeaseServer(srv, x)
}

func (x *leaseService) LeaseGrant(_ context.Context, request *etcdserverpb.LeaseGrantRequest) (*etcdserverpb.LeaseGrantResponse, error) {
	if request.TTL > maxLeaseTTL {
		return nil, rpctypes.ErrGRPCLeaseTTLTooLarge
	}
	l, err := x.server.store.Grant(request.ID, max(request.TTL, minLeaseTTL))
	if err != nil {
		return nil, err
	}
	return &etcdserverpb.LeaseGrantResponse{Header: x.server.store.Header(), ID: l.id, TTL: l.ttl}, nil
}

func (x *leaseService) LeaseRevoke(_ context.Context, request *etcdserverpb.LeaseRevokeRequest) (*etcdserverpb.LeaseRevokeResponse, error) {
	if err := x.server.store.Revoke(request.ID); err != nil {
		return nil, err
	}
	return &etcdserverpb.LeaseRevokeResponse{Header: x.server.store.Header()}, nil
}

// LeaseKeepAlive answers every heartbeat. An unknown lease is answered with TTL 0.
func (x *leaseService) LeaseKeepAlive(stream etcdserverpb.Lease_LeaseKeepAliveServer) error {
	store := x.server.store
	for {
		request, err := stream.Recv()
		if err == io.EOF {
			if x.server.stallStreams {
				<-stream.Context().Done()
			}
			return nil
		}
		if err != nil {
			return err
		}

		x.server.heartbeats.Inc()
		ttl, _ := store.Renew(request.ID)
		if err := stream.Send(&etcdserverpb.LeaseKeepAliveResponse{Header: store.Header(), ID: request.ID, TTL: ttl}); err != nil {
			return err
		}
	}
}

func (x *leaseService) LeaseTimeToLive(_ context.Context, request *etcdserverpb.LeaseTimeToLiveRequest) (*etcdserverpb.LeaseTimeToLiveResponse, error) {
	return x.server.store.TimeToLive(request.ID, request.Keys), nil
}

func (x *leaseService) LeaseLeases(context.Context, *etcdserverpb.LeaseLeasesRequest) (*etcdserverpb.LeaseLeasesResponse, error) {
	reply := &etcdserverpb.LeaseLeasesResponse{Header: x.server.store.Header()}
	for _, id := range x.server.store.Leases() {
		reply.Leases = append(reply.Leases, &etcdserverpb.LeaseStatus{ID: id})
	}
	return reply, nil
}
