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
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc"
)

// membership is the static member list of the fake cluster
type membership struct {
	mu      sync.Mutex
	members map[uint64]*etcdserverpb.Member
	nextID  uint64
}

func newMembership(clientURL string) *membership {
	return &membership{
		members: map[uint64]*etcdserverpb.Member{
			memberID: {
				ID:         memberID,
				Name:       "default",
				PeerURLs:   []string{"http://localhost:2380"},
				ClientURLs: []string{clientURL},
			},
		},
		nextID: 0x8e9e05c52164694d,
	}
}

func (m *membership) listLocked() []*etcdserverpb.Member {
	list := make([]*etcdserverpb.Member, 0, len(m.members))
	for _, member := range m.members {
		list = append(list, member)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

type clusterService struct {
	etcdserverpb.UnimplementedClusterServer
	server *Server
}

func (x *clusterService) RegisterService(srv *grpc.Server) {
	etcdserverpb.RegisterClusterServer(srv, x)
}

func (x *clusterService) MemberAdd(_ context.Context, request *etcdserverpb.MemberAddRequest) (*etcdserverpb.MemberAddResponse, error) {
	m := x.server.members
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, member := range m.members {
		for _, existing := range member.PeerURLs {
			for _, url := range request.PeerURLs {
				if existing == url {
					return nil, rpctypes.ErrGRPCPeerURLExist
				}
			}
		}
	}

	m.nextID++
	member := &etcdserverpb.Member{ID: m.nextID, PeerURLs: request.PeerURLs, IsLearner: request.IsLearner}
	m.members[member.ID] = member
	return &etcdserverpb.MemberAddResponse{
		Header:  x.server.store.Header(),
		Member:  member,
		Members: m.listLocked(),
	}, nil
}

func (x *clusterService) MemberRemove(_ context.Context, request *etcdserverpb.MemberRemoveRequest) (*etcdserverpb.MemberRemoveResponse, error) {
	m := x.server.members
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[request.ID]; !ok {
		return nil, rpctypes.ErrGRPCMemberNotFound
	}
	delete(m.members, request.ID)
	return &etcdserverpb.MemberRemoveResponse{Header: x.server.store.Header(), Members: m.listLocked()}, nil
}

func (x *clusterService) MemberList(context.Context, *etcdserverpb.MemberListRequest) (*etcdserverpb.MemberListResponse, error) {
	m := x.server.members
	m.mu.Lock()
	defer m.mu.Unlock()
	return &etcdserverpb.MemberListResponse{Header: x.server.store.Header(), Members: m.listLocked()}, nil
}

type authService struct {
	etcdserverpb.UnimplementedAuthServer
	server *Server
}

func (x *authService) RegisterService(srv *grpc.Server) {
	etcdserverpb.RegisterAuthServer(srv, x)
}

// Authenticate issues a fresh token for a known user
func (x *authService) Authenticate(_ context.Context, request *etcdserverpb.AuthenticateRequest) (*etcdserverpb.AuthenticateResponse, error) {
	if request.Name == "" {
		return nil, rpctypes.ErrGRPCUserEmpty
	}
	if x.server.authAttempts.Inc() <= x.server.authFailures {
		return nil, rpctypes.ErrGRPCTimeout
	}
	password, ok := x.server.users[request.Name]
	if !ok || password != request.Password {
		return nil, rpctypes.ErrGRPCAuthFailed
	}

	token := request.Name + "." + uuid.NewString()
	x.server.issued.Add(token)
	return &etcdserverpb.AuthenticateResponse{Header: x.server.store.Header(), Token: token}, nil
}
