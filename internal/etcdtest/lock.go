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
	"fmt"

	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3lock/v3lockpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errSessionExpired = status.Error(codes.Unknown, "election: session expired")

// ownerKey is the key a lease holds under a lock or election name
func ownerKey(name []byte, leaseID int64) (prefix, key []byte) {
	prefix = append(bytes.Clone(name), '/')
	return prefix, append(bytes.Clone(prefix), leaseHex(leaseID)...)
}

func leaseHex(leaseID int64) string {
	return fmt.Sprintf("%x", leaseID)
}

// waitOwner blocks until mine holds the lowest create revision under prefix.
// The key is deleted when ctx ends first.
func (s *store) waitOwner(ctx context.Context, prefix []byte, mine *mvccpb.KeyValue) error {
	for {
		changed := s.Changed()
		current := s.Get(mine.Key)
		if current == nil || current.CreateRevision != mine.CreateRevision {
			return errSessionExpired
		}

		if owners := s.Owners(prefix); len(owners) > 0 && bytes.Equal(owners[0].Key, mine.Key) {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			s.DeleteIf(mine.Key, mine.CreateRevision)
			return status.FromContextError(ctx.Err()).Err()
		}
	}
}

type lockService struct {
	v3lockpb.UnimplementedLockServer
	server *Server
}

func (x *lockService) RegisterService(srv *grpc.Server) {
	v3lockpb.RegisterLockServer(srv, x)
}

// Lock takes name/<lease> and returns once every older holder is gone
func (x *lockService) Lock(ctx context.Context, request *v3lockpb.LockRequest) (*v3lockpb.LockResponse, error) {
	store := x.server.store
	prefix, key := ownerKey(request.Name, request.Lease)
	mine, err := store.Acquire(key, nil, request.Lease)
	if err != nil {
		return nil, err
	}
	if err := store.waitOwner(ctx, prefix, mine); err != nil {
		return nil, err
	}
	return &v3lockpb.LockResponse{Header: store.Header(), Key: key}, nil
}

func (x *lockService) Unlock(_ context.Context, request *v3lockpb.UnlockRequest) (*v3lockpb.UnlockResponse, error) {
	store := x.server.store
	store.Delete(request.Key, nil)
	return &v3lockpb.UnlockResponse{Header: store.Header()}, nil
}
