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

// Package etcdtest serves an in-memory etcd v3 cluster of one member over gRPC.
//
// The server speaks the KV, Watch, Lease, Cluster, Auth, Lock and Election
// services closely enough to drive the client end to end: revisions, prefix
// ranges, nested transactions, watch history and compaction, lease expiry,
// fair locks and elections.
package etcdtest

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/travisjeffery/go-dynaport"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"go.uber.org/atomic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/tochemey/etcdclient/internal/grpcc"
	"github.com/tochemey/etcdclient/log"
)

const (
	tokenMetadataKey = "token"
	authenticate     = "/etcdserverpb.Auth/Authenticate"
	healthPrefix     = "/grpc.health."
	reapInterval     = 100 * time.Millisecond
)

// Option configures a Server
type Option func(*Server)

// WithUsers turns authentication on. Every call except Authenticate must
// then carry a token issued to one of these users.
func WithUsers(users map[string]string) Option {
	return func(s *Server) {
		for name, password := range users {
			s.users[name] = password
		}
	}
}

// WithAuthFailures makes the first n Authenticate calls fail as unavailable
func WithAuthFailures(n int64) Option {
	return func(s *Server) {
		s.authFailures = n
	}
}

// WithStallingStreams makes streams unresponsive to closing: watch cancel
// requests go unanswered and Watch and LeaseKeepAlive streams stay open after
// the client half-closes them, until the client gives up on the call.
func WithStallingStreams() Option {
	return func(s *Server) {
		s.stallStreams = true
	}
}

// WithTLS serves over TLS
func WithTLS(config *tls.Config) Option {
	return func(s *Server) {
		s.tlsConfig = config
	}
}

// WithLogger sets the server logger
func WithLogger(logger log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// Server is a running in-memory etcd member
type Server struct {
	store   *store
	members *membership

	users        map[string]string
	authFailures int64
	authAttempts *atomic.Int64
	issued       mapset.Set[string]
	seen         mapset.Set[string]
	heartbeats   *atomic.Int64
	stallStreams bool

	tlsConfig *tls.Config
	logger    log.Logger
	grpc      grpcc.Server

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Start serves a fresh cluster on a free local port
func Start(opts ...Option) (*Server, error) {
	s := &Server{
		store:        newStore(),
		users:        make(map[string]string),
		authAttempts: atomic.NewInt64(0),
		issued:       mapset.NewSet[string](),
		seen:         mapset.NewSet[string](),
		heartbeats:   atomic.NewInt64(0),
		logger:       log.DiscardLogger,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", dynaport.Get(1)[0])
	s.members = newMembership("http://" + addr)

	options := []grpcc.ServerOption{
		grpcc.WithLogger(s.logger),
		grpcc.WithServices(
			&kvService{server: s},
			&watchService{server: s},
			&leaseService{server: s},
			&clusterService{server: s},
			&authService{server: s},
			&lockService{server: s},
			&electionService{server: s},
		),
		grpcc.WithGRPCOptions(
			grpc.ChainUnaryInterceptor(s.unaryInterceptor),
			grpc.ChainStreamInterceptor(s.streamInterceptor),
		),
	}
	if s.tlsConfig != nil {
		options = append(options, grpcc.WithServerTLS(s.tlsConfig))
	}

	server, err := grpcc.NewServer(addr, options...)
	if err != nil {
		return nil, err
	}
	if err := server.Start(); err != nil {
		return nil, err
	}
	s.grpc = server

	s.wg.Add(1)
	go s.reap()
	return s, nil
}

// Endpoint is the address clients dial
func (s *Server) Endpoint() string {
	return s.grpc.Addr()
}

// Stop shuts the server down and ends every open stream
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		if err := s.grpc.Stop(); err != nil {
			s.logger.Warnf("failed to stop the etcd test server: %v", err)
		}
	})
}

// Tokens lists the distinct auth tokens seen on incoming calls
func (s *Server) Tokens() []string {
	tokens := s.seen.ToSlice()
	sort.Strings(tokens)
	return tokens
}

// AuthAttempts counts Authenticate calls
func (s *Server) AuthAttempts() int64 {
	return s.authAttempts.Load()
}

// Heartbeats counts the keepalive requests received
func (s *Server) Heartbeats() int64 {
	return s.heartbeats.Load()
}

// Revision is the current store revision
func (s *Server) Revision() int64 {
	return s.store.Header().Revision
}

// Compact forgets the history before revision
func (s *Server) Compact(revision int64) error {
	return s.store.Compact(revision)
}

// Put writes a key outside of any client
func (s *Server) Put(key, value string) {
	_, _ = s.store.Put([]byte(key), []byte(value), 0)
}

// Get reads a key outside of any client
func (s *Server) Get(key string) (string, bool) {
	kv := s.store.Get([]byte(key))
	if kv == nil {
		return "", false
	}
	return string(kv.Value), true
}

// Leases lists the live lease ids
func (s *Server) Leases() []int64 {
	return s.store.Leases()
}

// Revoke drops a lease as if it expired
func (s *Server) Revoke(leaseID int64) error {
	return s.store.Revoke(leaseID)
}

func (s *Server) reap() {
	defer s.wg.Done()
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.store.Expire(now)
		}
	}
}

// authorize records the caller token and checks it when auth is on
func (s *Server) authorize(ctx context.Context, method string) error {
	if method == authenticate || strings.HasPrefix(method, healthPrefix) {
		return nil
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(tokenMetadataKey); len(values) > 0 {
			token = values[0]
		}
	}
	if token != "" {
		s.seen.Add(token)
	}

	if len(s.users) > 0 && !s.issued.Contains(token) {
		return rpctypes.ErrGRPCInvalidAuthToken
	}
	return nil
}

func (s *Server) unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if err := s.authorize(ctx, info.FullMethod); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (s *Server) streamInterceptor(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := s.authorize(stream.Context(), info.FullMethod); err != nil {
		return err
	}
	return handler(srv, stream)
}
