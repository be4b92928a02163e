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

package grpcc

import (
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/tochemey/etcdclient/internal/size"
	"github.com/tochemey/etcdclient/log"
)

const (
	// MinPingInterval is the shortest client keepalive interval the server tolerates
	MinPingInterval = 5 * time.Second
	// KeepAliveTime is the period after which a keepalive ping is sent on the
	// transport
	KeepAliveTime = 2 * time.Hour
)

// Server hosts gRPC services on a TCP listener
type Server interface {
	Start() error
	Stop() error
	Addr() string
	GetListener() net.Listener
	GetServer() *grpc.Server
}

// ServiceRegistry is implemented by anything that registers services on a grpc server
type ServiceRegistry interface {
	RegisterService(*grpc.Server)
}

type server struct {
	addr       string
	server     *grpc.Server
	listener   net.Listener
	logger     log.Logger
	services   []ServiceRegistry
	maxMsgSize int
	mu         *sync.RWMutex
	started    bool
	tlsConfig  *tls.Config
	extra      []grpc.ServerOption
}

var _ Server = (*server)(nil)

// NewServer creates a Server listening on addr once started. At least one
// service must be registered. The health service is always registered.
func NewServer(addr string, opts ...ServerOption) (Server, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}

	s := &server{
		addr:       addr,
		mu:         &sync.RWMutex{},
		logger:     log.DiscardLogger,
		maxMsgSize: 10 * size.MB,
	}

	for _, opt := range opts {
		opt(s)
	}

	if len(s.services) == 0 {
		s.logger.Warn("no service has been registered with the grpc server")
		return nil, errors.New("no service has been registered with the grpc server")
	}

	options := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: KeepAliveTime}),
		// clients ping idle connections; the default policy would close them
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             MinPingInterval,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(s.maxMsgSize),
		grpc.MaxSendMsgSize(s.maxMsgSize),
	}
	if s.tlsConfig != nil {
		options = append(options, grpc.Creds(credentials.NewTLS(s.tlsConfig)))
	}
	options = append(options, s.extra...)

	s.server = grpc.NewServer(options...)
	grpc_health_v1.RegisterHealthServer(s.server, health.NewServer())
	for _, service := range s.services {
		service.RegisterService(s.server)
	}

	return s, nil
}

// GetServer returns the underlying grpc.Server
func (s *server) GetServer() *grpc.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.server
}

// GetListener returns the underlying tcp listener
func (s *server) GetListener() net.Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener
}

// Addr returns the address the server listens on, or the configured address
// when it is not started.
func (s *server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start listens and serves in the background
func (s *server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("grpc server already started")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go s.serve(listener)
	s.started = true
	return nil
}

// Stop closes the listener and ends every open stream
func (s *server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return errors.New("grpc server not started")
	}

	s.started = false
	// streams that never end would stall a graceful stop
	s.server.Stop()
	return nil
}

func (s *server) serve(listener net.Listener) {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, grpc.ErrServerStopped) {
		s.logger.Error(err)
	}
}
