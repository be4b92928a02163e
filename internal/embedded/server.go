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

// Package embedded runs a single etcd member in process. It backs the tests
// that need the real server semantics without a container runtime.
package embedded

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"go.etcd.io/etcd/server/v3/embed"

	"github.com/tochemey/etcdclient/log"
)

// Server is a running embedded member
type Server struct {
	mu      sync.Mutex
	etcd    *embed.Etcd
	config  *Config
	logger  log.Logger
	stopped bool
}

// Start launches the member and waits until it serves requests
func Start(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedConfig := embed.NewConfig()
	embedConfig.Name = config.name
	embedConfig.Dir = path.Join(config.dataDir, "etcd.data")
	embedConfig.ListenClientUrls = config.clientURLs
	embedConfig.AdvertiseClientUrls = config.clientURLs
	embedConfig.ListenPeerUrls = config.peerURLs
	embedConfig.AdvertisePeerUrls = config.peerURLs
	embedConfig.InitialCluster = embedConfig.InitialClusterFromName(config.name)
	embedConfig.Logger = "zap"
	embedConfig.LogLevel = config.logLevel

	logger := config.logger
	etcd, err := embed.StartEtcd(embedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to start the embedded etcd member %s: %w", config.name, err)
	}

	select {
	case <-etcd.Server.ReadyNotify():
		logger.Infof("embedded etcd member %s ready on %s", config.name, config.clientURLs.String())
		return &Server{etcd: etcd, config: config, logger: logger}, nil
	case <-time.After(config.startTimeout):
		etcd.Close()
		return nil, fmt.Errorf("embedded etcd member %s not ready after %s", config.name, config.startTimeout)
	case err := <-etcd.Err():
		etcd.Close()
		return nil, fmt.Errorf("embedded etcd member %s failed: %w", config.name, err)
	}
}

// Endpoints returns the client endpoints as host:port pairs
func (s *Server) Endpoints() []string {
	endpoints := make([]string, 0, len(s.config.clientURLs))
	for _, u := range s.config.clientURLs {
		endpoints = append(endpoints, u.Host)
	}
	return endpoints
}

// Stop closes the member and removes its data directory
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("embedded etcd member already stopped")
	}

	s.etcd.Close()
	s.stopped = true
	s.logger.Infof("embedded etcd member %s stopped", s.config.name)
	return os.RemoveAll(s.config.dataDir)
}
