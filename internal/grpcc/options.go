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
	"time"

	"google.golang.org/grpc"

	"github.com/tochemey/etcdclient/log"
)

// ServerOption defines a function type that configures the server.
type ServerOption func(*server)

// ConnOption defines a function type that configures the Conn.
type ConnOption func(*Conn)

// WithLogger sets the logger for the server.
func WithLogger(logger log.Logger) ServerOption {
	return func(s *server) {
		s.logger = logger
	}
}

// WithMaxMsgSize sets the maximum message size the server sends and receives.
func WithMaxMsgSize(size int) ServerOption {
	return func(s *server) {
		s.maxMsgSize = size
	}
}

// WithServices registers the provided services with the server.
func WithServices(services ...ServiceRegistry) ServerOption {
	return func(s *server) {
		s.services = services
	}
}

// WithGRPCOptions appends raw grpc server options, such as interceptors.
func WithGRPCOptions(options ...grpc.ServerOption) ServerOption {
	return func(s *server) {
		s.extra = append(s.extra, options...)
	}
}

// WithServerTLS sets the TLS configuration for the server.
func WithServerTLS(config *tls.Config) ServerOption {
	return func(s *server) {
		s.tlsConfig = config
	}
}

// WithConnTLS sets the TLS configuration for the Conn.
func WithConnTLS(config *tls.Config) ConnOption {
	return func(c *Conn) {
		c.tlsConfig = config
	}
}

// WithConnMaxCallMsgSize sets the maximum request and reply size.
func WithConnMaxCallMsgSize(size int) ConnOption {
	return func(c *Conn) {
		if size > 0 {
			c.maxCallMsgSize = size
		}
	}
}

// WithConnKeepAlive sets the transport keepalive ping interval and timeout.
// Zero values keep the defaults.
func WithConnKeepAlive(interval, timeout time.Duration) ConnOption {
	return func(c *Conn) {
		if interval > 0 {
			c.keepAliveTime = interval
		}
		if timeout > 0 {
			c.keepAliveTimeout = timeout
		}
	}
}

// WithConnCompression compresses every request with the named registered
// compressor, for instance Gzip. The server must support it.
func WithConnCompression(name string) ConnOption {
	return func(c *Conn) {
		c.compressor = name
	}
}
