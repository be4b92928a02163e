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
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/resolver/manual"

	"github.com/tochemey/etcdclient/internal/size"
)

const (
	// DefaultMaxCallMsgSize bounds a single request or reply
	DefaultMaxCallMsgSize = 10 * size.MB
	// DefaultKeepAliveTime is the idle time after which the transport pings the server
	DefaultKeepAliveTime = 30 * time.Second
	// DefaultKeepAliveTimeout is how long a ping may stay unanswered
	DefaultKeepAliveTimeout = 10 * time.Second

	defaultBackoffMaxDelay = 5 * time.Second
	roundRobinConfig       = `{"loadBalancingConfig":[{"round_robin":{}}]}`
)

// Conn builds the client connection shared by every call of a client.
// Several endpoints are balanced round robin through a manual resolver.
type Conn struct {
	endpoints        []string
	maxCallMsgSize   int
	keepAliveTime    time.Duration
	keepAliveTimeout time.Duration
	tlsConfig        *tls.Config
	compressor       string
	options          []grpc.DialOption
	target           string
}

// NewConn creates a Conn for the given endpoints. Endpoints may carry an
// http:// or https:// scheme, which is dropped.
func NewConn(endpoints []string, opts ...ConnOption) *Conn {
	conn := &Conn{
		maxCallMsgSize:   DefaultMaxCallMsgSize,
		keepAliveTime:    DefaultKeepAliveTime,
		keepAliveTimeout: DefaultKeepAliveTimeout,
	}
	for _, endpoint := range endpoints {
		if endpoint = TrimScheme(endpoint); endpoint != "" {
			conn.endpoints = append(conn.endpoints, endpoint)
		}
	}

	for _, opt := range opts {
		opt(conn)
	}

	bc := backoff.DefaultConfig
	bc.MaxDelay = defaultBackoffMaxDelay

	dialOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                conn.keepAliveTime,
			Timeout:             conn.keepAliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{Backoff: bc}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(conn.maxCallMsgSize),
			grpc.MaxCallSendMsgSize(conn.maxCallMsgSize),
		),
	}

	if conn.compressor != "" {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(grpc.UseCompressor(conn.compressor)))
	}

	if conn.tlsConfig != nil {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(conn.tlsConfig)))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	switch len(conn.endpoints) {
	case 0:
	case 1:
		conn.target = "passthrough:///" + conn.endpoints[0]
	default:
		builder := manual.NewBuilderWithScheme("etcdclient-" + strings.ReplaceAll(uuid.NewString(), "-", ""))
		addresses := make([]resolver.Address, 0, len(conn.endpoints))
		for _, endpoint := range conn.endpoints {
			addresses = append(addresses, resolver.Address{Addr: endpoint})
		}
		builder.InitialState(resolver.State{Addresses: addresses})
		dialOpts = append(dialOpts,
			grpc.WithResolvers(builder),
			grpc.WithDefaultServiceConfig(roundRobinConfig),
		)
		conn.target = builder.Scheme() + ":///" + strings.Join(conn.endpoints, ",")
	}

	conn.options = dialOpts
	return conn
}

// Endpoints returns the sanitized endpoints
func (c *Conn) Endpoints() []string {
	return c.endpoints
}

// Dial creates the client connection and waits for it to be ready until ctx is done
func (c *Conn) Dial(ctx context.Context) (*grpc.ClientConn, error) {
	if c.target == "" {
		return nil, ErrEmptyAddress
	}

	conn, err := grpc.NewClient(c.target, c.options...)
	if err != nil {
		return nil, err
	}

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return conn, nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			_ = conn.Close()
			return nil, NewError(codesFromContext(ctx), fmt.Errorf("failed to connect to %s: %w", strings.Join(c.endpoints, ","), ctx.Err()))
		}
	}
}

// TrimScheme drops an http:// or https:// prefix from endpoint
func TrimScheme(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(endpoint, scheme) {
			return strings.TrimPrefix(endpoint, scheme)
		}
	}
	return endpoint
}
