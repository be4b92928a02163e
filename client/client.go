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

// Package client is an asynchronous etcd v3 client.
//
// Every operation returns a future.Future resolving to a *response.Response.
// A future only fails for client-level errors such as a closed client; server
// and transport errors are carried by the response itself, see Response.Err.
package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/flowchartsman/retry"
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/future"
	"github.com/tochemey/etcdclient/internal/action"
	"github.com/tochemey/etcdclient/internal/errorschain"
	"github.com/tochemey/etcdclient/internal/grpcc"
	"github.com/tochemey/etcdclient/internal/xsync"
	"github.com/tochemey/etcdclient/keepalive"
	"github.com/tochemey/etcdclient/log"
	"github.com/tochemey/etcdclient/response"
)

// stream is an open Watcher, Observer or KeepAlive handle
type stream interface {
	Cancel()
	Done() <-chan struct{}
}

// Client issues etcd v3 operations over one shared connection.
// It is safe for concurrent use. Call Close to release it.
type Client struct {
	config *Config
	conn   *grpc.ClientConn
	stubs  action.Stubs
	auth   etcdserverpb.AuthClient
	token  string
	logger log.Logger

	scheduler  *keepalive.Scheduler
	lockLeases *xsync.Map[string, int64]
	streams    *xsync.Map[string, stream]

	ctx    context.Context
	cancel context.CancelFunc
	closed *atomic.Bool
}

// New dials the configured endpoints and returns a ready Client.
// When a username is configured the client authenticates before returning.
func New(ctx context.Context, config *Config) (*Client, error) {
	if err := errorschain.
		New(errorschain.ReturnFirst()).
		AddErrorFn(config.Sanitize).
		AddErrorFn(config.Validate).
		Error(); err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout())
	defer cancel()

	connOpts := []grpcc.ConnOption{
		grpcc.WithConnTLS(config.TLS()),
		grpcc.WithConnMaxCallMsgSize(config.MaxCallMsgSize()),
		grpcc.WithConnKeepAlive(config.KeepAliveTime(), config.KeepAliveTimeout()),
	}
	if config.Compression() {
		connOpts = append(connOpts, grpcc.WithConnCompression(grpcc.Gzip))
	}

	conn, err := grpcc.NewConn(config.Endpoints(), connOpts...).Dial(dialCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	client, err := newClient(ctx, conn, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	client.conn = conn
	return client, nil
}

// NewFromConn returns a Client issuing its calls over an existing connection.
// The connection is not closed by Close.
func NewFromConn(ctx context.Context, conn *grpc.ClientConn, config *Config) (*Client, error) {
	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	if err := config.validate(false); err != nil {
		return nil, err
	}
	return newClient(ctx, conn, config)
}

func newClient(ctx context.Context, conn *grpc.ClientConn, config *Config) (*Client, error) {
	clientCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	client := &Client{
		config:     config,
		stubs:      action.NewStubs(conn),
		auth:       etcdserverpb.NewAuthClient(conn),
		logger:     config.Logger(),
		lockLeases: xsync.NewMap[string, int64](),
		streams:    xsync.NewMap[string, stream](),
		ctx:        clientCtx,
		cancel:     cancel,
		closed:     atomic.NewBool(false),
	}

	if err := errorschain.
		New(errorschain.ReturnFirst()).
		AddErrorFn(func() error { return client.authenticate(ctx) }).
		AddErrorFn(func() error { return client.startScheduler(ctx) }).
		Error(); err != nil {
		cancel()
		return nil, err
	}

	client.logger.Infof("etcd client ready on %v", config.Endpoints())
	return client, nil
}

// Close revokes the leases the client granted for locks, stops refreshing
// every lease, cancels the open streams and closes the connection.
// Calling Close more than once is a no-op.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.logger.Info("closing etcd client...")

	// only the lock leases are revoked, KeepAlive handles are left to expire
	var err error
	for name, leaseID := range c.lockLeases.Drain() {
		if e := c.scheduler.Remove(ctx, leaseID, true); e != nil {
			err = multierr.Append(err, fmt.Errorf("failed to release lock %s: %w", name, e))
		}
	}

	err = multierr.Combine(
		err,
		c.scheduler.RemoveAll(ctx, false),
		c.scheduler.Close(ctx),
		c.closeStreams(ctx),
	)

	c.cancel()
	if c.conn != nil {
		err = multierr.Append(err, c.conn.Close())
	}

	if err != nil {
		c.logger.Errorf("etcd client closed with errors: %v", err)
		return err
	}
	c.logger.Info("etcd client closed")
	return nil
}

// Config returns the configuration the client runs with
func (c *Client) Config() *Config {
	return c.config
}

// closeStreams cancels every open stream and waits for them to close
func (c *Client) closeStreams(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, s := range c.streams.Drain() {
		eg.Go(func() error {
			s.Cancel()
			select {
			case <-s.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return eg.Wait()
}

// authenticate fetches the token attached to every call.
// Transient failures are retried; a rejection is returned at once.
func (c *Client) authenticate(ctx context.Context) error {
	if c.config.Username() == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.DialTimeout())
	defer cancel()

	var rejected error
	retrier := retry.NewRetrier(c.config.AuthRetries(), 100*time.Millisecond, time.Second)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		resp, err := c.auth.Authenticate(ctx, &etcdserverpb.AuthenticateRequest{
			Name:     c.config.Username(),
			Password: c.config.Password(),
		})
		if err == nil {
			c.token = resp.GetToken()
			return nil
		}

		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded:
			c.logger.Warnf("authentication of %s failed, retrying: %v", c.config.Username(), err)
			return err
		default:
			rejected = err
			return nil
		}
	})

	if err = multierr.Combine(rejected, err); err != nil {
		return fmt.Errorf("failed to authenticate %s: %w", c.config.Username(), err)
	}
	return nil
}

func (c *Client) startScheduler(ctx context.Context) error {
	dial := func() keepalive.Refresher {
		return action.NewKeepAlive(c.ctx, c.params("", nil))
	}

	revoke := func(ctx context.Context, leaseID int64) error {
		p := c.params("", nil)
		p.LeaseID = leaseID
		result := action.NewLeaseRevoke(ctx, p).Result()
		if result.ErrorCode == errors.NotFound {
			return nil
		}
		return response.New(result).Err()
	}

	scheduler, err := keepalive.New(ctx, dial, revoke, c.logger)
	if err != nil {
		return err
	}
	c.scheduler = scheduler
	return nil
}

// params builds the action parameters of a call on key
func (c *Client) params(key string, opts []CallOption) action.Parameters {
	o := callOptions{timeout: c.config.Timeout()}
	for _, opt := range opts {
		opt(&o)
	}

	return action.Parameters{
		Stubs:      c.stubs,
		Key:        key,
		RangeEnd:   o.rangeEnd,
		Revision:   o.revision,
		LeaseID:    o.leaseID,
		Limit:      o.limit,
		WithPrefix: o.prefix,
		KeysOnly:   o.keysOnly,
		CountOnly:  o.countOnly,
		Timeout:    o.timeout,
		Grace:      c.config.StreamGrace(),
		AuthToken:  c.token,
		WatchID:    o.watchID,
		Logger:     c.logger,
		Telemetry:  c.config.Telemetry(),
	}
}

// run resolves the returned future with the outcome of fn
func (c *Client) run(ctx context.Context, fn func(ctx context.Context) *response.Result) future.Future[*response.Response] {
	if c.closed.Load() {
		return future.Completed[*response.Response](nil, errors.ErrClientClosed)
	}
	return future.New(ctx, func(ctx context.Context) (*response.Response, error) {
		return response.New(fn(ctx)), nil
	})
}

// track registers an open stream until it is done
func (c *Client) track(id string, s stream) {
	c.streams.Set(id, s)
	go func() {
		<-s.Done()
		c.streams.Delete(id)
	}()
}

// ttlSeconds rounds a duration up to whole seconds
func ttlSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

// refreshInterval is how often a lease granted with ttl seconds is refreshed
func refreshInterval(ttl int64) time.Duration {
	interval := time.Duration(ttl) * time.Second / 3
	if interval < 500*time.Millisecond {
		interval = 500 * time.Millisecond
	}
	return interval
}
