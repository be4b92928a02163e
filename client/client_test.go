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

package client

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kapetan-io/tackle/autotls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
	"go.uber.org/goleak"
	"google.golang.org/grpc/connectivity"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/future"
	"github.com/tochemey/etcdclient/internal/etcdtest"
	"github.com/tochemey/etcdclient/internal/grpcc"
	"github.com/tochemey/etcdclient/response"
)

func startServer(t *testing.T, opts ...etcdtest.Option) *etcdtest.Server {
	t.Helper()
	server, err := etcdtest.Start(opts...)
	require.NoError(t, err)
	t.Cleanup(server.Stop)
	return server
}

func newTestClient(t *testing.T, server *etcdtest.Server, opts ...Option) *Client {
	t.Helper()
	ctx := context.Background()
	client, err := New(ctx, NewConfig([]string{server.Endpoint()}, opts...))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close(ctx)
	})
	return client
}

// await resolves f and fails the test on a client-level error
func await(t *testing.T, f future.Future[*response.Response]) *response.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := f.Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

// awaitOK resolves f and fails the test unless the response is OK
func awaitOK(t *testing.T, f future.Future[*response.Response]) *response.Response {
	t.Helper()
	resp := await(t, f)
	require.True(t, resp.IsOK(), "%s: %s", resp.ErrorCode(), resp.ErrorMessage())
	return resp
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("With a single endpoint", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)

		awaitOK(t, client.Put(ctx, "/a", "1"))
		value, ok := server.Get("/a")
		require.True(t, ok)
		assert.Equal(t, "1", value)
		assert.Equal(t, []string{server.Endpoint()}, client.Config().Endpoints())
	})
	t.Run("With several endpoints", func(t *testing.T) {
		server := startServer(t)
		endpoints := []string{"http://" + server.Endpoint(), server.Endpoint()}
		client, err := New(ctx, NewConfig(endpoints))
		require.NoError(t, err)
		defer func() { _ = client.Close(ctx) }()

		for i := range 4 {
			awaitOK(t, client.Put(ctx, fmt.Sprintf("/rr/%d", i), "v"))
		}
		assert.EqualValues(t, 4, awaitOK(t, client.Ls(ctx, "/rr/")).Count())
	})
	t.Run("With an invalid config", func(t *testing.T) {
		client, err := New(ctx, NewConfig(nil))
		require.ErrorIs(t, err, errors.ErrNoEndpoints)
		assert.Nil(t, client)
	})
	t.Run("With an unreachable endpoint", func(t *testing.T) {
		endpoint := fmt.Sprintf("127.0.0.1:%d", dynaport.Get(1)[0])
		client, err := New(ctx, NewConfig([]string{endpoint}, WithDialTimeout(300*time.Millisecond)))
		require.Error(t, err)
		assert.Nil(t, client)

		var target *grpcc.Error
		assert.ErrorAs(t, err, &target)
	})
	t.Run("With TLS", func(t *testing.T) {
		conf := autotls.Config{AutoTLS: true}
		require.NoError(t, autotls.Setup(&conf))

		server := startServer(t, etcdtest.WithTLS(conf.ServerTLS))
		client := newTestClient(t, server, WithTLS(conf.ClientTLS))

		awaitOK(t, client.Set(ctx, "/tls", "on"))
		assert.Equal(t, "on", awaitOK(t, client.Get(ctx, "/tls")).Value().Value)
	})
	t.Run("With compression", func(t *testing.T) {
		client := newTestClient(t, startServer(t), WithCompression())

		value := strings.Repeat("v", 4096)
		awaitOK(t, client.Set(ctx, "/compressed", value))
		assert.Equal(t, value, awaitOK(t, client.Get(ctx, "/compressed")).Value().Value)
	})
	t.Run("With authentication", func(t *testing.T) {
		server := startServer(t,
			etcdtest.WithUsers(map[string]string{"root": "secret"}),
			etcdtest.WithAuthFailures(2))
		client := newTestClient(t, server, WithAuth("root", "secret"))

		// two transient failures then a success
		assert.EqualValues(t, 3, server.AuthAttempts())

		awaitOK(t, client.Put(ctx, "/auth", "1"))
		tokens := server.Tokens()
		require.Len(t, tokens, 1)
		assert.True(t, strings.HasPrefix(tokens[0], "root."))
	})
	t.Run("With a wrong password", func(t *testing.T) {
		server := startServer(t, etcdtest.WithUsers(map[string]string{"root": "secret"}))
		client, err := New(ctx, NewConfig([]string{server.Endpoint()}, WithAuth("root", "nope")))
		require.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to authenticate root")
		// a rejection is not retried
		assert.EqualValues(t, 1, server.AuthAttempts())
	})
	t.Run("With too many transient authentication failures", func(t *testing.T) {
		server := startServer(t,
			etcdtest.WithUsers(map[string]string{"root": "secret"}),
			etcdtest.WithAuthFailures(10))
		_, err := New(ctx, NewConfig([]string{server.Endpoint()},
			WithAuth("root", "secret"),
			WithAuthRetries(2)))
		require.Error(t, err)
		assert.EqualValues(t, 2, server.AuthAttempts())
	})
	t.Run("With an unauthenticated call", func(t *testing.T) {
		server := startServer(t, etcdtest.WithUsers(map[string]string{"root": "secret"}))
		client := newTestClient(t, server)

		resp := await(t, client.Put(ctx, "/auth", "1"))
		assert.Equal(t, errors.Unauthenticated, resp.ErrorCode())
	})
	t.Run("With an existing connection", func(t *testing.T) {
		server := startServer(t)
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		conn, err := grpcc.NewConn([]string{server.Endpoint()}).Dial(dialCtx)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		client, err := NewFromConn(ctx, conn, NewConfig(nil))
		require.NoError(t, err)

		awaitOK(t, client.Set(ctx, "/conn", "1"))
		assert.Equal(t, "1", awaitOK(t, client.Get(ctx, "/conn")).Value().Value)

		require.NoError(t, client.Close(ctx))
		// the connection belongs to the caller
		assert.NotEqual(t, connectivity.Shutdown, conn.GetState())
	})
	t.Run("With a closed client", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)
		require.NoError(t, client.Close(ctx))
		require.NoError(t, client.Close(ctx))

		_, err := client.Get(ctx, "/a").Await(ctx)
		assert.ErrorIs(t, err, errors.ErrClientClosed)
		_, err = client.LeaseGrant(ctx, 10).Await(ctx)
		assert.ErrorIs(t, err, errors.ErrClientClosed)
		_, err = client.Watcher(ctx, "/a", nil)
		assert.ErrorIs(t, err, errors.ErrClientClosed)
		_, err = client.Observe(ctx, "/e")
		assert.ErrorIs(t, err, errors.ErrClientClosed)
		_, err = client.KeepAlive(ctx, 10)
		assert.ErrorIs(t, err, errors.ErrClientClosed)
	})
	t.Run("With close releasing every goroutine", func(t *testing.T) {
		ignore := goleak.IgnoreCurrent()
		t.Cleanup(func() {
			// once the server is stopped too
			goleak.VerifyNone(t, ignore)
		})
		server := startServer(t)

		client, err := New(ctx, NewConfig([]string{server.Endpoint()}, WithStreamGrace(200*time.Millisecond)))
		require.NoError(t, err)

		watcher, err := client.Watcher(ctx, "/w", nil, WithPrefix())
		require.NoError(t, err)
		observer, err := client.Observe(ctx, "/e")
		require.NoError(t, err)
		handle, err := client.KeepAlive(ctx, 3)
		require.NoError(t, err)
		lock := awaitOK(t, client.Lock(ctx, "/lock"))
		require.NotEmpty(t, lock.LockKey())

		require.NoError(t, client.Close(ctx))

		for _, done := range []<-chan struct{}{watcher.Done(), observer.Done(), handle.Done()} {
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("stream still open after close")
			}
		}
		assert.True(t, watcher.Cancelled())
		assert.True(t, observer.Cancelled())
		assert.False(t, handle.Alive())

		// the lock lease is revoked, the keepalive lease is left to expire
		assert.Equal(t, []int64{handle.ID()}, server.Leases())
	})
	t.Run("With a cancelled future", func(t *testing.T) {
		server := startServer(t)
		client := newTestClient(t, server)

		awaitOK(t, client.Lock(ctx, "/busy"))
		pending := client.Lock(ctx, "/busy")
		select {
		case <-pending.Done():
			t.Fatal("lock acquired twice")
		case <-time.After(200 * time.Millisecond):
		}

		pending.Cancel()
		resp := await(t, pending)
		assert.Equal(t, errors.Canceled, resp.ErrorCode())
	})
}
