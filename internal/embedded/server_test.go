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

package embedded

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/tochemey/etcdclient/client"
	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/future"
	"github.com/tochemey/etcdclient/response"
)

func await(t *testing.T, f future.Future[*response.Response]) *response.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := f.Await(ctx)
	require.NoError(t, err)
	return resp
}

func awaitOK(t *testing.T, f future.Future[*response.Response]) *response.Response {
	t.Helper()
	resp := await(t, f)
	require.True(t, resp.IsOK(), "%s: %s", resp.ErrorCode(), resp.ErrorMessage())
	return resp
}

func TestServer(t *testing.T) {
	ctx := context.Background()

	config, err := NewConfig("member")
	require.NoError(t, err)
	server, err := Start(config)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, server.Stop())
		assert.NoDirExists(t, config.DataDir())
	})

	etcdClient, err := client.New(ctx, client.NewConfig(server.Endpoints()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = etcdClient.Close(ctx)
	})

	oracle, err := clientv3.New(clientv3.Config{Endpoints: server.Endpoints(), DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = oracle.Close()
	})

	t.Run("With the member listed", func(t *testing.T) {
		members := awaitOK(t, etcdClient.ListMember(ctx)).Members()
		require.Len(t, members, 1)
		assert.Equal(t, "member", members[0].Name)
	})
	t.Run("With a learner added and removed", func(t *testing.T) {
		added := awaitOK(t, etcdClient.AddMember(ctx, []string{"http://127.0.0.1:1"}, true)).Member()
		assert.True(t, added.IsLearner)
		assert.Len(t, awaitOK(t, etcdClient.ListMember(ctx)).Members(), 2)

		awaitOK(t, etcdClient.RemoveMember(ctx, added.ID))
		assert.Equal(t, errors.NotFound, await(t, etcdClient.RemoveMember(ctx, added.ID)).ErrorCode())
	})
	t.Run("With a watch behind the compacted revision", func(t *testing.T) {
		for i := range 3 {
			awaitOK(t, etcdClient.Set(ctx, "/compacted", fmt.Sprint(i)))
		}
		head := awaitOK(t, etcdClient.Head(ctx)).Index()
		_, err := oracle.Compact(ctx, head, clientv3.WithCompactPhysical())
		require.NoError(t, err)

		resp := await(t, etcdClient.Watch(ctx, "/compacted", client.WithRevision(head-1)))
		assert.Equal(t, errors.OutOfRange, resp.ErrorCode())
		assert.Equal(t, head, resp.CompactRevision())
	})
	t.Run("With a transaction", func(t *testing.T) {
		awaitOK(t, etcdClient.Set(ctx, "/txn", "a"))
		awaitOK(t, etcdClient.ModifyIf(ctx, "/txn", "b", "a"))
		assert.Equal(t, errors.CompareFailed, await(t, etcdClient.ModifyIf(ctx, "/txn", "c", "a")).ErrorCode())

		got, err := oracle.Get(ctx, "/txn")
		require.NoError(t, err)
		require.Len(t, got.Kvs, 1)
		assert.Equal(t, "b", string(got.Kvs[0].Value))
	})
	t.Run("With a lock held by a client lease", func(t *testing.T) {
		resp := awaitOK(t, etcdClient.Lock(ctx, "/mutex"))
		leases, err := oracle.Leases(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, leases.Leases)

		awaitOK(t, etcdClient.Unlock(ctx, resp.LockKey()))
		got, err := oracle.Get(ctx, "/mutex", clientv3.WithPrefix(), clientv3.WithCountOnly())
		require.NoError(t, err)
		assert.Zero(t, got.Count)
	})
	t.Run("With a stopped member", func(t *testing.T) {
		config, err := NewConfig("short-lived")
		require.NoError(t, err)
		member, err := Start(config)
		require.NoError(t, err)
		require.NoError(t, member.Stop())
		assert.Error(t, member.Stop())
	})
}

func TestConfig(t *testing.T) {
	t.Run("With defaults", func(t *testing.T) {
		config, err := NewConfig("member", WithDataDir(t.TempDir()))
		require.NoError(t, err)
		require.NoError(t, config.Validate())
		assert.Equal(t, DefaultStartTimeout, config.StartTimeout())
		assert.Len(t, config.ClientURLs(), 1)
		assert.Len(t, config.PeerURLs(), 1)
		assert.NotEqual(t, config.ClientURLs()[0].Host, config.PeerURLs()[0].Host)
	})
	t.Run("With an invalid config", func(t *testing.T) {
		config, err := NewConfig("", WithDataDir(t.TempDir()), WithStartTimeout(0))
		require.NoError(t, err)
		assert.Error(t, config.Validate())
		_, err = Start(config)
		assert.Error(t, err)
	})
}
