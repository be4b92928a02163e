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

package action

import (
	"time"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3election/v3electionpb"
	"go.etcd.io/etcd/server/v3/etcdserver/api/v3lock/v3lockpb"
	"google.golang.org/grpc"

	"github.com/tochemey/etcdclient/internal/keyrange"
	"github.com/tochemey/etcdclient/log"
	"github.com/tochemey/etcdclient/response"
	"github.com/tochemey/etcdclient/telemetry"
)

// DefaultGrace bounds each step of a stream close sequence
const DefaultGrace = time.Second

// Stubs are the service clients shared by every action of a client
type Stubs struct {
	KV       etcdserverpb.KVClient
	Watch    etcdserverpb.WatchClient
	Lease    etcdserverpb.LeaseClient
	Cluster  etcdserverpb.ClusterClient
	Lock     v3lockpb.LockClient
	Election v3electionpb.ElectionClient
}

// NewStubs creates every service client over conn
func NewStubs(conn *grpc.ClientConn) Stubs {
	return Stubs{
		KV:       etcdserverpb.NewKVClient(conn),
		Watch:    etcdserverpb.NewWatchClient(conn),
		Lease:    etcdserverpb.NewLeaseClient(conn),
		Cluster:  etcdserverpb.NewClusterClient(conn),
		Lock:     v3lockpb.NewLockClient(conn),
		Election: v3electionpb.NewElectionClient(conn),
	}
}

// Parameters are the inputs of one action.
// They are passed by value and never mutated once an action holds them.
type Parameters struct {
	Stubs

	Key         string
	RangeEnd    string
	Value       string
	OldValue    string
	OldRevision int64
	Revision    int64
	LeaseID     int64
	TTL         int64
	Limit       int64
	WithPrefix  bool
	KeysOnly    bool
	CountOnly   bool

	// Timeout bounds the wait for a completion. Zero means no timeout.
	Timeout time.Duration
	// Grace bounds each step of a stream close sequence. Zero means DefaultGrace.
	Grace     time.Duration
	AuthToken string

	WatchID   int64
	Name      string
	Leader    response.LeaderKey
	PeerURLs  []string
	IsLearner bool
	MemberID  uint64

	Logger    log.Logger
	Telemetry *telemetry.Telemetry
}

// Range returns the effective key and range end of the request
func (p Parameters) Range() ([]byte, []byte) {
	return keyrange.Resolve(p.Key, p.RangeEnd, p.WithPrefix)
}

// IsRange reports whether the request spans more than one key
func (p Parameters) IsRange() bool {
	return p.WithPrefix || p.RangeEnd != ""
}

// HasToken reports whether an auth token must be attached
func (p Parameters) HasToken() bool {
	return p.AuthToken != ""
}

// Token returns the auth token
func (p Parameters) Token() string {
	return p.AuthToken
}

func (p Parameters) grace() time.Duration {
	if p.Grace <= 0 {
		return DefaultGrace
	}
	return p.Grace
}

func (p Parameters) logger() log.Logger {
	if p.Logger == nil {
		return log.DiscardLogger
	}
	return p.Logger
}
