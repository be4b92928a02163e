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
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
)

const (
	clusterID = 0x1000
	memberID  = 0x1
	raftTerm  = 2
)

// lease is a granted lease and the keys attached to it
type lease struct {
	id      int64
	ttl     int64
	expires time.Time
	keys    mapset.Set[string]
}

func (l *lease) remaining(now time.Time) int64 {
	left := int64(l.expires.Sub(now).Round(time.Second) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// store is an in-memory multi-version key space.
// Every write commits a new revision and is recorded in history for watchers.
type store struct {
	mu        sync.Mutex
	revision  int64
	compacted int64
	kvs       map[string]*mvccpb.KeyValue
	history   []*mvccpb.Event
	leases    map[int64]*lease
	nextLease int64
	watchers  map[*watcher]struct{}
	changed   chan struct{}
}

func newStore() *store {
	return &store{
		revision:  1,
		kvs:       make(map[string]*mvccpb.KeyValue),
		leases:    make(map[int64]*lease),
		nextLease: 0x7a00,
		watchers:  make(map[*watcher]struct{}),
		changed:   make(chan struct{}),
	}
}

func (s *store) header() *etcdserverpb.ResponseHeader {
	return &etcdserverpb.ResponseHeader{
		ClusterId: clusterID,
		MemberId:  memberID,
		Revision:  s.revision,
		RaftTerm:  raftTerm,
	}
}

// Header returns a response header at the current revision
func (s *store) Header() *etcdserverpb.ResponseHeader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header()
}

// Changed returns a channel closed at the next commit
func (s *store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// inRange reports whether key falls in [start, end). An empty end selects start only,
// a NUL end selects every key from start on.
func inRange(key, start, end []byte) bool {
	switch {
	case len(end) == 0:
		return bytes.Equal(key, start)
	case len(end) == 1 && end[0] == 0:
		return bytes.Compare(key, start) >= 0
	default:
		return bytes.Compare(key, start) >= 0 && bytes.Compare(key, end) < 0
	}
}

// snapshotLocked returns the key space as of revision, or the current one when revision is 0
func (s *store) snapshotLocked(revision int64) (map[string]*mvccpb.KeyValue, error) {
	if revision <= 0 || revision == s.revision {
		return s.kvs, nil
	}
	if revision > s.revision {
		return nil, rpctypes.ErrGRPCFutureRev
	}
	if revision < s.compacted {
		return nil, rpctypes.ErrGRPCCompacted
	}

	snapshot := make(map[string]*mvccpb.KeyValue)
	for _, event := range s.history {
		if event.Kv.ModRevision > revision {
			break
		}
		if event.Type == mvccpb.DELETE {
			delete(snapshot, string(event.Kv.Key))
			continue
		}
		snapshot[string(event.Kv.Key)] = event.Kv
	}
	return snapshot, nil
}

func (s *store) rangeLocked(request *etcdserverpb.RangeRequest) (*etcdserverpb.RangeResponse, error) {
	snapshot, err := s.snapshotLocked(request.Revision)
	if err != nil {
		return nil, err
	}

	var matched []*mvccpb.KeyValue
	for key, kv := range snapshot {
		if inRange([]byte(key), request.Key, request.RangeEnd) {
			matched = append(matched, kv)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return bytes.Compare(matched[i].Key, matched[j].Key) < 0
	})
	if request.SortOrder == etcdserverpb.RangeRequest_DESCEND {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	reply := &etcdserverpb.RangeResponse{Header: s.header(), Count: int64(len(matched))}
	if request.CountOnly {
		return reply, nil
	}
	if request.Limit > 0 && int64(len(matched)) > request.Limit {
		matched = matched[:request.Limit]
		reply.More = true
	}
	for _, kv := range matched {
		out := *kv
		if request.KeysOnly {
			out.Value = nil
		}
		reply.Kvs = append(reply.Kvs, &out)
	}
	return reply, nil
}

// putLocked writes key at revision and returns the value it replaced
func (s *store) putLocked(key, value []byte, leaseID, revision int64) (*mvccpb.KeyValue, error) {
	if len(key) == 0 {
		return nil, rpctypes.ErrGRPCEmptyKey
	}
	if leaseID != 0 {
		if _, ok := s.leases[leaseID]; !ok {
			return nil, rpctypes.ErrGRPCLeaseNotFound
		}
	}

	prev := s.kvs[string(key)]
	kv := &mvccpb.KeyValue{
		Key:            append([]byte(nil), key...),
		Value:          append([]byte(nil), value...),
		CreateRevision: revision,
		ModRevision:    revision,
		Version:        1,
		Lease:          leaseID,
	}
	if prev != nil {
		kv.CreateRevision = prev.CreateRevision
		kv.Version = prev.Version + 1
		if l, ok := s.leases[prev.Lease]; ok {
			l.keys.Remove(string(key))
		}
	}
	if l, ok := s.leases[leaseID]; ok {
		l.keys.Add(string(key))
	}

	s.kvs[string(key)] = kv
	s.history = append(s.history, &mvccpb.Event{Type: mvccpb.PUT, Kv: kv, PrevKv: prev})
	return prev, nil
}

// deleteLocked removes every key in [key, end) at revision and returns the removed values
func (s *store) deleteLocked(key, end []byte, revision int64) []*mvccpb.KeyValue {
	var removed []*mvccpb.KeyValue
	for name, kv := range s.kvs {
		if inRange([]byte(name), key, end) {
			removed = append(removed, kv)
		}
	}
	sort.Slice(removed, func(i, j int) bool {
		return bytes.Compare(removed[i].Key, removed[j].Key) < 0
	})

	for _, kv := range removed {
		delete(s.kvs, string(kv.Key))
		if l, ok := s.leases[kv.Lease]; ok {
			l.keys.Remove(string(kv.Key))
		}
		tombstone := &mvccpb.KeyValue{Key: kv.Key, ModRevision: revision}
		s.history = append(s.history, &mvccpb.Event{Type: mvccpb.DELETE, Kv: tombstone, PrevKv: kv})
	}
	return removed
}

// commitLocked closes a write: it publishes the history recorded since mark
// to the watchers and wakes pollers.
func (s *store) commitLocked(mark int) {
	if len(s.history) == mark {
		return
	}
	s.revision++
	events := s.history[mark:]
	for w := range s.watchers {
		w.offer(events)
	}
	close(s.changed)
	s.changed = make(chan struct{})
}

// Put writes one key
func (s *store) Put(key, value []byte, leaseID int64) (*mvccpb.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mark := len(s.history)
	prev, err := s.putLocked(key, value, leaseID, s.revision+1)
	if err != nil {
		return nil, err
	}
	s.commitLocked(mark)
	return prev, nil
}

// Delete removes the keys in [key, end)
func (s *store) Delete(key, end []byte) []*mvccpb.KeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	mark := len(s.history)
	removed := s.deleteLocked(key, end, s.revision+1)
	s.commitLocked(mark)
	return removed
}

// Get returns the current value of key
func (s *store) Get(key []byte) *mvccpb.KeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kvs[string(key)]
}

// Acquire writes key unless it exists and returns the current value
func (s *store) Acquire(key, value []byte, leaseID int64) (*mvccpb.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kv, ok := s.kvs[string(key)]; ok {
		return kv, nil
	}
	mark := len(s.history)
	if _, err := s.putLocked(key, value, leaseID, s.revision+1); err != nil {
		return nil, err
	}
	s.commitLocked(mark)
	return s.kvs[string(key)], nil
}

// Replace rewrites the value of key, keeping its lease, when key was created
// at createRevision. It reports false when the key is gone or was recreated.
func (s *store) Replace(key, value []byte, createRevision int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kv, ok := s.kvs[string(key)]
	if !ok || kv.CreateRevision != createRevision {
		return false, nil
	}
	mark := len(s.history)
	if _, err := s.putLocked(key, value, kv.Lease, s.revision+1); err != nil {
		return false, err
	}
	s.commitLocked(mark)
	return true, nil
}

// DeleteIf removes key when it was created at createRevision
func (s *store) DeleteIf(key []byte, createRevision int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kv, ok := s.kvs[string(key)]
	if !ok || kv.CreateRevision != createRevision {
		return false
	}
	mark := len(s.history)
	s.deleteLocked(key, nil, s.revision+1)
	s.commitLocked(mark)
	return true
}

// Owners returns the keys under prefix ordered by create revision
func (s *store) Owners(prefix []byte) []*mvccpb.KeyValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owners []*mvccpb.KeyValue
	for key, kv := range s.kvs {
		if bytes.HasPrefix([]byte(key), prefix) {
			owners = append(owners, kv)
		}
	}
	sort.Slice(owners, func(i, j int) bool {
		return owners[i].CreateRevision < owners[j].CreateRevision
	})
	return owners
}

// Compact forgets history before revision
func (s *store) Compact(revision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if revision > s.revision {
		return rpctypes.ErrGRPCFutureRev
	}
	if revision <= s.compacted {
		return rpctypes.ErrGRPCCompacted
	}
	s.compacted = revision
	return nil
}

// Grant creates a lease. A zero id lets the store pick one.
func (s *store) Grant(id, ttl int64) (*lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		s.nextLease++
		id = s.nextLease
	}
	if _, ok := s.leases[id]; ok {
		return nil, rpctypes.ErrGRPCLeaseExist
	}
	l := &lease{
		id:      id,
		ttl:     ttl,
		expires: time.Now().Add(time.Duration(ttl) * time.Second),
		keys:    mapset.NewThreadUnsafeSet[string](),
	}
	s.leases[id] = l
	return l, nil
}

// Revoke drops a lease and deletes its keys in one revision
func (s *store) Revoke(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeLocked(id)
}

func (s *store) revokeLocked(id int64) error {
	l, ok := s.leases[id]
	if !ok {
		return rpctypes.ErrGRPCLeaseNotFound
	}

	mark := len(s.history)
	revision := s.revision + 1
	keys := l.keys.ToSlice()
	sort.Strings(keys)
	for _, key := range keys {
		s.deleteLocked([]byte(key), nil, revision)
	}
	delete(s.leases, id)
	s.commitLocked(mark)
	return nil
}

// Renew extends a lease by its TTL. It returns false for an unknown lease.
func (s *store) Renew(id int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leases[id]
	if !ok {
		return 0, false
	}
	l.expires = time.Now().Add(time.Duration(l.ttl) * time.Second)
	return l.ttl, true
}

// TimeToLive describes a lease, or reports TTL -1 for an unknown one
func (s *store) TimeToLive(id int64, keys bool) *etcdserverpb.LeaseTimeToLiveResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply := &etcdserverpb.LeaseTimeToLiveResponse{Header: s.header(), ID: id, TTL: -1}
	l, ok := s.leases[id]
	if !ok {
		return reply
	}
	reply.TTL = l.remaining(time.Now())
	reply.GrantedTTL = l.ttl
	if keys {
		names := l.keys.ToSlice()
		sort.Strings(names)
		for _, name := range names {
			reply.Keys = append(reply.Keys, []byte(name))
		}
	}
	return reply
}

// Leases lists the active lease ids in ascending order
func (s *store) Leases() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.leases))
	for id := range s.leases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Expire revokes every lease past its deadline
func (s *store) Expire(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.leases {
		if now.After(l.expires) {
			_ = s.revokeLocked(id)
		}
	}
}
