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

package response

import (
	"slices"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
)

// KeyValue is a decoded key-value record.
// TTL is not part of the wire record; it is filled from lease replies.
type KeyValue struct {
	Key            string
	Value          string
	CreateRevision int64
	ModRevision    int64
	Version        int64
	Lease          int64
	TTL            int64
}

// FromKV converts a wire key-value. A nil record yields the zero KeyValue.
func FromKV(kv *mvccpb.KeyValue) KeyValue {
	if kv == nil {
		return KeyValue{}
	}
	return KeyValue{
		Key:            string(kv.Key),
		Value:          string(kv.Value),
		CreateRevision: kv.CreateRevision,
		ModRevision:    kv.ModRevision,
		Version:        kv.Version,
		Lease:          kv.Lease,
	}
}

// IsZero reports whether the record is empty
func (kv KeyValue) IsZero() bool {
	return kv == KeyValue{}
}

// EventType is the kind of mutation carried by an Event
type EventType int

const (
	// EventPut is a put or an update of a key
	EventPut EventType = iota
	// EventDelete is a deletion of a key
	EventDelete
)

// String returns the event type name
func (t EventType) String() string {
	if t == EventDelete {
		return "DELETE"
	}
	return "PUT"
}

// Event is one change delivered by a watch
type Event struct {
	Type   EventType
	KV     KeyValue
	PrevKV KeyValue
}

// FromEvent converts a wire event
func FromEvent(event *mvccpb.Event) Event {
	out := Event{
		KV:     FromKV(event.Kv),
		PrevKV: FromKV(event.PrevKv),
	}
	if event.Type == mvccpb.DELETE {
		out.Type = EventDelete
	}
	return out
}

// Member is a cluster member
type Member struct {
	ID         uint64
	Name       string
	PeerURLs   []string
	ClientURLs []string
	IsLearner  bool
}

// FromMember converts a wire member
func FromMember(member *etcdserverpb.Member) Member {
	if member == nil {
		return Member{}
	}
	return Member{
		ID:         member.ID,
		Name:       member.Name,
		PeerURLs:   append([]string(nil), member.PeerURLs...),
		ClientURLs: append([]string(nil), member.ClientURLs...),
		IsLearner:  member.IsLearner,
	}
}

func (m Member) clone() Member {
	m.PeerURLs = slices.Clone(m.PeerURLs)
	m.ClientURLs = slices.Clone(m.ClientURLs)
	return m
}

func cloneMembers(members []Member) []Member {
	if members == nil {
		return nil
	}
	cloned := make([]Member, len(members))
	for i, member := range members {
		cloned[i] = member.clone()
	}
	return cloned
}

// LeaderKey identifies an election leadership held by a campaign
type LeaderKey struct {
	Name  string
	Key   string
	Rev   int64
	Lease int64
}
