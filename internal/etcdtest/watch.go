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
	"context"
	"io"
	"sync"

	"go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	"google.golang.org/grpc"
)

// watcher buffers the events of one watch until its pump sends them
type watcher struct {
	key    []byte
	end    []byte
	prevKV bool

	mu      sync.Mutex
	pending []*mvccpb.Event
	notify  chan struct{}
}

func newWatcher(key, end []byte, prevKV bool) *watcher {
	return &watcher{key: key, end: end, prevKV: prevKV, notify: make(chan struct{}, 1)}
}

// offer queues the matching events. It never blocks.
func (w *watcher) offer(events []*mvccpb.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	queued := false
	for _, event := range events {
		if !inRange(event.Kv.Key, w.key, w.end) {
			continue
		}
		out := &mvccpb.Event{Type: event.Type, Kv: event.Kv}
		if w.prevKV {
			out.PrevKv = event.PrevKv
		}
		w.pending = append(w.pending, out)
		queued = true
	}
	if queued {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// next waits for queued events
func (w *watcher) next(ctx context.Context) ([]*mvccpb.Event, bool) {
	for {
		w.mu.Lock()
		if len(w.pending) > 0 {
			events := w.pending
			w.pending = nil
			w.mu.Unlock()
			return events, true
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-w.notify:
		}
	}
}

// subscribe registers w and replays history from startRevision
func (s *store) subscribe(w *watcher, startRevision int64) (compacted int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if startRevision > 0 && startRevision < s.compacted {
		return s.compacted, false
	}
	if startRevision > 0 {
		var backlog []*mvccpb.Event
		for _, event := range s.history {
			if event.Kv.ModRevision >= startRevision {
				backlog = append(backlog, event)
			}
		}
		w.offer(backlog)
	}
	s.watchers[w] = struct{}{}
	return 0, true
}

func (s *store) unsubscribe(w *watcher) {
	s.mu.Lock()
	delete(s.watchers, w)
	s.mu.Unlock()
}

type watchService struct {
	etcdserverpb.UnimplementedWatchServer
	server *Server
}

func (x *watchService) RegisterService(srv *grpc.Server) {
	etcdserverpb.RegisterWatchServer(srv, x)
}

// subscription is one watch on a stream and the pump feeding it
type subscription struct {
	watcher *watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// Watch serves one watch stream. Each watch gets a pump goroutine; the
// stream returns only after every pump is gone.
func (x *watchService) Watch(stream etcdserverpb.Watch_WatchServer) error {
	var (
		sendMu sync.Mutex
		subs   = make(map[int64]*subscription)
		nextID int64
	)
	store := x.server.store
	ctx := stream.Context()

	send := func(reply *etcdserverpb.WatchResponse) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return stream.Send(reply)
	}

	stop := func(sub *subscription) {
		store.unsubscribe(sub.watcher)
		sub.cancel()
		<-sub.done
	}

	defer func() {
		for _, sub := range subs {
			stop(sub)
		}
	}()

	for {
		request, err := stream.Recv()
		if err == io.EOF {
			if x.server.stallStreams {
				<-ctx.Done()
			}
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case request.GetCreateRequest() != nil:
			create := request.GetCreateRequest()
			id := create.WatchId
			if id == 0 {
				nextID++
				id = nextID
			}

			w := newWatcher(create.Key, create.RangeEnd, create.PrevKv)
			// a compacted start revision is acked, then cancelled
			if compacted, ok := store.subscribe(w, create.StartRevision); !ok {
				if err := send(&etcdserverpb.WatchResponse{Header: store.Header(), WatchId: id, Created: true}); err != nil {
					return err
				}
				if err := send(&etcdserverpb.WatchResponse{
					Header:          store.Header(),
					WatchId:         id,
					Canceled:        true,
					CompactRevision: compacted,
				}); err != nil {
					return err
				}
				continue
			}

			if err := send(&etcdserverpb.WatchResponse{Header: store.Header(), WatchId: id, Created: true}); err != nil {
				store.unsubscribe(w)
				return err
			}

			pumpCtx, cancel := context.WithCancel(ctx)
			sub := &subscription{watcher: w, cancel: cancel, done: make(chan struct{})}
			subs[id] = sub
			go func() {
				defer close(sub.done)
				for {
					events, ok := w.next(pumpCtx)
					if !ok {
						return
					}
					header := store.Header()
					header.Revision = events[len(events)-1].Kv.ModRevision
					if err := send(&etcdserverpb.WatchResponse{Header: header, WatchId: id, Events: events}); err != nil {
						return
					}
				}
			}()

		case request.GetCancelRequest() != nil:
			if x.server.stallStreams {
				continue
			}
			id := request.GetCancelRequest().WatchId
			if sub, ok := subs[id]; ok {
				stop(sub)
				delete(subs, id)
			}
			if err := send(&etcdserverpb.WatchResponse{Header: store.Header(), WatchId: id, Canceled: true}); err != nil {
				return err
			}
		}
	}
}
