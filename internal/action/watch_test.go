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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/internal/etcdtest"
	"github.com/tochemey/etcdclient/response"
)

func awaitEstablished(t *testing.T, w *Watch) {
	t.Helper()
	select {
	case <-w.Established():
	case <-time.After(5 * time.Second):
		t.Fatal("watch was never established")
	}
}

func awaitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never closed")
	}
}

func TestWatch(t *testing.T) {
	ctx := context.Background()

	t.Run("With a single event", func(t *testing.T) {
		h := newCheckedHarness(t)

		w := NewWatch(ctx, h.params("/w"))
		awaitEstablished(t, w)
		h.server.Put("/w", "1")

		r := w.Result()
		require.True(t, r.OK(), r.ErrorMessage)
		assert.Equal(t, "create", r.Action)
		assert.Equal(t, "1", r.Value.Value)
		assert.Len(t, r.Events, 1)
		assert.Equal(t, w.WatchID(), r.WatchID)
		awaitDone(t, w.Done())
	})
	t.Run("With history from a revision", func(t *testing.T) {
		h := newHarness(t)
		h.server.Put("/w", "1")
		h.server.Put("/w", "2")

		p := h.params("/w")
		p.Revision = 2
		r := NewWatch(ctx, p).Result()
		require.True(t, r.OK(), r.ErrorMessage)
		assert.Equal(t, "1", r.Value.Value)
	})
	t.Run("With a prefix and a deletion", func(t *testing.T) {
		h := newHarness(t)
		h.server.Put("/dir/a", "1")

		p := h.params("/dir/")
		p.WithPrefix = true
		w := NewWatch(ctx, p)
		awaitEstablished(t, w)

		d := h.params("/dir/a")
		require.True(t, NewDelete(ctx, d).Result().OK())

		r := w.Result()
		require.True(t, r.OK(), r.ErrorMessage)
		assert.Equal(t, "delete", r.Action)
		assert.Equal(t, "1", r.PrevValue.Value)
	})
	t.Run("With a timeout", func(t *testing.T) {
		h := newCheckedHarness(t)

		p := h.params("/quiet")
		p.Timeout = 100 * time.Millisecond
		r := NewWatch(ctx, p).Result()
		assert.Equal(t, errors.DeadlineExceeded, r.ErrorCode)
	})
	t.Run("With a compacted revision", func(t *testing.T) {
		h := newHarness(t)
		h.server.Put("/w", "1")
		h.server.Put("/w", "2")
		require.NoError(t, h.server.Compact(3))

		p := h.params("/w")
		p.Revision = 2
		w := NewWatch(ctx, p)
		r := w.Result()
		assert.Equal(t, errors.OutOfRange, r.ErrorCode)
		assert.EqualValues(t, 3, r.CompactRevision)
		awaitDone(t, w.Done())
	})
	t.Run("With cancellation of a single-shot watch", func(t *testing.T) {
		h := newCheckedHarness(t)

		w := NewWatch(ctx, h.params("/w"))
		awaitEstablished(t, w)
		w.Cancel()

		r := w.Result()
		assert.Equal(t, errors.ActionCancelled, r.ErrorCode)
		assert.True(t, w.Cancelled())
	})
	t.Run("With a continuous watcher", func(t *testing.T) {
		h := newCheckedHarness(t)

		var (
			mu       sync.Mutex
			received []string
		)
		values := func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), received...)
		}
		w := NewWatcher(ctx, h.params("/c"), func(resp *response.Response) {
			mu.Lock()
			defer mu.Unlock()
			for _, event := range resp.Events() {
				received = append(received, event.KV.Value)
			}
		})
		awaitEstablished(t, w)

		// one write at a time, each delivered before the next
		for i, value := range []string{"1", "2", "3"} {
			h.server.Put("/c", value)
			require.Eventually(t, func() bool { return len(values()) == i+1 }, 5*time.Second, 10*time.Millisecond)
		}

		// back to back writes may share a batch, every event is kept
		for _, value := range []string{"4", "5", "6"} {
			h.server.Put("/c", value)
		}
		require.Eventually(t, func() bool { return len(values()) == 6 }, 5*time.Second, 10*time.Millisecond)

		w.Cancel()
		r := w.Result()
		require.True(t, r.OK(), r.ErrorMessage)
		assert.Equal(t, w.WatchID(), r.WatchID)
		assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, values())
	})
	t.Run("With a single-shot watch past the current revision", func(t *testing.T) {
		h := newCheckedHarness(t)
		h.server.Put("/f", "1")

		p := h.params("/f")
		p.Revision = h.server.Revision() + 10
		w := NewWatch(ctx, p)

		r := w.Result()
		require.True(t, r.OK(), r.ErrorMessage)
		assert.Empty(t, r.Events)
		assert.Equal(t, "watch", r.Action)
		assert.Equal(t, h.server.Revision(), r.Index)
		assert.Equal(t, w.WatchID(), r.WatchID)
		awaitDone(t, w.Done())
	})
	t.Run("With a continuous watcher past the current revision", func(t *testing.T) {
		h := newCheckedHarness(t)

		deliveries := make(chan *response.Response, 4)
		p := h.params("/f")
		p.Revision = h.server.Revision() + 1
		w := NewWatcher(ctx, p, func(resp *response.Response) {
			deliveries <- resp
		})

		var ack *response.Response
		select {
		case ack = <-deliveries:
		case <-time.After(5 * time.Second):
			t.Fatal("the watch acknowledgement was never delivered")
		}
		assert.True(t, ack.IsOK())
		assert.Empty(t, ack.Events())

		h.server.Put("/f", "1")
		select {
		case resp := <-deliveries:
			assert.Equal(t, "create", resp.Action())
			assert.Equal(t, "1", resp.Value().Value)
		case <-time.After(5 * time.Second):
			t.Fatal("the write was never delivered")
		}

		w.Cancel()
		awaitDone(t, w.Done())
	})
	t.Run("With concurrent cancellation", func(t *testing.T) {
		h := newCheckedHarness(t)

		w := NewWatcher(ctx, h.params("/c"), func(*response.Response) {})
		awaitEstablished(t, w)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.Cancel()
			}()
		}
		wg.Wait()

		awaitDone(t, w.Done())
		assert.True(t, w.Result().OK())
	})
	t.Run("With cancellation before the stream is open", func(t *testing.T) {
		h := newCheckedHarness(t)

		w := NewWatcher(ctx, h.params("/c"), func(*response.Response) {})
		w.Cancel()
		awaitDone(t, w.Done())
	})
	t.Run("With a server that never closes the stream", func(t *testing.T) {
		h := newCheckedHarness(t, etcdtest.WithStallingStreams())

		p := h.params("/c")
		p.Grace = 100 * time.Millisecond
		w := NewWatcher(ctx, p, func(*response.Response) {})
		awaitEstablished(t, w)

		start := time.Now()
		w.Cancel()
		awaitDone(t, w.Done())
		assert.Less(t, time.Since(start), 2*time.Second)
	})
	t.Run("With the server going away", func(t *testing.T) {
		h := newHarness(t)

		w := NewWatcher(ctx, h.params("/c"), func(*response.Response) {})
		awaitEstablished(t, w)
		h.server.Stop()

		r := w.Result()
		assert.False(t, r.OK())
		assert.Equal(t, errors.Unavailable, r.ErrorCode)
	})
}
