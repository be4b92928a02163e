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
	"sync"
	"time"
)

// tag identifies the pending operation a completion belongs to
type tag uint8

const (
	tagCall tag = iota + 1
	tagCreate
	tagWrite
	tagRead
	tagCancelWrite
	tagWritesDone
	tagFinish
	tagWake
)

var tagNames = map[tag]string{
	tagCall:        "call",
	tagCreate:      "create",
	tagWrite:       "write",
	tagRead:        "read",
	tagCancelWrite: "cancel-write",
	tagWritesDone:  "writes-done",
	tagFinish:      "finish",
	tagWake:        "wake",
}

func (t tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown"
}

// completion is posted once a pending operation finishes
type completion struct {
	tag   tag
	reply any
	err   error
}

type nextStatus int

const (
	gotEvent nextStatus = iota
	timedOut
	shutdown
)

// queueCapacity covers the most operations a stream can have outstanding at
// once: one read, one write and one wake-up.
const queueCapacity = 8

// completionQueue demultiplexes the completions of one action.
// Operations run on their own goroutine and post a tagged completion;
// a single drain loop consumes them through next.
type completionQueue struct {
	events    chan completion
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newCompletionQueue() *completionQueue {
	return &completionQueue{
		events: make(chan completion, queueCapacity),
		closed: make(chan struct{}),
	}
}

// start runs op and posts its completion under the given tag
func (q *completionQueue) start(t tag, op func() (any, error)) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		reply, err := op()
		q.post(completion{tag: t, reply: reply, err: err})
	}()
}

// post delivers a completion unless the queue is shut down
func (q *completionQueue) post(c completion) {
	select {
	case <-q.closed:
	case q.events <- c:
	}
}

// next waits for the next completion. A timeout of zero or less waits forever.
func (q *completionQueue) next(timeout time.Duration) (completion, nextStatus) {
	select {
	case c := <-q.events:
		return c, gotEvent
	case <-q.closed:
		return completion{}, shutdown
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case c := <-q.events:
		return c, gotEvent
	case <-q.closed:
		return completion{}, shutdown
	case <-expired:
		return completion{}, timedOut
	}
}

// shutdown stops the queue. Pending completions are dropped.
func (q *completionQueue) shutdown() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// isShutdown reports whether shutdown has been called
func (q *completionQueue) isShutdown() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// wait blocks until every started operation has returned
func (q *completionQueue) wait() {
	q.wg.Wait()
}
