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

// Package keepalive keeps leases alive on a schedule.
//
// Leases are grouped by refresh interval; each interval owns one timer. When a
// timer fires every lease on it is queued, and a single drain goroutine sends
// the queued heartbeats one round trip at a time over one shared keepalive
// stream.
package keepalive

import (
	"context"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/etcdclient/errors"
	"github.com/tochemey/etcdclient/log"
	"github.com/tochemey/etcdclient/response"
)

// revokeConcurrency bounds the revocations RemoveAll runs at once
const revokeConcurrency = 8

// Refresher is a keepalive stream
type Refresher interface {
	// Refresh sends one heartbeat for leaseID and waits for its acknowledgement
	Refresh(leaseID int64) *response.Result
	// Cancel closes the stream
	Cancel()
}

// Dialer opens a new keepalive stream
type Dialer func() Refresher

// Revoker revokes a lease
type Revoker func(ctx context.Context, leaseID int64) error

// Scheduler refreshes leases periodically
type Scheduler struct {
	mu       sync.Mutex
	leases   map[int64]time.Duration
	timers   map[time.Duration]*quartz.JobKey
	refs     map[time.Duration]int
	pending  []int64
	queued   mapset.Set[int64]
	draining bool
	closed   bool
	stream   Refresher

	quartz  quartz.Scheduler
	dial    Dialer
	revoke  Revoker
	logger  log.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// New creates and starts a Scheduler. dial is called lazily the first time a
// heartbeat has to be sent and again after a stream failure.
func New(ctx context.Context, dial Dialer, revoke Revoker, logger log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.DiscardLogger
	}

	quartzScheduler, err := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	if err != nil {
		return nil, fmt.Errorf("failed to create the keepalive scheduler: %w", err)
	}

	s := &Scheduler{
		leases:  make(map[int64]time.Duration),
		timers:  make(map[time.Duration]*quartz.JobKey),
		refs:    make(map[time.Duration]int),
		queued:  mapset.NewThreadUnsafeSet[int64](),
		quartz:  quartzScheduler,
		dial:    dial,
		revoke:  revoke,
		logger:  logger,
		timeout: 5 * time.Second,
	}

	quartzScheduler.Start(context.WithoutCancel(ctx))
	return s, nil
}

// Add refreshes leaseID every interval. Adding a lease already tracked is a
// no-op, whatever its interval.
func (s *Scheduler) Add(leaseID int64, interval time.Duration) error {
	if interval <= 0 {
		return errors.ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSchedulerClosed
	}

	if _, ok := s.leases[leaseID]; ok {
		return nil
	}

	if _, ok := s.timers[interval]; !ok {
		key := quartz.NewJobKey(fmt.Sprintf("keepalive-%s", interval))
		refresh := job.NewFunctionJob[bool](func(context.Context) (bool, error) {
			s.fire(interval)
			return true, nil
		})
		if err := s.quartz.ScheduleJob(quartz.NewJobDetail(refresh, key), quartz.NewSimpleTrigger(interval)); err != nil {
			return fmt.Errorf("failed to schedule keepalive every %s: %w", interval, err)
		}
		s.timers[interval] = key
	}

	s.leases[leaseID] = interval
	s.refs[interval]++
	s.logger.Debugf("lease %x refreshed every %s", leaseID, interval)
	return nil
}

// Remove stops refreshing leaseID and, when revoke is set, revokes it once
// the bookkeeping is done. The revocation is issued even for a lease that
// is no longer tracked.
func (s *Scheduler) Remove(ctx context.Context, leaseID int64, revoke bool) error {
	s.mu.Lock()
	s.detachLocked(leaseID)
	s.mu.Unlock()

	if !revoke {
		return nil
	}
	return s.revoke(ctx, leaseID)
}

// RemoveAll stops refreshing every lease and, when revoke is set, revokes
// them concurrently. Revocation errors are combined.
func (s *Scheduler) RemoveAll(ctx context.Context, revoke bool) error {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.leases))
	for id := range s.leases {
		ids = append(ids, id)
	}
	for _, id := range ids {
		s.detachLocked(id)
	}
	s.mu.Unlock()

	if !revoke || len(ids) == 0 {
		return nil
	}

	var (
		mu  sync.Mutex
		err error
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(revokeConcurrency)
	for _, id := range ids {
		eg.Go(func() error {
			if e := s.revoke(ctx, id); e != nil {
				mu.Lock()
				err = multierr.Append(err, fmt.Errorf("failed to revoke lease %x: %w", id, e))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return err
}

// Close stops every timer and closes the keepalive stream. Tracked leases are
// left to expire.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	err := s.quartz.Clear()
	s.quartz.Stop()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	s.quartz.Wait(ctx)

	if stream != nil {
		stream.Cancel()
	}
	s.wg.Wait()
	return err
}

// Tracked reports whether leaseID is being refreshed
func (s *Scheduler) Tracked(leaseID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.leases[leaseID]
	return ok
}

// Timers returns the number of active interval timers
func (s *Scheduler) Timers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// detachLocked forgets leaseID and drops its interval timer once unused
func (s *Scheduler) detachLocked(leaseID int64) bool {
	interval, ok := s.leases[leaseID]
	if !ok {
		return false
	}
	delete(s.leases, leaseID)
	s.queued.Remove(leaseID)

	s.refs[interval]--
	if s.refs[interval] > 0 {
		return true
	}
	delete(s.refs, interval)
	if key, ok := s.timers[interval]; ok {
		if err := s.quartz.DeleteJob(key); err != nil {
			s.logger.Warnf("failed to stop keepalive timer %s: %v", interval, err)
		}
		delete(s.timers, interval)
	}
	return true
}

// fire queues every lease refreshed every interval
func (s *Scheduler) fire(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for id, every := range s.leases {
		if every != interval || s.queued.Contains(id) {
			continue
		}
		s.queued.Add(id)
		s.pending = append(s.pending, id)
	}

	if !s.draining && len(s.pending) > 0 {
		s.draining = true
		s.wg.Add(1)
		go s.drain()
	}
}

// drain sends the queued heartbeats one at a time until the queue is empty
func (s *Scheduler) drain() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if s.closed || len(s.pending) == 0 {
			s.draining = false
			s.pending = nil
			s.mu.Unlock()
			return
		}

		id := s.pending[0]
		s.pending = s.pending[1:]
		s.queued.Remove(id)
		if _, ok := s.leases[id]; !ok {
			s.mu.Unlock()
			continue
		}

		if s.stream == nil {
			s.stream = s.dial()
		}
		stream := s.stream
		s.mu.Unlock()

		result := stream.Refresh(id)
		switch {
		case result.OK():
		case result.ErrorCode == errors.NotFound:
			s.logger.Warnf("lease %x is gone, no longer refreshed", id)
			s.mu.Lock()
			s.detachLocked(id)
			s.mu.Unlock()
		default:
			s.logger.Errorf("failed to refresh lease %x: %s", id, result.ErrorMessage)
			s.mu.Lock()
			if s.stream == stream {
				s.stream = nil
			}
			s.mu.Unlock()
			stream.Cancel()
		}
	}
}
