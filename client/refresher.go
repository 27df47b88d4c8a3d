/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type refreshSchedulerOptions struct {
	Logger  *zap.Logger
	Refresh func(ctx context.Context) error
}

// refreshScheduler periodically invokes a refresh function.  At most one
// refresh loop runs at any time, reconfiguring it stops the running loop and
// waits for it to exit before a new one is spawned.
type refreshScheduler struct {
	logger  *zap.Logger
	refresh func(ctx context.Context) error

	lock      sync.Mutex
	interval  time.Duration
	stopped   bool
	ctxCancel func()
	closeCh   chan struct{}
}

func newRefreshScheduler(opts *refreshSchedulerOptions) *refreshScheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &refreshScheduler{
		logger:  logger,
		refresh: opts.Refresh,
	}
}

// Start begins refreshing every interval, with the first refresh happening
// after initialDelay.  A non-positive interval leaves refreshing disabled.
func (s *refreshScheduler) Start(interval, initialDelay time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopped {
		return
	}

	s.stopLocked()
	s.interval = interval
	if interval > 0 {
		s.startLocked(initialDelay)
	}
}

// SetInterval restarts the loop with a new interval, refreshing immediately.
func (s *refreshScheduler) SetInterval(interval time.Duration) {
	s.Start(interval, 0)
}

func (s *refreshScheduler) Interval() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.interval
}

// Stop permanently stops the scheduler, waiting for a running refresh to
// observe the cancellation.
func (s *refreshScheduler) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.stopped = true
	s.stopLocked()
}

func (s *refreshScheduler) startLocked(initialDelay time.Duration) {
	ctx, ctxCancel := context.WithCancel(context.Background())
	closeCh := make(chan struct{})

	s.ctxCancel = ctxCancel
	s.closeCh = closeCh

	go s.procThread(ctx, closeCh, s.interval, initialDelay)
}

func (s *refreshScheduler) stopLocked() {
	if s.ctxCancel == nil {
		return
	}

	// shut down our context
	s.ctxCancel()

	// wait for the shutdown to complete
	<-s.closeCh

	s.ctxCancel = nil
	s.closeCh = nil
}

func (s *refreshScheduler) procThread(ctx context.Context, closeCh chan struct{}, interval, initialDelay time.Duration) {
	defer close(closeCh)

	if !sleepCtx(ctx, initialDelay) {
		return
	}

	for {
		stime := time.Now()

		err := s.refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			if errors.Is(err, ErrNoMirrorNetwork) {
				s.logger.Debug("skipping refresh without a mirror network")
			} else {
				s.logger.Warn("failed to refresh network from the address book", zap.Error(err))
			}
		}

		wait := interval - time.Since(stime)
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// sleepCtx waits for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
