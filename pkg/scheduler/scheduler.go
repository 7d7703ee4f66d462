// Package scheduler triggers sync runs on a timer and on demand, with at
// most one run in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/syncer"
)

type Runner interface {
	Run(ctx context.Context) syncer.Summary
}

// Locker guards a run across processes. Acquire reports false when
// another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

type Scheduler struct {
	logger     zerolog.Logger
	runner     Runner
	locker     Locker
	interval   time.Duration
	runOnStart bool

	running sync.Mutex

	mu   sync.Mutex
	last *syncer.Summary
}

type Option func(*Scheduler)

// WithLocker adds a cross-process lock on top of the local one.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

func New(logger zerolog.Logger, runner Runner, interval time.Duration, runOnStart bool, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:     logger.With().Str("component", "scheduler").Logger(),
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger runs one sync now, or reports run_in_progress if one is already
// running here or elsewhere.
func (s *Scheduler) Trigger(ctx context.Context) syncer.Summary {
	if !s.running.TryLock() {
		return syncer.Skip(syncer.ReasonInProgress, time.Now())
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to acquire sync lock")
			now := time.Now()
			return syncer.Summary{Status: syncer.StatusFailed, Reason: fmt.Sprintf("lock: %v", err), StartedAt: now, FinishedAt: now}
		}
		if !ok {
			s.logger.Debug().Msg("sync running in another process")
			return syncer.Skip(syncer.ReasonInProgress, time.Now())
		}
		defer release()
	}

	sum := s.runner.Run(ctx)
	s.mu.Lock()
	s.last = &sum
	s.mu.Unlock()
	return sum
}

// Last returns the summary of the most recent completed run, if any.
func (s *Scheduler) Last() (syncer.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return syncer.Summary{}, false
	}
	return *s.last, true
}

// Start triggers a run every interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info().Msg("periodic sync disabled")
		<-ctx.Done()
		return nil
	}
	s.logger.Info().Dur("interval", s.interval).Msg("periodic sync started")

	if s.runOnStart {
		s.Trigger(ctx)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("periodic sync stopped")
			return nil
		case <-ticker.C:
			sum := s.Trigger(ctx)
			if sum.Status == syncer.StatusSkipped && sum.Reason == syncer.ReasonInProgress {
				s.logger.Warn().Msg("previous sync still running, tick skipped")
			}
		}
	}
}
