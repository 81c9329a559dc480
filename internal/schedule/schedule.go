// Package schedule fires runs from a cron expression and from manual
// requests, keeping at most one run active per process.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sznuper/cronpush/internal/runner"
)

// RunFunc performs one run. It must honor ctx cancellation.
type RunFunc func(ctx context.Context, src runner.Source)

// Overlap policies for a trigger that arrives while a run is active.
const (
	OverlapSkip  = "skip"
	OverlapDelay = "delay"
)

// Scheduler owns the cron loop. Timer ticks and manual triggers share one
// guard, so the working copy never sees two runs at once.
type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	run     RunFunc
	logger  *slog.Logger
	overlap string

	active sync.Mutex

	mu    sync.Mutex
	entry cron.EntryID
	spec  string
}

// New creates a stopped Scheduler. Runs receive ctx.
func New(ctx context.Context, overlap string, logger *slog.Logger, run RunFunc) *Scheduler {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		ctx:     ctx,
		run:     run,
		logger:  logger,
		overlap: overlap,
	}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return s
}

// Reschedule replaces the timer with spec. An empty spec disables the timer
// and leaves manual triggers working.
func (s *Scheduler) Reschedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec == s.spec && s.entry != 0 {
		return nil
	}

	var id cron.EntryID
	if spec != "" {
		var err error
		id, err = s.cron.AddFunc(spec, func() { s.Trigger(runner.SourceTimer) })
		if err != nil {
			return fmt.Errorf("scheduling %q: %w", spec, err)
		}
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.spec = spec
	s.logger.Info("schedule set", "spec", spec)
	return nil
}

// Next returns the next timer fire time, or zero when no timer is set or the
// scheduler is not started.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Trigger performs a run from src under the overlap policy. It reports
// whether the run happened; with the skip policy a trigger that arrives
// during another run is dropped.
func (s *Scheduler) Trigger(src runner.Source) bool {
	if s.ctx.Err() != nil {
		return false
	}
	if s.overlap == OverlapDelay {
		s.active.Lock()
	} else if !s.active.TryLock() {
		s.logger.Warn("run still in progress, skipping trigger", "trigger", src)
		return false
	}
	defer s.active.Unlock()

	// A delayed trigger may have waited out a shutdown.
	if s.ctx.Err() != nil {
		s.logger.Info("shutting down, dropping queued trigger", "trigger", src)
		return false
	}
	s.run(s.ctx, src)
	return true
}

// Start begins firing timer ticks in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the timer and waits for a running timer job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger routes robfig/cron logs into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
