// Package scheduler runs a download batch on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one scheduled run.
type Task func(ctx context.Context) error

// Scheduler fires a single task on a six-field (seconds first) cron spec.
// A run that is still going when the next tick arrives makes that tick a
// no-op.
type Scheduler struct {
	cron  *cron.Cron
	ctx   context.Context
	task  Task
	entry cron.EntryID
}

func New(ctx context.Context, spec string, task Task) (*Scheduler, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{cron: c, ctx: ctx, task: task}
	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("register schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "next", s.Next())
}

// Stop prevents new runs and waits for a running one to return or for ctx
// to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	slog.Info("scheduler stopped")
}

// RunNow executes the task immediately on the caller's goroutine.
func (s *Scheduler) RunNow() {
	s.run()
}

func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run() {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	slog.Info("scheduled run starting")
	if err := s.task(s.ctx); err != nil {
		slog.Error("scheduled run failed", "elapsed", time.Since(start), "error", err)
		return
	}
	slog.Info("scheduled run finished", "elapsed", time.Since(start), "next", s.Next())
}
