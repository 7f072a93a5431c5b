// Package scheduler drives the periodic dose jobs: daily generation at
// 00:01 local time and a combined per-minute tick that sweeps missed doses
// and then dispatches due reminders. The sweep runs strictly before the
// due-selection inside one tick, so a dose past the missed cutoff is never
// also offered a reminder in the same cycle.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
	"github.com/miltonmkelley/pilyuli-bot/internal/service"
)

const (
	generateSpec = "1 0 * * *"
	tickSpec     = "@every 1m"
)

// Sender delivers one reminder to its owner. telegram.Router implements it.
type Sender interface {
	SendReminder(ctx context.Context, r domain.Reminder) error
}

// Scheduler owns the cron entries. Store access, clock and transport are
// all injected at construction; there are no package-level singletons.
type Scheduler struct {
	svc    *service.Service
	log    *zap.Logger
	sender Sender
	clk    clock.Clock
	loc    *time.Location
	cron   *cron.Cron
}

// New creates a Scheduler for the given location. The clock is read once
// per job run and threaded through every comparison in that run.
func New(svc *service.Service, log *zap.Logger, sender Sender, clk clock.Clock, loc *time.Location) *Scheduler {
	return &Scheduler{
		svc:    svc,
		log:    log,
		sender: sender,
		clk:    clk,
		loc:    loc,
		cron:   cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the jobs, runs a catch-up generation for today (the
// process may have been down at 00:01), and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(generateSpec, func() { s.generateToday(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(tickSpec, func() { s.tick(ctx) }); err != nil {
		return err
	}

	s.generateToday(ctx)
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("generate", generateSpec),
		zap.String("tick", tickSpec),
		zap.String("tz", s.loc.String()),
	)
	return nil
}

// Stop halts the cron loop. Running jobs finish their current cycle.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// generateToday materializes today's doses. Failures are logged and left
// for the next trigger; generation is idempotent so re-runs are safe.
func (s *Scheduler) generateToday(ctx context.Context) {
	runID := uuid.NewString()
	today := domain.FormatDate(s.clk.Now().In(s.loc))

	created, err := s.svc.GenerateDailyDoses(ctx, today)
	if err != nil {
		s.log.Error("dose generation failed", zap.String("run", runID), zap.String("date", today), zap.Error(err))
		return
	}
	if created > 0 {
		s.log.Info("doses generated", zap.String("run", runID), zap.String("date", today), zap.Int("created", created))
	}
}

// tick performs one cycle: sweep missed doses, then dispatch due
// reminders. If the sweep fails the dispatch is skipped for this tick —
// dispatching against an unswept table could remind about doses that are
// already past the missed cutoff.
func (s *Scheduler) tick(ctx context.Context) {
	runID := uuid.NewString()
	now := domain.FormatStamp(s.clk.Now().In(s.loc))

	missed, err := s.svc.ProcessMissedDoses(ctx, now)
	if err != nil {
		s.log.Error("missed sweep failed", zap.String("run", runID), zap.Error(err))
		return
	}
	if missed > 0 {
		s.log.Info("doses marked missed", zap.String("run", runID), zap.Int("count", missed))
	}

	due, err := s.svc.DueReminders(ctx, now)
	if err != nil {
		s.log.Error("due query failed", zap.String("run", runID), zap.Error(err))
		return
	}

	for _, r := range due {
		if err := s.sender.SendReminder(ctx, r); err != nil {
			// Counter deliberately not advanced: the dose stays due and is
			// retried next tick at its unchanged next-reminder time.
			s.log.Error("reminder delivery failed",
				zap.String("run", runID),
				zap.Int64("dose", r.DoseID),
				zap.Int64("chat", r.ChatID),
				zap.Error(err),
			)
			continue
		}
		if err := s.svc.MarkReminderSent(ctx, r.DoseID, r.IntervalMinutes); err != nil {
			s.log.Error("reminder advance failed", zap.String("run", runID), zap.Int64("dose", r.DoseID), zap.Error(err))
		}
	}
}
