// Package service implements the dose lifecycle engine: daily dose
// materialization, due-reminder selection with escalation, atomic state
// transitions and the missed-dose sweep. All timing arguments arrive as
// fixed "YYYY-MM-DD HH:MM" stamps computed by the caller, never read from
// an ambient clock, so every comparison within one job run is consistent.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
	"github.com/miltonmkelley/pilyuli-bot/internal/store"
)

// missedGrace is how long after its scheduled time a still-unresolved dose
// stays eligible for reminders before the sweep flips it to missed.
const missedGrace = 2 * time.Hour

// Service exposes the dose lifecycle and its supporting user/medicine
// operations on top of a Repo.
type Service struct {
	repo store.Repo
	log  *zap.Logger
}

// New creates a Service.
func New(repo store.Repo, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GenerateDailyDoses materializes doses for the given date (YYYY-MM-DD)
// from every schedule entry. Idempotent: safe to call at the midnight
// trigger, again at startup as a catch-up, and mid-day. Returns the number
// of doses actually created.
func (s *Service) GenerateDailyDoses(ctx context.Context, date string) (int, error) {
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return 0, fmt.Errorf("bad date %q: %w", date, err)
	}
	created, err := s.repo.GenerateDoses(ctx, date)
	if err != nil {
		return 0, err
	}
	s.log.Debug("doses generated", zap.String("date", date), zap.Int("created", created))
	return created, nil
}

// DueReminders returns the doses due for a (re-)reminder at now.
func (s *Service) DueReminders(ctx context.Context, now string) ([]domain.Reminder, error) {
	return s.repo.DueReminders(ctx, now)
}

// MarkReminderSent advances a dose's escalation state after a confirmed
// delivery: counter +1, next reminder pushed intervalMinutes past the
// dose's effective reminder time. Must not be called when delivery failed;
// leaving the row untouched is the retry mechanism.
func (s *Service) MarkReminderSent(ctx context.Context, doseID int64, intervalMinutes int) error {
	return s.repo.AdvanceReminder(ctx, doseID, intervalMinutes)
}

// MarkTaken transitions a dose to taken. False means the dose is missing
// or already resolved; callers present that as "already handled", not as
// an error.
func (s *Service) MarkTaken(ctx context.Context, doseID int64, takenAt string) (bool, error) {
	return s.repo.MarkTaken(ctx, doseID, takenAt)
}

// Snooze pushes a dose's scheduled time forward and fully re-arms its
// escalation budget, as if freshly generated at the new time. A
// non-positive interval falls back to the fixed default. Returns whether
// the transition applied and the interval actually used.
func (s *Service) Snooze(ctx context.Context, doseID int64, intervalMinutes int) (bool, int, error) {
	if intervalMinutes <= 0 {
		intervalMinutes = domain.DefaultIntervalMinutes
	}
	ok, err := s.repo.SnoozeDose(ctx, doseID, intervalMinutes)
	return ok, intervalMinutes, err
}

// ProcessMissedDoses transitions every still-scheduled dose more than the
// grace window past its scheduled time to missed, in one bulk update.
// Returns how many doses were flipped.
func (s *Service) ProcessMissedDoses(ctx context.Context, now string) (int, error) {
	t, err := domain.ParseStamp(now, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("bad stamp %q: %w", now, err)
	}
	cutoff := domain.FormatStamp(t.Add(-missedGrace))
	return s.repo.MarkMissedBefore(ctx, cutoff)
}

// TodayDoses lists a user's doses for one date, ordered by scheduled time.
func (s *Service) TodayDoses(ctx context.Context, chatID int64, date string) ([]domain.DoseView, error) {
	return s.repo.DosesBetween(ctx, chatID, date+" 00:00", date+" 23:59")
}

// DoseHistory lists a user's doses with scheduled stamps between startDate
// and endDate inclusive, ordered by scheduled time.
func (s *Service) DoseHistory(ctx context.Context, chatID int64, startDate, endDate string) ([]domain.DoseView, error) {
	return s.repo.DosesBetween(ctx, chatID, startDate+" 00:00", endDate+" 23:59")
}

// ResolveSettings returns the user's reminder settings, falling back to
// the fixed defaults when no row exists. Resolved per call so a mid-cycle
// settings change is picked up immediately; this is the single source of
// truth for the escalation cap and interval.
func (s *Service) ResolveSettings(ctx context.Context, chatID int64) (domain.Settings, error) {
	set, ok, err := s.repo.Settings(ctx, chatID)
	if err != nil {
		return domain.Settings{}, err
	}
	if !ok {
		return domain.DefaultSettings(), nil
	}
	return set, nil
}
