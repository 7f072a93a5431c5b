package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
	"github.com/miltonmkelley/pilyuli-bot/internal/service"
	"github.com/miltonmkelley/pilyuli-bot/internal/store"
)

const testChatID = int64(777)

type fakeSender struct {
	sent []domain.Reminder
	fail bool
}

func (f *fakeSender) SendReminder(_ context.Context, r domain.Reminder) error {
	if f.fail {
		return errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, r)
	return nil
}

// newTestScheduler seeds one medicine at 08:00 and generates its dose for
// 2025-06-15, then returns a scheduler whose fake clock starts at midnight.
func newTestScheduler(t *testing.T) (*Scheduler, *fakeSender, *service.Service, clock.FakeClock) {
	t.Helper()
	ctx := context.Background()

	repo, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := service.New(repo, zap.NewNop())
	if _, err := svc.AddMedicine(ctx, testChatID, "TestMed", "1 tab", "2025-01-01 00:00", []string{"08:00"}); err != nil {
		t.Fatalf("add medicine: %v", err)
	}

	clk := clock.NewFake()
	clk.Set(time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC))

	sender := &fakeSender{}
	s := New(svc, zap.NewNop(), sender, clk, time.UTC)

	s.generateToday(ctx)
	return s, sender, svc, clk
}

func at(clk clock.FakeClock, hour, min int) {
	clk.Set(time.Date(2025, time.June, 15, hour, min, 0, 0, time.UTC))
}

func TestGenerateToday_Idempotent(t *testing.T) {
	s, _, svc, _ := newTestScheduler(t)
	ctx := context.Background()

	// newTestScheduler already generated once; a repeat creates nothing.
	s.generateToday(ctx)

	doses, err := svc.TodayDoses(ctx, testChatID, "2025-06-15")
	if err != nil {
		t.Fatalf("today doses: %v", err)
	}
	if len(doses) != 1 {
		t.Fatalf("got %d doses after repeated generation, want 1", len(doses))
	}
}

func TestTick_DispatchesAndAdvances(t *testing.T) {
	s, sender, _, clk := newTestScheduler(t)
	ctx := context.Background()

	at(clk, 8, 0)
	s.tick(ctx)
	if len(sender.sent) != 1 {
		t.Fatalf("got %d reminders, want 1", len(sender.sent))
	}
	r := sender.sent[0]
	if r.Name != "TestMed" || r.ChatID != testChatID || r.ReminderCount != 0 {
		t.Fatalf("unexpected reminder: %+v", r)
	}

	// Same minute again: the advance moved next_reminder_at to 08:05.
	s.tick(ctx)
	if len(sender.sent) != 1 {
		t.Fatalf("dose re-delivered within the interval: %d sends", len(sender.sent))
	}

	at(clk, 8, 5)
	s.tick(ctx)
	if len(sender.sent) != 2 {
		t.Fatalf("escalation not delivered at 08:05: %d sends", len(sender.sent))
	}
	if sender.sent[1].ReminderCount != 1 {
		t.Fatalf("second delivery count = %d, want 1", sender.sent[1].ReminderCount)
	}
}

func TestTick_StopsAtEscalationCap(t *testing.T) {
	s, sender, _, clk := newTestScheduler(t)
	ctx := context.Background()

	for _, min := range []int{0, 5, 10, 15, 20, 25} {
		at(clk, 8, min)
		s.tick(ctx)
	}
	if len(sender.sent) != domain.DefaultMaxReminders {
		t.Fatalf("got %d deliveries, want cap of %d", len(sender.sent), domain.DefaultMaxReminders)
	}
}

func TestTick_DeliveryFailureRetriesUnchanged(t *testing.T) {
	s, sender, _, clk := newTestScheduler(t)
	ctx := context.Background()

	sender.fail = true
	at(clk, 8, 0)
	s.tick(ctx)
	if len(sender.sent) != 0 {
		t.Fatalf("failed delivery recorded a send: %v", sender.sent)
	}

	// Next cycle the dose is still due at its unchanged reminder time, and
	// still counts as the first reminder.
	sender.fail = false
	at(clk, 8, 1)
	s.tick(ctx)
	if len(sender.sent) != 1 {
		t.Fatalf("dose not retried after delivery failure: %d sends", len(sender.sent))
	}
	if sender.sent[0].ReminderCount != 0 {
		t.Fatalf("failed delivery advanced the counter: %+v", sender.sent[0])
	}
}

func TestTick_SweepRunsBeforeDispatch(t *testing.T) {
	s, sender, svc, clk := newTestScheduler(t)
	ctx := context.Background()

	// 10:01 is past the 08:00 dose's missed cutoff, and the dose would
	// otherwise be reminder-due (counter 0, next reminder 08:00). Sweeping
	// first must keep it out of the due list for this tick.
	at(clk, 10, 1)
	s.tick(ctx)

	if len(sender.sent) != 0 {
		t.Fatalf("missed-cutoff dose was offered a reminder: %v", sender.sent)
	}
	doses, err := svc.TodayDoses(ctx, testChatID, "2025-06-15")
	if err != nil {
		t.Fatalf("today doses: %v", err)
	}
	if doses[0].Status != domain.StatusMissed {
		t.Fatalf("dose status = %s, want missed", doses[0].Status)
	}
}

func TestTick_SnoozeReschedulesDelivery(t *testing.T) {
	s, sender, svc, clk := newTestScheduler(t)
	ctx := context.Background()

	at(clk, 8, 0)
	s.tick(ctx)
	if len(sender.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(sender.sent))
	}

	ok, _, err := svc.Snooze(ctx, sender.sent[0].DoseID, 10)
	if err != nil || !ok {
		t.Fatalf("snooze = (%v, %v)", ok, err)
	}

	// Not due until the new scheduled time.
	at(clk, 8, 5)
	s.tick(ctx)
	if len(sender.sent) != 1 {
		t.Fatalf("snoozed dose delivered early: %d sends", len(sender.sent))
	}

	at(clk, 8, 10)
	s.tick(ctx)
	if len(sender.sent) != 2 {
		t.Fatalf("snoozed dose not delivered at new time: %d sends", len(sender.sent))
	}
	if sender.sent[1].ReminderCount != 0 {
		t.Fatalf("snooze did not re-arm escalation: %+v", sender.sent[1])
	}
}
