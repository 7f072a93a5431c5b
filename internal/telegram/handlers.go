package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
)

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	if _, err := r.svc.RegisterUser(ctx, chatID, r.now()); err != nil {
		r.log.Error("register user failed", zap.Int64("chat", chatID), zap.Error(err))
		r.sendText(ctx, chatID, "Profile initialization error. Please try again later.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard()
	if err := r.sendSingle(ctx, msg); err != nil {
		r.log.Error("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) handleToday(ctx context.Context, chatID int64) {
	doses, err := r.svc.TodayDoses(ctx, chatID, r.today())
	if err != nil {
		r.log.Error("today query failed", zap.Int64("chat", chatID), zap.Error(err))
		r.sendText(ctx, chatID, "Error reading today's doses.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatDoseList("📅 Today:", doses))
	msg.ReplyMarkup = historyKeyboard()
	if err := r.sendSingle(ctx, msg); err != nil {
		r.log.Error("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) handleHistory(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Which period?")
	msg.ReplyMarkup = historyKeyboard()
	if err := r.sendSingle(ctx, msg); err != nil {
		r.log.Error("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) handleHistoryRange(ctx context.Context, chatID int64, period, cbID string) {
	r.answerCallback(cbID, "")

	today := r.clk.Now().In(r.loc)
	var title, start, end string
	switch period {
	case "yesterday":
		d := domain.FormatDate(today.AddDate(0, 0, -1))
		title, start, end = "📅 Yesterday:", d, d
	case "week":
		title = "🗓 Last 7 days:"
		start = domain.FormatDate(today.AddDate(0, 0, -6))
		end = domain.FormatDate(today)
	default:
		return
	}

	doses, err := r.svc.DoseHistory(ctx, chatID, start, end)
	if err != nil {
		r.log.Error("history query failed", zap.Int64("chat", chatID), zap.Error(err))
		r.sendText(ctx, chatID, "Error reading dose history.")
		return
	}
	r.sendText(ctx, chatID, formatDoseList(title, doses))
}

// --- Dose reminder callbacks ---

func (r *Router) handleDoseTaken(ctx context.Context, chatID, doseID int64, cbID string) {
	ok, err := r.svc.MarkTaken(ctx, doseID, r.now())
	if err != nil {
		r.log.Error("mark taken failed", zap.Int64("dose", doseID), zap.Error(err))
		r.answerCallback(cbID, "Storage error, try again.")
		return
	}
	if !ok {
		// Already taken, missed, or deleted: not an error, just stale UI.
		r.answerCallback(cbID, "Already handled.")
		return
	}
	r.answerCallback(cbID, "Recorded ✅")
	r.sendText(ctx, chatID, "✅ Dose recorded as taken.")
}

func (r *Router) handleDoseSnooze(ctx context.Context, chatID, doseID int64, cbID string) {
	set, err := r.svc.ResolveSettings(ctx, chatID)
	if err != nil {
		r.log.Error("settings lookup failed", zap.Int64("chat", chatID), zap.Error(err))
		r.answerCallback(cbID, "Storage error, try again.")
		return
	}

	ok, interval, err := r.svc.Snooze(ctx, doseID, set.IntervalMinutes)
	if err != nil {
		r.log.Error("snooze failed", zap.Int64("dose", doseID), zap.Error(err))
		r.answerCallback(cbID, "Storage error, try again.")
		return
	}
	if !ok {
		r.answerCallback(cbID, "Already handled.")
		return
	}
	r.answerCallback(cbID, "Snoozed ⏰")
	r.sendText(ctx, chatID, fmt.Sprintf("⏰ Snoozed for %d minutes.", interval))
}

// --- Add medicine flow (name → dosage → times) ---

func (r *Router) handleAdd(ctx context.Context, chatID int64) {
	r.setPending(chatID, &pending{step: stepMedicineName})
	r.sendText(ctx, chatID, "💊 Medicine name?")
}

func (r *Router) handleList(ctx context.Context, chatID int64) {
	meds, err := r.svc.Medicines(ctx, chatID)
	if err != nil {
		r.log.Error("medicine list failed", zap.Int64("chat", chatID), zap.Error(err))
		r.sendText(ctx, chatID, "Error reading your medicines.")
		return
	}
	if len(meds) == 0 {
		r.sendText(ctx, chatID, "📭 No medicines yet. Add one with /add.")
		return
	}
	out := "📋 Your medicines:\n"
	for _, m := range meds {
		out += "\n" + formatMedicine(m)
	}
	r.sendText(ctx, chatID, out)
}

func (r *Router) handleDelete(ctx context.Context, chatID int64) {
	meds, err := r.svc.Medicines(ctx, chatID)
	if err != nil {
		r.log.Error("medicine list failed", zap.Int64("chat", chatID), zap.Error(err))
		r.sendText(ctx, chatID, "Error reading your medicines.")
		return
	}
	if len(meds) == 0 {
		r.sendText(ctx, chatID, "📭 No medicines to delete.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "🗑 Which medicine should I remove?")
	msg.ReplyMarkup = deleteMedicineKeyboard(meds)
	if err := r.sendSingle(ctx, msg); err != nil {
		r.log.Error("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) handleDeleteMedicine(ctx context.Context, chatID, medicineID int64, cbID string) {
	ok, err := r.svc.DeleteMedicine(ctx, medicineID, r.now())
	if err != nil {
		r.log.Error("delete medicine failed", zap.Int64("medicine", medicineID), zap.Error(err))
		r.answerCallback(cbID, "Storage error, try again.")
		return
	}
	if !ok {
		r.answerCallback(cbID, "Not found.")
		return
	}
	r.answerCallback(cbID, "Removed 🗑")
	r.sendText(ctx, chatID, "🗑 Medicine removed. Past taken/missed doses stay in history.")
}

// --- Settings flow (max reminders → interval) ---

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	// The settings upsert needs a user row; create one for chats that
	// never pressed /start.
	if _, err := r.svc.RegisterUser(ctx, chatID, r.now()); err != nil {
		r.log.Error("register user failed", zap.Int64("chat", chatID), zap.Error(err))
		r.sendText(ctx, chatID, "Error reading your settings.")
		return
	}
	set, err := r.svc.ResolveSettings(ctx, chatID)
	if err != nil {
		r.log.Error("settings lookup failed", zap.Int64("chat", chatID), zap.Error(err))
		r.sendText(ctx, chatID, "Error reading your settings.")
		return
	}
	r.setPending(chatID, &pending{step: stepMaxReminders})
	r.sendText(ctx, chatID, fmt.Sprintf(
		"⚙️ Current reminder settings:\n\n"+
			"🔔 Max reminders: %d\n"+
			"⏱ Interval: %d min\n\n"+
			"To change, enter the max number of reminders (1–10), or /cancel.",
		set.MaxReminders, set.IntervalMinutes,
	))
}

func (r *Router) handleCancel(ctx context.Context, chatID int64) {
	if r.getPending(chatID) == nil {
		r.sendText(ctx, chatID, nothingText)
		return
	}
	r.clearPending(chatID)
	r.sendText(ctx, chatID, cancelText)
}

// --- Free-form dispatcher for flow input ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	p := r.getPending(chatID)
	if p == nil {
		return
	}

	switch p.step {
	case stepMedicineName:
		if text == "" {
			r.sendText(ctx, chatID, "Please send the medicine name.")
			return
		}
		p.name = text
		p.step = stepMedicineDosage
		r.sendText(ctx, chatID, "Dosage? (e.g. \"1 tablet\", or \"-\" to skip)")

	case stepMedicineDosage:
		if text != "-" {
			p.dosage = text
		}
		p.step = stepMedicineTimes
		r.sendText(ctx, chatID, "Times of day, comma separated? (e.g. 08:00, 20:00)")

	case stepMedicineTimes:
		times, err := domain.ParseTimesOfDay(text)
		if err != nil {
			r.sendText(ctx, chatID, "Invalid times. Example: 08:00, 20:00")
			return
		}
		r.clearPending(chatID)
		if _, err := r.svc.AddMedicine(ctx, chatID, p.name, p.dosage, r.now(), times); err != nil {
			r.log.Error("add medicine failed", zap.Int64("chat", chatID), zap.Error(err))
			r.sendText(ctx, chatID, "Could not save the medicine.")
			return
		}
		// Materialize today's doses right away so times later today fire.
		if _, err := r.svc.GenerateDailyDoses(ctx, r.today()); err != nil {
			r.log.Error("mid-day generation failed", zap.Error(err))
		}
		r.sendText(ctx, chatID, fmt.Sprintf("✅ Added %s. I will remind you daily.", p.name))

	case stepMaxReminders:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > 10 {
			r.sendText(ctx, chatID, "Enter a number from 1 to 10, or /cancel.")
			return
		}
		p.maxReminders = n
		p.step = stepInterval
		r.sendText(ctx, chatID, "Minutes between reminders? (e.g. 5)")

	case stepInterval:
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 || n > 120 {
			r.sendText(ctx, chatID, "Enter minutes from 1 to 120, or /cancel.")
			return
		}
		r.clearPending(chatID)
		set := domain.Settings{MaxReminders: p.maxReminders, IntervalMinutes: n}
		if err := r.svc.UpdateSettings(ctx, chatID, set); err != nil {
			r.log.Error("update settings failed", zap.Int64("chat", chatID), zap.Error(err))
			r.sendText(ctx, chatID, "Could not save settings.")
			return
		}
		r.sendText(ctx, chatID, fmt.Sprintf(
			"✅ Settings saved: up to %d reminders every %d min.",
			set.MaxReminders, set.IntervalMinutes,
		))
	}
}
