package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
)

// UI texts in English
const (
	startText = "👋 I am a medication reminder bot.\n\n" +
		"Add a medicine with /add and I will remind you at its schedule times, " +
		"re-pinging until you confirm or the dose is missed.\n\n" +
		"/today — today's doses\n" +
		"/history — past doses\n" +
		"/list — your medicines\n" +
		"/delete — remove a medicine\n" +
		"/settings — reminder escalation"
	cancelText  = "❌ Cancelled."
	nothingText = "Nothing to cancel."
)

// reminderText renders an escalating reminder line. The count label shows
// the reminder being delivered now, e.g. "reminder 2/3"; it is omitted for
// users whose cap is 1.
func reminderText(r domain.Reminder) string {
	dosage := ""
	if r.Dosage != "" {
		dosage = fmt.Sprintf(" (%s)", r.Dosage)
	}
	label := ""
	if r.MaxReminders > 1 {
		label = fmt.Sprintf("  (reminder %d/%d)", r.ReminderCount+1, r.MaxReminders)
	}
	return fmt.Sprintf("💊 Time to take: %s%s\n🕐 %s%s",
		r.Name, dosage, domain.ClockPart(r.ScheduledAt), label)
}

// formatDoseLine renders one dose row for the today/history views.
func formatDoseLine(v domain.DoseView) string {
	clock := domain.ClockPart(v.ScheduledAt)
	switch v.Status {
	case domain.StatusTaken:
		return fmt.Sprintf("✅ %s — %s (taken at %s)", v.Name, clock, domain.ClockPart(v.TakenAt))
	case domain.StatusMissed:
		return fmt.Sprintf("❌ %s — %s (missed)", v.Name, clock)
	default:
		return fmt.Sprintf("⏳ %s — %s (pending)", v.Name, clock)
	}
}

func formatDoseList(title string, doses []domain.DoseView) string {
	if len(doses) == 0 {
		return title + "\n\nNo doses in this period."
	}
	out := title + "\n"
	for _, d := range doses {
		out += "\n" + formatDoseLine(d)
	}
	return out
}

func formatMedicine(m domain.Medicine) string {
	dosage := ""
	if m.Dosage != "" {
		dosage = fmt.Sprintf(" (%s)", m.Dosage)
	}
	times := ""
	for i, t := range m.Times {
		if i > 0 {
			times += ", "
		}
		times += t
	}
	return fmt.Sprintf("💊 %s%s — %s", m.Name, dosage, times)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/add"),
			tgbotapi.NewKeyboardButton("/today"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/history"),
			tgbotapi.NewKeyboardButton("/settings"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func doseReminderKeyboard(doseID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(doseID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Taken", "dose_taken:"+id),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Snooze", "dose_snooze:"+id),
		),
	)
}

func historyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Yesterday", "hist:yesterday"),
			tgbotapi.NewInlineKeyboardButtonData("🗓 Last 7 days", "hist:week"),
		),
	)
}

func deleteMedicineKeyboard(meds []domain.Medicine) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(meds))
	for _, m := range meds {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"🗑 "+m.Name, "del_med:"+strconv.FormatInt(m.ID, 10)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
