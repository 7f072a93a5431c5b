package telegram

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
	"github.com/miltonmkelley/pilyuli-bot/internal/service"
)

// Steps of the conversational flows (in-memory, per chat).
const (
	stepMedicineName   = "await_medicine_name"
	stepMedicineDosage = "await_medicine_dosage"
	stepMedicineTimes  = "await_medicine_times"
	stepMaxReminders   = "await_max_reminders"
	stepInterval       = "await_interval"
)

// pending accumulates a chat's in-flight form input.
type pending struct {
	step         string
	name         string
	dosage       string
	maxReminders int
}

// Router wires Telegram updates to handlers and holds minimal in-memory
// flow state. It also implements scheduler.Sender.
type Router struct {
	bot   *tgbotapi.BotAPI
	log   *zap.Logger
	svc   *service.Service
	clk   clock.Clock
	loc   *time.Location
	state map[int64]*pending
	mu    sync.Mutex
}

// NewRouter creates a Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, svc *service.Service, clk clock.Clock, loc *time.Location) *Router {
	return &Router{
		bot:   bot,
		log:   log,
		svc:   svc,
		clk:   clk,
		loc:   loc,
		state: make(map[int64]*pending),
	}
}

func (r *Router) setPending(chatID int64, p *pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = p
}

func (r *Router) getPending(chatID int64) *pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state[chatID]
}

func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// now returns the current local stamp; today the current local date.
func (r *Router) now() string   { return domain.FormatStamp(r.clk.Now().In(r.loc)) }
func (r *Router) today() string { return domain.FormatDate(r.clk.Now().In(r.loc)) }

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/today"):
			r.handleToday(ctx, chatID)
		case strings.HasPrefix(text, "/history"):
			r.handleHistory(ctx, chatID)
		case strings.HasPrefix(text, "/add"):
			r.handleAdd(ctx, chatID)
		case strings.HasPrefix(text, "/list"):
			r.handleList(ctx, chatID)
		case strings.HasPrefix(text, "/delete"):
			r.handleDelete(ctx, chatID)
		case strings.HasPrefix(text, "/settings"):
			r.handleSettings(ctx, chatID)
		case strings.HasPrefix(text, "/cancel"):
			r.handleCancel(ctx, chatID)
		default:
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case strings.HasPrefix(data, "dose_taken:"):
			r.handleDoseTaken(ctx, chatID, parseID(data), cb.ID)
		case strings.HasPrefix(data, "dose_snooze:"):
			r.handleDoseSnooze(ctx, chatID, parseID(data), cb.ID)
		case strings.HasPrefix(data, "hist:"):
			r.handleHistoryRange(ctx, chatID, strings.TrimPrefix(data, "hist:"), cb.ID)
		case strings.HasPrefix(data, "del_med:"):
			r.handleDeleteMedicine(ctx, chatID, parseID(data), cb.ID)
		default:
			// Unknown callback — ignore silently
		}
		return
	}
}

// parseID extracts the int64 after the first ':' in callback data.
func parseID(data string) int64 {
	i := strings.IndexByte(data, ':')
	if i < 0 {
		return 0
	}
	id, _ := strconv.ParseInt(data[i+1:], 10, 64)
	return id
}

// SendReminder renders and delivers one due reminder. This makes Router
// satisfy scheduler.Sender. The error is returned unwrapped so the
// scheduler can hold back the escalation advance on failure.
func (r *Router) SendReminder(ctx context.Context, rem domain.Reminder) error {
	msg := tgbotapi.NewMessage(rem.ChatID, reminderText(rem))
	msg.ReplyMarkup = doseReminderKeyboard(rem.DoseID)
	return r.sendSingle(ctx, msg)
}

// sendSingle keeps at most one bot message per chat: it deletes the
// previously tracked message, sends the new one and records its id.
// Deletion failures are expected (message already gone or too old) and
// only logged at debug.
func (r *Router) sendSingle(ctx context.Context, msg tgbotapi.MessageConfig) error {
	chatID := msg.ChatID

	lastID, err := r.svc.LastMessageID(ctx, chatID)
	if err != nil {
		r.log.Warn("last message lookup failed", zap.Int64("chat", chatID), zap.Error(err))
	}
	if lastID != 0 {
		if _, err := r.bot.Request(tgbotapi.NewDeleteMessage(chatID, lastID)); err != nil {
			r.log.Debug("could not delete old message", zap.Int("message", lastID), zap.Error(err))
		}
	}

	sent, err := r.bot.Send(msg)
	if err != nil {
		return err
	}
	if err := r.svc.SetLastMessageID(ctx, chatID, sent.MessageID); err != nil {
		r.log.Warn("saving message id failed", zap.Int64("chat", chatID), zap.Error(err))
	}
	return nil
}

func (r *Router) sendText(ctx context.Context, chatID int64, text string) {
	if err := r.sendSingle(ctx, tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Error("send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) answerCallback(id, text string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		r.log.Debug("answer callback failed", zap.Error(err))
	}
}
