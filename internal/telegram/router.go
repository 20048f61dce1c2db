package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/runready/internal/domain"
	"github.com/ykvlv/runready/internal/metrics"
	"github.com/ykvlv/runready/internal/store"
)

// AlertScheduler registers and cancels reminder alerts for saved events.
type AlertScheduler interface {
	Schedule(ctx context.Context, chatID int64, snap domain.Snapshot, now time.Time) (int, error)
	Cancel(ctx context.Context, eventID string) error
}

// reply is what a command produces; HandleUpdate turns it into Telegram calls.
type reply struct {
	text   string
	doc    *tgbotapi.FileBytes
	markup interface{}
}

// Router wires Telegram updates to handlers and holds one in-memory editing
// session (an unsaved or reopened event) per chat.
type Router struct {
	bot      *tgbotapi.BotAPI
	log      *zap.Logger
	repo     store.Repo
	alerts   AlertScheduler
	loc      *time.Location
	metrics  *metrics.Metrics
	sessions map[int64]*domain.Schedule // chatID -> event being edited
	mu       sync.RWMutex
	now      func() time.Time
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, alerts AlertScheduler, loc *time.Location, m *metrics.Metrics) *Router {
	if loc == nil {
		loc = time.UTC
	}
	if m == nil {
		m = metrics.New()
	}
	return &Router{
		bot:      bot,
		log:      log,
		repo:     repo,
		alerts:   alerts,
		loc:      loc,
		metrics:  m,
		sessions: make(map[int64]*domain.Schedule),
		now:      time.Now,
	}
}

// setSession makes s the chat's current event.
func (r *Router) setSession(chatID int64, s *domain.Schedule) {
	s.OnRecompute(func(t domain.Trigger, entrantID string) {
		r.log.Debug("derived times recomputed",
			zap.Int64("chatID", chatID),
			zap.String("event", s.ID),
			zap.String("trigger", t.String()),
			zap.String("entrant", entrantID),
		)
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[chatID] = s
}

// getSession returns the chat's current event, or nil.
func (r *Router) getSession(chatID int64) *domain.Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[chatID]
}

// clearSession drops the chat's current event if it is eventID.
func (r *Router) clearSession(chatID int64, eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.sessions[chatID]; s != nil && s.ID == eventID {
		delete(r.sessions, chatID)
	}
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		rep := r.execute(ctx, chatID, strings.TrimSpace(msg.Text))
		r.send(chatID, rep)
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		chatID := cb.Message.Chat.ID
		if _, err := r.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			r.log.Warn("answer callback failed", zap.Error(err))
		}
		switch {
		case strings.HasPrefix(cb.Data, "offset:"):
			r.send(chatID, r.handleOffsetCallback(chatID, cb.Data))
		default:
			// unknown callback, ignore
		}
	}
}

// execute parses a command line and runs it against the chat's session.
func (r *Router) execute(ctx context.Context, chatID int64, text string) reply {
	cmd, args := splitCommand(text)
	switch cmd {
	case "/start", "/help":
		return reply{text: helpText, markup: mainMenuKeyboard()}
	case "/new":
		return r.handleNew(chatID, args)
	case "/starttime":
		return r.handleStartTime(chatID, args)
	case "/rate":
		return r.handleRate(chatID, args)
	case "/add":
		return r.handleAdd(chatID, args)
	case "/draw":
		return r.handleDraw(chatID, args)
	case "/name":
		return r.handleName(chatID, args)
	case "/rm":
		return r.handleRemoveEntrant(chatID, args)
	case "/remind":
		return r.handleRemind(chatID, args)
	case "/offset":
		return r.handleOffset(chatID, args)
	case "/rmremind":
		return r.handleRemoveReminder(chatID, args)
	case "/show":
		return r.handleShow(chatID)
	case "/notify":
		return r.handleNotify(chatID, args)
	case "/save":
		return r.handleSave(ctx, chatID)
	case "/list":
		return r.handleList(ctx, chatID)
	case "/open":
		return r.handleOpen(ctx, chatID, args)
	case "/delete":
		return r.handleDelete(ctx, chatID, args)
	case "/export":
		return r.handleExport(chatID)
	case "/savetpl":
		return r.handleSaveTemplate(ctx, chatID, args)
	case "/templates":
		return r.handleTemplates(ctx, chatID)
	case "/usetpl":
		return r.handleUseTemplate(ctx, chatID, args)
	case "/rmtpl":
		return r.handleRemoveTemplate(ctx, chatID, args)
	default:
		return reply{text: unknownText}
	}
}

func (r *Router) send(chatID int64, rep reply) {
	if rep.doc != nil {
		if _, err := r.bot.Send(tgbotapi.NewDocument(chatID, *rep.doc)); err != nil {
			r.log.Error("send document failed", zap.Error(err), zap.Int64("chatID", chatID))
		}
	}
	if rep.text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, rep.text)
	if rep.markup != nil {
		msg.ReplyMarkup = rep.markup
	}
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Error("send message failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// splitCommand returns the lower-cased command (without any @botname
// suffix) and its whitespace-separated arguments.
func splitCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:]
}
