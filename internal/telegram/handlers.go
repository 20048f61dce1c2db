package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/runready/internal/domain"
	"github.com/ykvlv/runready/internal/export"
	"github.com/ykvlv/runready/internal/store"
)

// --- Generic helpers ---

func (r *Router) withSession(chatID int64, fn func(s *domain.Schedule) reply) reply {
	s := r.getSession(chatID)
	if s == nil {
		return reply{text: noSessionText}
	}
	return fn(s)
}

func (r *Router) sheet(s *domain.Schedule) reply {
	return reply{text: export.Text(s.Snapshot(), r.loc)}
}

// entrantArg resolves a 1-based list number as shown by /show.
func entrantArg(s *domain.Schedule, arg string) (domain.Entrant, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return domain.Entrant{}, fmt.Errorf("entrant number %q is not a number", arg)
	}
	e, ok := s.EntrantAt(n - 1)
	if !ok {
		return domain.Entrant{}, fmt.Errorf("no entrant #%d, the list has %d", n, s.Len())
	}
	return e, nil
}

func reminderArg(e domain.Entrant, arg string) (domain.Reminder, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return domain.Reminder{}, fmt.Errorf("reminder number %q is not a number", arg)
	}
	if n < 1 || n > len(e.Reminders) {
		return domain.Reminder{}, fmt.Errorf("no reminder #%d, the entrant has %d", n, len(e.Reminders))
	}
	return e.Reminders[n-1], nil
}

func errReply(err error) reply {
	return reply{text: "⚠️ " + err.Error()}
}

func usage(line string) reply {
	return reply{text: "Usage: " + line}
}

// --- Event parameters ---

func (r *Router) handleNew(chatID int64, args []string) reply {
	date := r.now().In(r.loc)
	if len(args) > 0 {
		if d, err := domain.ParseEventDate(args[len(args)-1], r.loc); err == nil {
			date = d
			args = args[:len(args)-1]
		}
	}
	name := strings.Join(args, " ")
	if name == "" {
		name = "New Event"
	}

	s := domain.NewSchedule(name, domain.At(date, 0, r.loc))
	r.setSession(chatID, s)
	r.log.Info("event created", zap.Int64("chatID", chatID), zap.String("event", s.ID))
	return reply{
		text:   fmt.Sprintf("🆕 %s, %s.\nNext: /starttime HH:MM and /rate <n>.", name, domain.FormatDate(s.EventDate, r.loc)),
		markup: mainMenuKeyboard(),
	}
}

func (r *Router) handleStartTime(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) != 1 {
			return usage("/starttime HH:MM | clear")
		}
		if strings.EqualFold(args[0], "clear") {
			s.UpdateParameters(domain.ParametersPatch{ClearStartTime: true})
			return r.sheet(s)
		}
		mins, err := domain.ParseClock(args[0])
		if err != nil {
			return errReply(err)
		}
		start := domain.At(s.EventDate, mins, r.loc)
		s.UpdateParameters(domain.ParametersPatch{StartTime: &start})
		return r.sheet(s)
	})
}

func (r *Router) handleRate(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) != 1 {
			return usage("/rate <entrants per hour>")
		}
		v := domain.ParseThroughput(args[0])
		s.UpdateParameters(domain.ParametersPatch{Throughput: &v})
		return r.sheet(s)
	})
}

func (r *Router) handleNotify(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) != 1 {
			return usage("/notify on|off")
		}
		switch strings.ToLower(args[0]) {
		case "on":
			s.SetNotificationsEnabled(true)
			return reply{text: "🔔 Reminders on. /save to schedule them."}
		case "off":
			s.SetNotificationsEnabled(false)
			return reply{text: "🔕 Reminders off. /save to cancel scheduled ones."}
		default:
			return usage("/notify on|off")
		}
	})
}

// --- Entrants ---

func (r *Router) handleAdd(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		id := s.AddEntrant()

		var patch domain.EntrantPatch
		if len(args) > 0 {
			if _, err := strconv.Atoi(args[0]); err == nil {
				o := domain.ParseOrdinal(args[0])
				patch.Ordinal = &o
				args = args[1:]
			}
		}
		if len(args) > 0 {
			name := strings.Join(args, " ")
			patch.Name = &name
		}
		if patch.Name != nil || patch.Ordinal != nil {
			if err := s.UpdateEntrant(id, patch); err != nil {
				return errReply(err)
			}
		}
		return r.sheet(s)
	})
}

func (r *Router) handleDraw(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) != 2 {
			return usage("/draw <n> <draw>")
		}
		e, err := entrantArg(s, args[0])
		if err != nil {
			return errReply(err)
		}
		// a draw that is not a positive integer leaves the run time blank
		o := domain.ParseOrdinal(args[1])
		if err := s.UpdateEntrant(e.ID, domain.EntrantPatch{Ordinal: &o}); err != nil {
			return errReply(err)
		}
		return r.sheet(s)
	})
}

func (r *Router) handleName(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) < 2 {
			return usage("/name <n> <name>")
		}
		e, err := entrantArg(s, args[0])
		if err != nil {
			return errReply(err)
		}
		name := strings.Join(args[1:], " ")
		if err := s.UpdateEntrant(e.ID, domain.EntrantPatch{Name: &name}); err != nil {
			return errReply(err)
		}
		return r.sheet(s)
	})
}

func (r *Router) handleRemoveEntrant(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) != 1 {
			return usage("/rm <n>")
		}
		e, err := entrantArg(s, args[0])
		if err != nil {
			return errReply(err)
		}
		if err := s.RemoveEntrant(e.ID); err != nil {
			return errReply(err)
		}
		return r.sheet(s)
	})
}

// --- Reminders ---

func (r *Router) handleRemind(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) < 2 {
			return usage("/remind <n> <offset> <label>")
		}
		e, err := entrantArg(s, args[0])
		if err != nil {
			return errReply(err)
		}
		offset, err := domain.ParseOffset(args[1])
		if err != nil {
			return errReply(err)
		}
		if _, err := s.AddReminder(e.ID, strings.Join(args[2:], " "), offset); err != nil {
			return errReply(err)
		}
		return r.sheet(s)
	})
}

func (r *Router) handleOffset(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) != 2 && len(args) != 3 {
			return usage("/offset <n> <r> [minutes]")
		}
		e, err := entrantArg(s, args[0])
		if err != nil {
			return errReply(err)
		}
		rm, err := reminderArg(e, args[1])
		if err != nil {
			return errReply(err)
		}
		if len(args) == 2 {
			n, _ := strconv.Atoi(args[0])
			ri, _ := strconv.Atoi(args[1])
			return reply{
				text:   fmt.Sprintf("When should “%s” fire?", rm.Label),
				markup: offsetPresetsKeyboard(n, ri),
			}
		}
		offset, err := domain.ParseOffset(args[2])
		if err != nil {
			return errReply(err)
		}
		return r.applyOffset(s, e.ID, rm.ID, offset)
	})
}

// handleOffsetCallback applies a preset chosen from offsetPresetsKeyboard.
// Data format: offset:<n>:<r>:<minutes>.
func (r *Router) handleOffsetCallback(chatID int64, data string) reply {
	parts := strings.Split(data, ":")
	if len(parts) != 4 {
		return reply{}
	}
	mins, err := strconv.Atoi(parts[3])
	if err != nil {
		return reply{}
	}
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		e, err := entrantArg(s, parts[1])
		if err != nil {
			return errReply(err)
		}
		rm, err := reminderArg(e, parts[2])
		if err != nil {
			return errReply(err)
		}
		return r.applyOffset(s, e.ID, rm.ID, mins)
	})
}

func (r *Router) applyOffset(s *domain.Schedule, entrantID, reminderID string, offset int) reply {
	if err := s.UpdateReminder(entrantID, reminderID, domain.ReminderPatch{OffsetMinutes: &offset}); err != nil {
		return errReply(err)
	}
	return r.sheet(s)
}

func (r *Router) handleRemoveReminder(chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) != 2 {
			return usage("/rmremind <n> <r>")
		}
		e, err := entrantArg(s, args[0])
		if err != nil {
			return errReply(err)
		}
		rm, err := reminderArg(e, args[1])
		if err != nil {
			return errReply(err)
		}
		if err := s.RemoveReminder(e.ID, rm.ID); err != nil {
			return errReply(err)
		}
		return r.sheet(s)
	})
}

// --- Saved events ---

func (r *Router) handleShow(chatID int64) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		rep := r.sheet(s)
		rep.text += fmt.Sprintf("\nid: %s", s.ID)
		return rep
	})
}

func (r *Router) handleSave(ctx context.Context, chatID int64) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		snap := s.Snapshot()
		if err := r.repo.SaveEvent(ctx, chatID, snap); err != nil {
			r.log.Error("SaveEvent failed", zap.Error(err), zap.String("event", snap.ID))
			return reply{text: "Could not save the event. Please try again later."}
		}
		r.metrics.EventsSaved.Inc()

		n, err := r.alerts.Schedule(ctx, chatID, snap, r.now())
		if err != nil {
			r.log.Error("schedule alerts failed", zap.Error(err), zap.String("event", snap.ID))
			return reply{text: "Saved, but reminders could not be scheduled. Try /save again."}
		}
		return reply{text: fmt.Sprintf(savedFmt, snap.Name, snap.ID, n)}
	})
}

func (r *Router) handleList(ctx context.Context, chatID int64) reply {
	events, err := r.repo.ListEvents(ctx, chatID)
	if err != nil {
		r.log.Error("ListEvents failed", zap.Error(err))
		return reply{text: "Could not load your events."}
	}
	if len(events) == 0 {
		return reply{text: noEventsText}
	}
	var b strings.Builder
	b.WriteString("📋 Saved events:\n")
	for _, ev := range events {
		fmt.Fprintf(&b, "\n• %s, %s (%d entrants)\n  /open %s", ev.Name, domain.FormatDate(ev.EventDate, r.loc), ev.Entrants, ev.ID)
	}
	return reply{text: b.String()}
}

// loadOwned fetches an event and checks that it belongs to the chat.
func (r *Router) loadOwned(ctx context.Context, chatID int64, id string) (*store.StoredEvent, error) {
	ev, err := r.repo.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.ChatID != chatID {
		return nil, store.ErrNotFound
	}
	return ev, nil
}

func (r *Router) handleOpen(ctx context.Context, chatID int64, args []string) reply {
	if len(args) != 1 {
		return usage("/open <id>")
	}
	ev, err := r.loadOwned(ctx, chatID, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return reply{text: notFoundText}
	}
	if err != nil {
		r.log.Error("GetEvent failed", zap.Error(err), zap.String("event", args[0]))
		return reply{text: "Could not load the event."}
	}
	s := domain.FromSnapshot(ev.Snapshot)
	r.setSession(chatID, s)
	return r.sheet(s)
}

func (r *Router) handleDelete(ctx context.Context, chatID int64, args []string) reply {
	var id string
	switch {
	case len(args) == 1:
		id = args[0]
	case len(args) == 0 && r.getSession(chatID) != nil:
		id = r.getSession(chatID).ID
	default:
		return usage("/delete <id>")
	}

	if _, err := r.loadOwned(ctx, chatID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// never saved: only the chat's own session goes
			if s := r.getSession(chatID); s != nil && s.ID == id {
				r.clearSession(chatID, id)
				return reply{text: fmt.Sprintf(deletedFmt, id)}
			}
			return reply{text: notFoundText}
		}
		r.log.Error("GetEvent failed", zap.Error(err), zap.String("event", id))
		return reply{text: "Could not delete the event."}
	}
	if err := r.alerts.Cancel(ctx, id); err != nil {
		r.log.Error("cancel alerts failed", zap.Error(err), zap.String("event", id))
		return reply{text: "Could not cancel the event's reminders. Nothing was deleted."}
	}
	if err := r.repo.DeleteEvent(ctx, id); err != nil {
		r.log.Error("DeleteEvent failed", zap.Error(err), zap.String("event", id))
		return reply{text: "Could not delete the event."}
	}
	r.clearSession(chatID, id)
	r.log.Info("event deleted", zap.Int64("chatID", chatID), zap.String("event", id))
	return reply{text: fmt.Sprintf(deletedFmt, id)}
}

func (r *Router) handleExport(chatID int64) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		snap := s.Snapshot()
		return reply{
			text: export.Text(snap, r.loc),
			doc: &tgbotapi.FileBytes{
				Name:  fileName(snap.Name) + ".ics",
				Bytes: []byte(export.ICS(snap, r.loc)),
			},
		}
	})
}

// --- Templates ---

func (r *Router) handleSaveTemplate(ctx context.Context, chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) < 2 {
			return usage("/savetpl <n> <name>")
		}
		e, err := entrantArg(s, args[0])
		if err != nil {
			return errReply(err)
		}
		tpl := domain.TemplateFromEntrant(strings.Join(args[1:], " "), e, r.now())
		if err := r.repo.SaveTemplate(ctx, chatID, tpl); err != nil {
			r.log.Error("SaveTemplate failed", zap.Error(err))
			return reply{text: "Could not save the template."}
		}
		return reply{text: fmt.Sprintf("📎 Template “%s” saved with %d reminder(s).", tpl.Name, len(tpl.Reminders))}
	})
}

func (r *Router) handleTemplates(ctx context.Context, chatID int64) reply {
	tpls, err := r.repo.ListTemplates(ctx, chatID)
	if err != nil {
		r.log.Error("ListTemplates failed", zap.Error(err))
		return reply{text: "Could not load your templates."}
	}
	if len(tpls) == 0 {
		return reply{text: noTplText}
	}
	var b strings.Builder
	b.WriteString("📎 Templates:\n")
	for _, tpl := range tpls {
		fmt.Fprintf(&b, "\n• %s", tpl.Name)
		for _, rt := range tpl.Reminders {
			fmt.Fprintf(&b, "\n   %s, %s", rt.Label, domain.FormatRelative(rt.OffsetMinutes))
		}
	}
	return reply{text: b.String()}
}

func (r *Router) handleUseTemplate(ctx context.Context, chatID int64, args []string) reply {
	return r.withSession(chatID, func(s *domain.Schedule) reply {
		if len(args) == 0 {
			return usage("/usetpl <name> [draw]")
		}
		draw := 0
		if len(args) > 1 {
			if _, err := strconv.Atoi(args[len(args)-1]); err == nil {
				draw = domain.ParseOrdinal(args[len(args)-1])
				args = args[:len(args)-1]
			}
		}
		name := strings.Join(args, " ")
		tpl, err := r.repo.GetTemplateByName(ctx, chatID, name)
		if errors.Is(err, store.ErrNotFound) {
			return reply{text: fmt.Sprintf("No template named “%s”. See /templates.", name)}
		}
		if err != nil {
			r.log.Error("GetTemplateByName failed", zap.Error(err))
			return reply{text: "Could not load the template."}
		}
		s.AddEntrantFromTemplate(*tpl, draw)
		return r.sheet(s)
	})
}

func (r *Router) handleRemoveTemplate(ctx context.Context, chatID int64, args []string) reply {
	if len(args) == 0 {
		return usage("/rmtpl <name>")
	}
	name := strings.Join(args, " ")
	if err := r.repo.DeleteTemplate(ctx, chatID, name); err != nil {
		r.log.Error("DeleteTemplate failed", zap.Error(err))
		return reply{text: "Could not delete the template."}
	}
	return reply{text: fmt.Sprintf("🗑 Template “%s” removed.", name)}
}

// fileName turns an event name into a safe attachment name.
func fileName(name string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(name) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "schedule"
	}
	return out
}
