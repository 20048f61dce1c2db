package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/runready/internal/domain"
)

// UI texts in English
const (
	helpText = "🐎 I work out when each entrant runs and remind you before it.\n\n" +
		"Event:\n" +
		"/new <name> [YYYY-MM-DD] — start a new event\n" +
		"/starttime HH:MM | clear — first entrant's run time\n" +
		"/rate <n> — entrants per hour\n" +
		"/notify on|off — reminders for this event\n\n" +
		"Entrants (numbered as in /show):\n" +
		"/add [draw] [name] — add an entrant\n" +
		"/draw <n> <draw> — set draw position\n" +
		"/name <n> <name> — rename\n" +
		"/rm <n> — remove\n\n" +
		"Reminders:\n" +
		"/remind <n> <offset> <label> — e.g. /remind 1 90 Tack up\n" +
		"/offset <n> <r> [minutes] — change when reminder r fires\n" +
		"/rmremind <n> <r> — remove\n\n" +
		"Saved events:\n" +
		"/show /save /list /open <id> /delete <id> /export\n\n" +
		"Templates:\n" +
		"/savetpl <n> <name> /templates /usetpl <name> [draw] /rmtpl <name>"

	unknownText   = "Unknown command. Send /help for the list."
	noSessionText = "No event open. Use /new <name> or /open <id>."
	savedFmt      = "💾 Saved “%s” (%s). %d reminder(s) scheduled."
	deletedFmt    = "🗑 Deleted %s."
	notFoundText  = "Event not found. See /list."
	noEventsText  = "No saved events yet. Build one with /new and /save it."
	noTplText     = "No templates yet. Save one with /savetpl <n> <name>."
)

// mainMenuKeyboard builds the reply keyboard with the common commands.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/show"),
			tgbotapi.NewKeyboardButton("/save"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/list"),
			tgbotapi.NewKeyboardButton("/export"),
		),
	)
}

// offsetPresetsKeyboard offers the preset offsets for reminder r of entrant n.
func offsetPresetsKeyboard(n, r int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range domain.OffsetPresets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			domain.FormatOffset(m),
			fmt.Sprintf("offset:%d:%d:%d", n, r, m),
		))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
