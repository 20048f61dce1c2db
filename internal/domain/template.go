package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReminderTemplate is a reminder without a fire time, reusable across events.
type ReminderTemplate struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	OffsetMinutes int    `json:"offset_minutes"`
}

// Template is a saved entrant profile: a name and its usual reminders.
type Template struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Reminders []ReminderTemplate `json:"reminders"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// TemplateFromEntrant captures e's name and reminder labels/offsets.
func TemplateFromEntrant(name string, e Entrant, now time.Time) Template {
	tpl := Template{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	for _, r := range e.Reminders {
		tpl.Reminders = append(tpl.Reminders, ReminderTemplate{
			ID:            uuid.NewString(),
			Label:         r.Label,
			OffsetMinutes: r.OffsetMinutes,
		})
	}
	return tpl
}
