// Package export renders a saved event for sharing: an iCalendar file with
// one alarm per reminder, and a plain-text run sheet.
package export

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/ykvlv/runready/internal/domain"
)

const productID = "-//runready//event schedule//EN"

// ICS builds a calendar with one VEVENT per entrant that has a run time.
// Each event spans one slot and carries a display alarm per reminder.
func ICS(snap domain.Snapshot, loc *time.Location) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName(snap.Name)
	if loc != nil {
		cal.SetTimezoneId(loc.String())
	}

	slot := domain.SlotDuration(snap.Throughput)
	for _, e := range snap.Entrants {
		if e.EstimatedRunTime == nil {
			continue
		}
		run := *e.EstimatedRunTime
		ev := cal.AddEvent(e.ID + "@" + snap.ID)
		ev.SetDtStampTime(snap.UpdatedAt)
		ev.SetCreatedTime(snap.CreatedAt)
		ev.SetModifiedAt(snap.UpdatedAt)
		ev.SetStartAt(run)
		ev.SetEndAt(run.Add(slot))
		ev.SetSummary(entrantLabel(e))
		ev.SetDescription(fmt.Sprintf("%s, draw #%d", snap.Name, e.Ordinal))

		for _, r := range e.Reminders {
			if r.FiresAt == nil {
				continue
			}
			alarm := ev.AddAlarm()
			alarm.SetAction(ics.ActionDisplay)
			alarm.SetTrigger(trigger(r.OffsetMinutes))
			alarm.SetProperty(ics.ComponentPropertyDescription, r.Label)
		}
	}
	return cal.Serialize()
}

// trigger encodes an offset relative to the event start: positive offsets
// fire before it.
func trigger(offsetMinutes int) string {
	if offsetMinutes < 0 {
		return fmt.Sprintf("PT%dM", -offsetMinutes)
	}
	return fmt.Sprintf("-PT%dM", offsetMinutes)
}

// Text renders the run sheet shared by message or email.
func Text(snap domain.Snapshot, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", snap.Name, domain.FormatDate(snap.EventDate, loc))
	fmt.Fprintf(&b, "Start Time: %s\n", domain.FormatClock(snap.StartTime, loc))
	fmt.Fprintf(&b, "Entrants Per Hour: %s\n\n", domain.FormatThroughput(snap.Throughput))

	for i, e := range snap.Entrants {
		fmt.Fprintf(&b, "%d. %s (Draw #%s)\n", i+1, entrantLabel(e), draw(e.Ordinal))
		fmt.Fprintf(&b, "   Run Time: %s\n", domain.FormatClock(e.EstimatedRunTime, loc))
		for j, r := range e.Reminders {
			fmt.Fprintf(&b, "   %d.%d %s: %s (%s)\n",
				i+1, j+1, reminderLabel(r), domain.FormatClock(r.FiresAt, loc), domain.FormatRelative(r.OffsetMinutes))
		}
	}
	return b.String()
}

func entrantLabel(e domain.EntrantSnapshot) string {
	if e.Name != "" {
		return e.Name
	}
	return "Entrant #" + draw(e.Ordinal)
}

func reminderLabel(r domain.ReminderSnapshot) string {
	if r.Label != "" {
		return r.Label
	}
	return "Reminder"
}

func draw(ordinal int) string {
	if ordinal <= 0 {
		return "?"
	}
	return fmt.Sprint(ordinal)
}
