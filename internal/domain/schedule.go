package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntrantNotFound  = errors.New("entrant not found")
	ErrReminderNotFound = errors.New("reminder not found")
)

// DefaultOffsetMinutes is the offset given to a reminder added without one.
const DefaultOffsetMinutes = 60

// Parameters are the event-wide inputs every run time is derived from.
type Parameters struct {
	StartTime  *time.Time // nullable
	Throughput float64    // entrants per hour; <= 0 means "not set"
}

// Valid reports whether run times can be derived from p.
func (p Parameters) Valid() bool {
	return p.StartTime != nil && p.Throughput > 0
}

// Reminder is a task due OffsetMinutes before its entrant runs.
type Reminder struct {
	ID            string
	Label         string
	OffsetMinutes int
	FiresAt       *time.Time // derived
}

// Entrant is one participant in the run order.
type Entrant struct {
	ID               string
	Name             string
	Ordinal          int        // 1-based draw position; <= 0 means "not set"
	EstimatedRunTime *time.Time // derived
	Reminders        []Reminder
}

// EntrantPatch carries the fields to change on an entrant. Nil fields are kept.
type EntrantPatch struct {
	Name    *string
	Ordinal *int
}

// ReminderPatch carries the fields to change on a reminder. Nil fields are kept.
type ReminderPatch struct {
	Label         *string
	OffsetMinutes *int
}

// ParametersPatch carries the parameter changes. ClearStartTime wins over StartTime.
type ParametersPatch struct {
	StartTime      *time.Time
	ClearStartTime bool
	Throughput     *float64
}

// Schedule is one event being edited: its parameters plus the ordered
// entrants and their reminders. Every mutating method leaves the derived
// fields consistent before it returns. A Schedule is not safe for
// concurrent use.
type Schedule struct {
	ID                   string
	Name                 string
	EventDate            time.Time
	NotificationsEnabled bool
	CreatedAt            time.Time
	UpdatedAt            time.Time

	params   Parameters
	entrants []*Entrant
	recalc   Recalculator
	now      func() time.Time
}

// NewSchedule starts an empty event.
func NewSchedule(name string, eventDate time.Time) *Schedule {
	s := &Schedule{
		ID:                   uuid.NewString(),
		Name:                 name,
		EventDate:            eventDate,
		NotificationsEnabled: true,
		now:                  time.Now,
	}
	s.CreatedAt = s.now().UTC()
	s.UpdatedAt = s.CreatedAt
	return s
}

// Parameters returns the current event parameters.
func (s *Schedule) Parameters() Parameters {
	return Parameters{StartTime: cloneTime(s.params.StartTime), Throughput: s.params.Throughput}
}

// Len returns the number of entrants.
func (s *Schedule) Len() int { return len(s.entrants) }

// EntrantAt returns a copy of the entrant at list index i (0-based).
func (s *Schedule) EntrantAt(i int) (Entrant, bool) {
	if i < 0 || i >= len(s.entrants) {
		return Entrant{}, false
	}
	return cloneEntrant(s.entrants[i]), true
}

// Entrant returns a copy of the entrant with the given id.
func (s *Schedule) Entrant(id string) (Entrant, error) {
	e, _ := s.find(id)
	if e == nil {
		return Entrant{}, ErrEntrantNotFound
	}
	return cloneEntrant(e), nil
}

// AddEntrant appends an empty entrant. Nothing is derived yet since the
// ordinal is unset.
func (s *Schedule) AddEntrant() string {
	e := &Entrant{ID: uuid.NewString()}
	s.entrants = append(s.entrants, e)
	s.touch()
	return e.ID
}

// AddEntrantFromTemplate appends an entrant named after tpl, carrying a fresh
// copy of its reminders, at the given ordinal.
func (s *Schedule) AddEntrantFromTemplate(tpl Template, ordinal int) string {
	e := &Entrant{ID: uuid.NewString(), Name: tpl.Name, Ordinal: ordinal}
	for _, rt := range tpl.Reminders {
		e.Reminders = append(e.Reminders, Reminder{
			ID:            uuid.NewString(),
			Label:         rt.Label,
			OffsetMinutes: rt.OffsetMinutes,
		})
	}
	s.entrants = append(s.entrants, e)
	s.recalc.Apply(TriggerAdded, s.params, e, "")
	s.touch()
	return e.ID
}

// UpdateEntrant applies patch. Only an ordinal change recomputes, and only
// for this entrant.
func (s *Schedule) UpdateEntrant(id string, patch EntrantPatch) error {
	e, _ := s.find(id)
	if e == nil {
		return ErrEntrantNotFound
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Ordinal != nil && *patch.Ordinal != e.Ordinal {
		e.Ordinal = *patch.Ordinal
		s.recalc.Apply(TriggerOrdinal, s.params, e, "")
	}
	s.touch()
	return nil
}

// RemoveEntrant drops the entrant. Remaining ordinals are left as they are.
func (s *Schedule) RemoveEntrant(id string) error {
	_, i := s.find(id)
	if i < 0 {
		return ErrEntrantNotFound
	}
	s.entrants = append(s.entrants[:i], s.entrants[i+1:]...)
	s.touch()
	return nil
}

// AddReminder appends a reminder to the entrant and derives its fire time.
func (s *Schedule) AddReminder(entrantID, label string, offsetMinutes int) (string, error) {
	e, _ := s.find(entrantID)
	if e == nil {
		return "", ErrEntrantNotFound
	}
	r := Reminder{ID: uuid.NewString(), Label: label, OffsetMinutes: offsetMinutes}
	e.Reminders = append(e.Reminders, r)
	s.recalc.Apply(TriggerAdded, s.params, e, r.ID)
	s.touch()
	return r.ID, nil
}

// UpdateReminder applies patch. An offset change recomputes that reminder only.
func (s *Schedule) UpdateReminder(entrantID, reminderID string, patch ReminderPatch) error {
	e, _ := s.find(entrantID)
	if e == nil {
		return ErrEntrantNotFound
	}
	i := reminderIndex(e, reminderID)
	if i < 0 {
		return ErrReminderNotFound
	}
	r := &e.Reminders[i]
	if patch.Label != nil {
		r.Label = *patch.Label
	}
	if patch.OffsetMinutes != nil && *patch.OffsetMinutes != r.OffsetMinutes {
		r.OffsetMinutes = *patch.OffsetMinutes
		s.recalc.Apply(TriggerOffset, s.params, e, reminderID)
	}
	s.touch()
	return nil
}

// RemoveReminder drops one reminder from the entrant.
func (s *Schedule) RemoveReminder(entrantID, reminderID string) error {
	e, _ := s.find(entrantID)
	if e == nil {
		return ErrEntrantNotFound
	}
	i := reminderIndex(e, reminderID)
	if i < 0 {
		return ErrReminderNotFound
	}
	e.Reminders = append(e.Reminders[:i], e.Reminders[i+1:]...)
	s.touch()
	return nil
}

// UpdateParameters applies patch and, if anything actually changed,
// recomputes every entrant.
func (s *Schedule) UpdateParameters(patch ParametersPatch) {
	changed := false
	trigger := TriggerStartTime
	switch {
	case patch.ClearStartTime:
		if s.params.StartTime != nil {
			s.params.StartTime = nil
			changed = true
		}
	case patch.StartTime != nil:
		if s.params.StartTime == nil || !s.params.StartTime.Equal(*patch.StartTime) {
			s.params.StartTime = cloneTime(patch.StartTime)
			changed = true
		}
	}
	if patch.Throughput != nil && *patch.Throughput != s.params.Throughput {
		s.params.Throughput = *patch.Throughput
		if !changed {
			trigger = TriggerThroughput
		}
		changed = true
	}
	if changed {
		// a single pass covers a combined start time and throughput change
		s.recalc.ApplyAll(trigger, s.params, s.entrants)
		s.touch()
	}
}

// OnRecompute registers fn to be called once per entrant whose derived
// fields are recomputed, with the trigger that caused it.
func (s *Schedule) OnRecompute(fn func(t Trigger, entrantID string)) {
	s.recalc.observe = fn
}

// SetNotificationsEnabled toggles alert registration for this event.
func (s *Schedule) SetNotificationsEnabled(on bool) {
	s.NotificationsEnabled = on
	s.touch()
}

func (s *Schedule) find(id string) (*Entrant, int) {
	for i, e := range s.entrants {
		if e.ID == id {
			return e, i
		}
	}
	return nil, -1
}

func (s *Schedule) touch() {
	if s.now == nil {
		s.now = time.Now
	}
	s.UpdatedAt = s.now().UTC()
}

func reminderIndex(e *Entrant, id string) int {
	for i := range e.Reminders {
		if e.Reminders[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneEntrant(e *Entrant) Entrant {
	c := *e
	c.EstimatedRunTime = cloneTime(e.EstimatedRunTime)
	c.Reminders = make([]Reminder, len(e.Reminders))
	for i, r := range e.Reminders {
		r.FiresAt = cloneTime(r.FiresAt)
		c.Reminders[i] = r
	}
	return c
}
