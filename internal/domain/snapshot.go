package domain

import "time"

// Snapshot is the immutable, serializable view of a Schedule handed to
// storage and alert registration. Absent times encode as JSON null.
type Snapshot struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	EventDate            time.Time         `json:"event_date"`
	StartTime            *time.Time        `json:"start_time"`
	Throughput           float64           `json:"throughput_per_hour"`
	NotificationsEnabled bool              `json:"notifications_enabled"`
	Entrants             []EntrantSnapshot `json:"entrants"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

type EntrantSnapshot struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Ordinal          int                `json:"ordinal_position"`
	EstimatedRunTime *time.Time         `json:"estimated_run_time"`
	Reminders        []ReminderSnapshot `json:"reminders"`
}

type ReminderSnapshot struct {
	ID            string     `json:"id"`
	Label         string     `json:"label"`
	OffsetMinutes int        `json:"offset_minutes"`
	FiresAt       *time.Time `json:"fires_at"`
}

// Snapshot deep-copies the current state. Later edits to s do not show up
// in the returned value.
func (s *Schedule) Snapshot() Snapshot {
	snap := Snapshot{
		ID:                   s.ID,
		Name:                 s.Name,
		EventDate:            s.EventDate,
		StartTime:            cloneTime(s.params.StartTime),
		Throughput:           s.params.Throughput,
		NotificationsEnabled: s.NotificationsEnabled,
		Entrants:             make([]EntrantSnapshot, 0, len(s.entrants)),
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
	for _, e := range s.entrants {
		es := EntrantSnapshot{
			ID:               e.ID,
			Name:             e.Name,
			Ordinal:          e.Ordinal,
			EstimatedRunTime: cloneTime(e.EstimatedRunTime),
			Reminders:        make([]ReminderSnapshot, 0, len(e.Reminders)),
		}
		for _, r := range e.Reminders {
			es.Reminders = append(es.Reminders, ReminderSnapshot{
				ID:            r.ID,
				Label:         r.Label,
				OffsetMinutes: r.OffsetMinutes,
				FiresAt:       cloneTime(r.FiresAt),
			})
		}
		snap.Entrants = append(snap.Entrants, es)
	}
	return snap
}

// FromSnapshot rebuilds an editable Schedule from a stored snapshot. Derived
// times are recomputed from the stored inputs.
func FromSnapshot(snap Snapshot) *Schedule {
	s := &Schedule{
		ID:                   snap.ID,
		Name:                 snap.Name,
		EventDate:            snap.EventDate,
		NotificationsEnabled: snap.NotificationsEnabled,
		CreatedAt:            snap.CreatedAt,
		UpdatedAt:            snap.UpdatedAt,
		params:               Parameters{StartTime: cloneTime(snap.StartTime), Throughput: snap.Throughput},
		now:                  time.Now,
	}
	for _, es := range snap.Entrants {
		e := &Entrant{ID: es.ID, Name: es.Name, Ordinal: es.Ordinal}
		for _, rs := range es.Reminders {
			e.Reminders = append(e.Reminders, Reminder{ID: rs.ID, Label: rs.Label, OffsetMinutes: rs.OffsetMinutes})
		}
		s.entrants = append(s.entrants, e)
	}
	s.recalc.ApplyAll(TriggerStartTime, s.params, s.entrants)
	return s
}
