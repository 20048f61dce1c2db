package domain

import "time"

// Trigger names an input change that invalidates derived times.
type Trigger int

const (
	TriggerStartTime Trigger = iota
	TriggerThroughput
	TriggerOrdinal
	TriggerOffset
	TriggerAdded
)

func (t Trigger) String() string {
	switch t {
	case TriggerStartTime:
		return "start_time"
	case TriggerThroughput:
		return "throughput"
	case TriggerOrdinal:
		return "ordinal"
	case TriggerOffset:
		return "offset"
	case TriggerAdded:
		return "added"
	default:
		return "unknown"
	}
}

// Recalculator maps each trigger to the smallest set of derived fields it
// can affect and recomputes exactly those.
//
//	start_time, throughput  every entrant, every reminder
//	ordinal                 that entrant and its reminders
//	offset                  that reminder
//	added                   the new reminder, or the new entrant and its reminders
type Recalculator struct {
	observe func(t Trigger, entrantID string)
}

// ApplyAll handles an event-wide trigger.
func (rc Recalculator) ApplyAll(t Trigger, p Parameters, entrants []*Entrant) {
	for _, e := range entrants {
		rc.entrant(t, p, e)
	}
}

// Apply handles a trigger scoped to one entrant. reminderID narrows
// TriggerOffset and TriggerAdded to a single reminder; empty means the
// whole entrant.
func (rc Recalculator) Apply(t Trigger, p Parameters, e *Entrant, reminderID string) {
	switch t {
	case TriggerStartTime, TriggerThroughput, TriggerOrdinal:
		rc.entrant(t, p, e)
	case TriggerOffset, TriggerAdded:
		if reminderID == "" {
			rc.entrant(t, p, e)
			return
		}
		if i := reminderIndex(e, reminderID); i >= 0 {
			r := &e.Reminders[i]
			r.FiresAt = FireTime(e.EstimatedRunTime, r.OffsetMinutes)
			if rc.observe != nil {
				rc.observe(t, e.ID)
			}
		}
	}
}

func (rc Recalculator) entrant(t Trigger, p Parameters, e *Entrant) {
	e.EstimatedRunTime = runTime(p, e.Ordinal)
	for i := range e.Reminders {
		e.Reminders[i].FiresAt = FireTime(e.EstimatedRunTime, e.Reminders[i].OffsetMinutes)
	}
	if rc.observe != nil {
		rc.observe(t, e.ID)
	}
}

func runTime(p Parameters, ordinal int) *time.Time {
	return EstimatedRunTime(p.StartTime, p.Throughput, ordinal)
}
