package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

// newEvent builds a schedule starting at 09:00 UTC with the given rate and
// one entrant per ordinal.
func newEvent(t *testing.T, rate float64, ordinals ...int) (*Schedule, []string) {
	t.Helper()
	s := NewSchedule("Spring Classic", time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC))
	s.UpdateParameters(ParametersPatch{StartTime: clock(t, 9, 0), Throughput: ptr(rate)})
	ids := make([]string, 0, len(ordinals))
	for _, o := range ordinals {
		id := s.AddEntrant()
		if err := s.UpdateEntrant(id, EntrantPatch{Ordinal: ptr(o)}); err != nil {
			t.Fatalf("update entrant: %v", err)
		}
		ids = append(ids, id)
	}
	return s, ids
}

func mustEntrant(t *testing.T, s *Schedule, id string) Entrant {
	t.Helper()
	e, err := s.Entrant(id)
	if err != nil {
		t.Fatalf("entrant %s: %v", id, err)
	}
	return e
}

func TestAddEntrant_StartsEmpty(t *testing.T) {
	s, _ := newEvent(t, 12)
	id := s.AddEntrant()
	e := mustEntrant(t, s, id)
	if e.Ordinal != 0 || e.EstimatedRunTime != nil || len(e.Reminders) != 0 {
		t.Fatalf("unexpected new entrant: %+v", e)
	}
}

func TestSchedule_ReminderFiresBeforeRun(t *testing.T) {
	s, ids := newEvent(t, 12, 1, 5)
	e := mustEntrant(t, s, ids[1])
	if !e.EstimatedRunTime.Equal(*clock(t, 9, 20)) {
		t.Fatalf("want 09:20, got %s", e.EstimatedRunTime)
	}

	rid, err := s.AddReminder(ids[1], "Tack up", 60)
	if err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	e = mustEntrant(t, s, ids[1])
	if e.Reminders[0].ID != rid || !e.Reminders[0].FiresAt.Equal(*clock(t, 8, 20)) {
		t.Fatalf("want reminder at 08:20, got %+v", e.Reminders[0])
	}
}

func TestSchedule_NoStartTimeMeansNoTimes(t *testing.T) {
	s := NewSchedule("x", time.Now())
	s.UpdateParameters(ParametersPatch{Throughput: ptr(12.0)})
	id := s.AddEntrant()
	_ = s.UpdateEntrant(id, EntrantPatch{Ordinal: ptr(3)})
	_, _ = s.AddReminder(id, "Warm up", 30)

	e := mustEntrant(t, s, id)
	if e.EstimatedRunTime != nil || e.Reminders[0].FiresAt != nil {
		t.Fatalf("want nil derived times, got %+v", e)
	}
}

func TestSchedule_ZeroThroughputClearsTimes(t *testing.T) {
	s, ids := newEvent(t, 12, 1, 2, 3)
	for _, id := range ids {
		_, _ = s.AddReminder(id, "Boots", 15)
	}
	s.UpdateParameters(ParametersPatch{Throughput: ptr(0.0)})
	for _, id := range ids {
		e := mustEntrant(t, s, id)
		if e.EstimatedRunTime != nil || e.Reminders[0].FiresAt != nil {
			t.Fatalf("entrant %d: want nil derived times", e.Ordinal)
		}
	}
}

func TestSchedule_ClearStartTime(t *testing.T) {
	s, ids := newEvent(t, 12, 4)
	s.UpdateParameters(ParametersPatch{ClearStartTime: true})
	if e := mustEntrant(t, s, ids[0]); e.EstimatedRunTime != nil {
		t.Fatalf("want nil after clearing start time, got %s", e.EstimatedRunTime)
	}
}

func TestSchedule_ThroughputChangeCascades(t *testing.T) {
	s, ids := newEvent(t, 12, 1, 3, 5)
	for _, id := range ids {
		_, _ = s.AddReminder(id, "Saddle", 30)
	}
	names := []string{"Dually", "Smart Chic", "Peppy"}
	for i, id := range ids {
		_ = s.UpdateEntrant(id, EntrantPatch{Name: ptr(names[i])})
	}

	var recomputed []string
	s.OnRecompute(func(tr Trigger, id string) {
		if tr != TriggerThroughput {
			t.Errorf("want throughput trigger, got %s", tr)
		}
		recomputed = append(recomputed, id)
	})
	s.UpdateParameters(ParametersPatch{Throughput: ptr(6.0)})

	if len(recomputed) != len(ids) {
		t.Fatalf("want %d entrants recomputed, got %d", len(ids), len(recomputed))
	}
	wantRun := []*time.Time{clock(t, 9, 0), clock(t, 9, 20), clock(t, 9, 40)}
	for i, id := range ids {
		e := mustEntrant(t, s, id)
		if e.Name != names[i] || e.ID != id {
			t.Fatalf("identity changed: %+v", e)
		}
		if !e.EstimatedRunTime.Equal(*wantRun[i]) {
			t.Fatalf("entrant %d: want %s, got %s", e.Ordinal, wantRun[i], e.EstimatedRunTime)
		}
		wantFire := wantRun[i].Add(-30 * time.Minute)
		if !e.Reminders[0].FiresAt.Equal(wantFire) {
			t.Fatalf("entrant %d reminder: want %s, got %s", e.Ordinal, wantFire, e.Reminders[0].FiresAt)
		}
	}
}

func TestSchedule_StartTimeChangeCascades(t *testing.T) {
	s, ids := newEvent(t, 12, 2)
	_, _ = s.AddReminder(ids[0], "Bridle", 45)
	s.UpdateParameters(ParametersPatch{StartTime: clock(t, 10, 0)})

	e := mustEntrant(t, s, ids[0])
	if !e.EstimatedRunTime.Equal(*clock(t, 10, 5)) {
		t.Fatalf("want 10:05, got %s", e.EstimatedRunTime)
	}
	if !e.Reminders[0].FiresAt.Equal(*clock(t, 9, 20)) {
		t.Fatalf("want 09:20, got %s", e.Reminders[0].FiresAt)
	}
}

func TestSchedule_UnchangedParametersDoNotRecompute(t *testing.T) {
	s, _ := newEvent(t, 12, 1, 2)
	calls := 0
	s.OnRecompute(func(Trigger, string) { calls++ })
	s.UpdateParameters(ParametersPatch{StartTime: clock(t, 9, 0), Throughput: ptr(12.0)})
	if calls != 0 {
		t.Fatalf("want no recompute, got %d", calls)
	}
}

func TestSchedule_OrdinalChangeIsIsolated(t *testing.T) {
	s, ids := newEvent(t, 7, 1, 2, 3, 4)
	before := make(map[string]int64)
	for _, id := range ids {
		before[id] = mustEntrant(t, s, id).EstimatedRunTime.UnixNano()
	}

	var recomputed []string
	s.OnRecompute(func(tr Trigger, id string) {
		if tr != TriggerOrdinal {
			t.Errorf("want ordinal trigger, got %s", tr)
		}
		recomputed = append(recomputed, id)
	})
	if err := s.UpdateEntrant(ids[2], EntrantPatch{Ordinal: ptr(9)}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(recomputed) != 1 || recomputed[0] != ids[2] {
		t.Fatalf("want only %s recomputed, got %v", ids[2], recomputed)
	}
	for _, id := range ids {
		got := mustEntrant(t, s, id).EstimatedRunTime.UnixNano()
		if id == ids[2] {
			if got == before[id] {
				t.Fatalf("moved entrant kept its old run time")
			}
			continue
		}
		if got != before[id] {
			t.Fatalf("entrant %s changed: %d -> %d", id, before[id], got)
		}
	}
}

func TestSchedule_NameChangeDoesNotRecompute(t *testing.T) {
	s, ids := newEvent(t, 12, 3)
	calls := 0
	s.OnRecompute(func(Trigger, string) { calls++ })
	_ = s.UpdateEntrant(ids[0], EntrantPatch{Name: ptr("Metallic Cat")})
	if calls != 0 {
		t.Fatalf("want no recompute on rename, got %d", calls)
	}
}

func TestSchedule_OffsetChangeLeavesSiblingReminders(t *testing.T) {
	s, ids := newEvent(t, 12, 3)
	first, _ := s.AddReminder(ids[0], "Wraps off", 30)
	second, _ := s.AddReminder(ids[0], "Feed", 120)

	e := mustEntrant(t, s, ids[0])
	run := *e.EstimatedRunTime
	if !e.Reminders[0].FiresAt.Equal(run.Add(-30*time.Minute)) ||
		!e.Reminders[1].FiresAt.Equal(run.Add(-120*time.Minute)) {
		t.Fatalf("unexpected fire times: %+v", e.Reminders)
	}
	firstBefore := e.Reminders[0].FiresAt.UnixNano()

	if err := s.UpdateReminder(ids[0], second, ReminderPatch{OffsetMinutes: ptr(90)}); err != nil {
		t.Fatalf("update reminder: %v", err)
	}
	e = mustEntrant(t, s, ids[0])
	if e.Reminders[0].ID != first || e.Reminders[0].FiresAt.UnixNano() != firstBefore {
		t.Fatalf("first reminder changed: %+v", e.Reminders[0])
	}
	if !e.Reminders[1].FiresAt.Equal(run.Add(-90 * time.Minute)) {
		t.Fatalf("second reminder: want %s, got %s", run.Add(-90*time.Minute), e.Reminders[1].FiresAt)
	}
}

func TestSchedule_RemoveDoesNotRenumber(t *testing.T) {
	s, ids := newEvent(t, 12, 1, 2, 3)
	before := mustEntrant(t, s, ids[2])
	if err := s.RemoveEntrant(ids[1]); err != nil {
		t.Fatalf("remove: %v", err)
	}
	after := mustEntrant(t, s, ids[2])
	if after.Ordinal != 3 || !after.EstimatedRunTime.Equal(*before.EstimatedRunTime) {
		t.Fatalf("sibling changed: %+v", after)
	}
	if s.Len() != 2 {
		t.Fatalf("want 2 entrants, got %d", s.Len())
	}
}

func TestSchedule_RemoveReminder(t *testing.T) {
	s, ids := newEvent(t, 12, 1)
	a, _ := s.AddReminder(ids[0], "a", 15)
	b, _ := s.AddReminder(ids[0], "b", 30)
	if err := s.RemoveReminder(ids[0], a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	e := mustEntrant(t, s, ids[0])
	if len(e.Reminders) != 1 || e.Reminders[0].ID != b {
		t.Fatalf("unexpected reminders: %+v", e.Reminders)
	}
}

func TestSchedule_UnknownIDs(t *testing.T) {
	s, ids := newEvent(t, 12, 1)
	if err := s.UpdateEntrant("nope", EntrantPatch{}); !errors.Is(err, ErrEntrantNotFound) {
		t.Fatalf("want ErrEntrantNotFound, got %v", err)
	}
	if err := s.RemoveEntrant("nope"); !errors.Is(err, ErrEntrantNotFound) {
		t.Fatalf("want ErrEntrantNotFound, got %v", err)
	}
	if _, err := s.AddReminder("nope", "x", 1); !errors.Is(err, ErrEntrantNotFound) {
		t.Fatalf("want ErrEntrantNotFound, got %v", err)
	}
	if err := s.UpdateReminder(ids[0], "nope", ReminderPatch{}); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("want ErrReminderNotFound, got %v", err)
	}
	if err := s.RemoveReminder(ids[0], "nope"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("want ErrReminderNotFound, got %v", err)
	}
}

func TestSchedule_InvalidOrdinalDegrades(t *testing.T) {
	s, ids := newEvent(t, 12, 2)
	_, _ = s.AddReminder(ids[0], "Tack", 10)
	_ = s.UpdateEntrant(ids[0], EntrantPatch{Ordinal: ptr(ParseOrdinal("abc"))})
	e := mustEntrant(t, s, ids[0])
	if e.EstimatedRunTime != nil || e.Reminders[0].FiresAt != nil {
		t.Fatalf("want nil derived times for bad ordinal, got %+v", e)
	}
}

func TestAddEntrantFromTemplate(t *testing.T) {
	s, _ := newEvent(t, 12)
	tpl := Template{Name: "Dually", Reminders: []ReminderTemplate{{Label: "Bute", OffsetMinutes: 240}, {Label: "Lunge", OffsetMinutes: 60}}}
	id := s.AddEntrantFromTemplate(tpl, 5)

	e := mustEntrant(t, s, id)
	if e.Name != "Dually" || len(e.Reminders) != 2 {
		t.Fatalf("unexpected entrant: %+v", e)
	}
	if !e.Reminders[0].FiresAt.Equal(*clock(t, 5, 20)) || !e.Reminders[1].FiresAt.Equal(*clock(t, 8, 20)) {
		t.Fatalf("unexpected fire times: %+v", e.Reminders)
	}

	back := TemplateFromEntrant("Dually", e, time.Now())
	if len(back.Reminders) != 2 || back.Reminders[0].OffsetMinutes != 240 {
		t.Fatalf("unexpected template: %+v", back)
	}
}

func TestSnapshot_IsDetached(t *testing.T) {
	s, ids := newEvent(t, 12, 2)
	_, _ = s.AddReminder(ids[0], "Tack", 10)
	snap := s.Snapshot()

	s.UpdateParameters(ParametersPatch{Throughput: ptr(4.0)})
	_, _ = s.AddReminder(ids[0], "Later", 5)

	if len(snap.Entrants[0].Reminders) != 1 {
		t.Fatalf("snapshot reminders grew")
	}
	if !snap.Entrants[0].EstimatedRunTime.Equal(*clock(t, 9, 5)) {
		t.Fatalf("snapshot run time changed: %s", snap.Entrants[0].EstimatedRunTime)
	}
}

func TestSnapshot_JSONNulls(t *testing.T) {
	s := NewSchedule("Open", time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC))
	id := s.AddEntrant()
	_, _ = s.AddReminder(id, "Tack", 60)

	b, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	for _, want := range []string{`"start_time":null`, `"estimated_run_time":null`, `"fires_at":null`} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in %s", want, body)
		}
	}
}

func TestFromSnapshot_Rebuilds(t *testing.T) {
	s, ids := newEvent(t, 7, 3, 1)
	_, _ = s.AddReminder(ids[0], "Tack", 45)
	snap := s.Snapshot()

	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	re := FromSnapshot(decoded)
	if re.ID != s.ID || re.Len() != 2 {
		t.Fatalf("unexpected rebuilt schedule: %+v", re.Snapshot())
	}
	got := re.Snapshot()
	for i := range snap.Entrants {
		if got.Entrants[i].ID != snap.Entrants[i].ID {
			t.Fatalf("order changed at %d", i)
		}
		if !got.Entrants[i].EstimatedRunTime.Equal(*snap.Entrants[i].EstimatedRunTime) {
			t.Fatalf("run time changed at %d: %s vs %s", i, got.Entrants[i].EstimatedRunTime, snap.Entrants[i].EstimatedRunTime)
		}
	}
	if !got.Entrants[0].Reminders[0].FiresAt.Equal(*snap.Entrants[0].Reminders[0].FiresAt) {
		t.Fatalf("fire time changed")
	}
}
