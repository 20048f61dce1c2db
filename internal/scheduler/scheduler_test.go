package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/runready/internal/domain"
	"github.com/ykvlv/runready/internal/store"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	msgs []sent
	fail error
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	if f.fail != nil {
		return f.fail
	}
	f.msgs = append(f.msgs, sent{chatID, text})
	return nil
}

func setup(t *testing.T) (*Scheduler, *store.SQLiteRepo, *fakeSender) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "sched.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	sender := &fakeSender{}
	return New(repo, zap.NewNop(), sender, Options{Location: time.UTC}), repo, sender
}

// event: start 09:00, 12/h, entrant #5 named "Dually" with reminders 60 and
// 120 minutes out, plus an unnamed entrant with no draw.
func event(t *testing.T) domain.Snapshot {
	t.Helper()
	s := domain.NewSchedule("Derby", time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC))
	start := time.Date(2025, time.June, 14, 9, 0, 0, 0, time.UTC)
	rate := 12.0
	s.UpdateParameters(domain.ParametersPatch{StartTime: &start, Throughput: &rate})

	id := s.AddEntrant()
	name, ord := "Dually", 5
	_ = s.UpdateEntrant(id, domain.EntrantPatch{Name: &name, Ordinal: &ord})
	_, _ = s.AddReminder(id, "Tack up", 60)
	_, _ = s.AddReminder(id, "Feed", 120)

	blank := s.AddEntrant()
	_, _ = s.AddReminder(blank, "Never", 10)
	return s.Snapshot()
}

func TestPlan_OnlyFutureKnownTimes(t *testing.T) {
	snap := event(t)
	now := time.Date(2025, time.June, 14, 7, 30, 0, 0, time.UTC)

	alerts := Plan(99, snap, now, time.UTC)
	if len(alerts) != 1 {
		t.Fatalf("want 1 alert (08:20), got %d: %+v", len(alerts), alerts)
	}
	a := alerts[0]
	if a.Title != "Dually - Tack up" {
		t.Fatalf("unexpected title %q", a.Title)
	}
	if a.Body != "Time for Tack up. Dually runs at 9:20 AM." {
		t.Fatalf("unexpected body %q", a.Body)
	}
	if !a.FiresAt.Equal(time.Date(2025, time.June, 14, 8, 20, 0, 0, time.UTC)) {
		t.Fatalf("unexpected fire time %s", a.FiresAt)
	}

	// exactly at fire time is not strictly in the future
	if got := Plan(99, snap, a.FiresAt, time.UTC); len(got) != 0 {
		t.Fatalf("want none at fire instant, got %d", len(got))
	}
}

func TestSchedule_ReplacesAndDispatches(t *testing.T) {
	ctx := context.Background()
	s, repo, sender := setup(t)
	snap := event(t)
	if err := repo.SaveEvent(ctx, 99, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	early := time.Date(2025, time.June, 14, 6, 0, 0, 0, time.UTC)
	n, err := s.Schedule(ctx, 99, snap, early)
	if err != nil || n != 2 {
		t.Fatalf("want 2 alerts, got %d (%v)", n, err)
	}
	// rescheduling must not duplicate
	if n, err = s.Schedule(ctx, 99, snap, early); err != nil || n != 2 {
		t.Fatalf("reschedule: want 2 alerts, got %d (%v)", n, err)
	}

	s.now = func() time.Time { return time.Date(2025, time.June, 14, 8, 30, 0, 0, time.UTC) }
	s.tick(ctx)

	if len(sender.msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(sender.msgs))
	}
	if !strings.HasPrefix(sender.msgs[0].text, "Dually - Feed") || sender.msgs[0].chatID != 99 {
		t.Fatalf("want earliest alert first, got %+v", sender.msgs[0])
	}

	s.tick(ctx)
	if len(sender.msgs) != 2 {
		t.Fatalf("alerts re-sent: %d", len(sender.msgs))
	}
}

func TestSchedule_DisabledCancels(t *testing.T) {
	ctx := context.Background()
	s, repo, sender := setup(t)
	snap := event(t)
	_ = repo.SaveEvent(ctx, 1, snap)

	early := time.Date(2025, time.June, 14, 6, 0, 0, 0, time.UTC)
	if _, err := s.Schedule(ctx, 1, snap, early); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	snap.NotificationsEnabled = false
	n, err := s.Schedule(ctx, 1, snap, early)
	if err != nil || n != 0 {
		t.Fatalf("want 0 alerts, got %d (%v)", n, err)
	}

	s.now = func() time.Time { return time.Date(2025, time.June, 14, 12, 0, 0, 0, time.UTC) }
	s.tick(ctx)
	if len(sender.msgs) != 0 {
		t.Fatalf("disabled event sent %d messages", len(sender.msgs))
	}
}

func TestCancel_Idempotent(t *testing.T) {
	s, _, _ := setup(t)
	if err := s.Cancel(context.Background(), "missing"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestTick_FailedSendIsRetried(t *testing.T) {
	ctx := context.Background()
	s, repo, sender := setup(t)
	snap := event(t)
	_ = repo.SaveEvent(ctx, 5, snap)
	if _, err := s.Schedule(ctx, 5, snap, time.Date(2025, time.June, 14, 6, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	s.now = func() time.Time { return time.Date(2025, time.June, 14, 9, 0, 0, 0, time.UTC) }
	sender.fail = errors.New("telegram down")
	s.tick(ctx)
	if len(sender.msgs) != 0 {
		t.Fatalf("unexpected messages")
	}

	sender.fail = nil
	s.tick(ctx)
	if len(sender.msgs) != 2 {
		t.Fatalf("want 2 retried messages, got %d", len(sender.msgs))
	}
}

func TestEntrantTitle(t *testing.T) {
	cases := []struct {
		e    domain.EntrantSnapshot
		want string
	}{
		{domain.EntrantSnapshot{Name: "Peppy"}, "Peppy"},
		{domain.EntrantSnapshot{Ordinal: 7}, "Entrant #7"},
		{domain.EntrantSnapshot{}, "Entrant"},
	}
	for _, tc := range cases {
		if got := EntrantTitle(tc.e); got != tc.want {
			t.Fatalf("want %q, got %q", tc.want, got)
		}
	}
}

func TestSenderFunc(t *testing.T) {
	var got sent
	var s Sender = SenderFunc(func(chatID int64, text string) error {
		got = sent{chatID, text}
		return nil
	})
	if err := s.SendMessage(7, "hi"); err != nil || got != (sent{7, "hi"}) {
		t.Fatalf("unexpected %+v (%v)", got, err)
	}
}
