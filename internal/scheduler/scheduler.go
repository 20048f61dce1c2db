package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/runready/internal/domain"
	"github.com/ykvlv/runready/internal/metrics"
	"github.com/ykvlv/runready/internal/store"
)

// Sender is a minimal interface the scheduler needs to send a text message.
// telegram.Router implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(chatID int64, text string) error

func (f SenderFunc) SendMessage(chatID int64, text string) error { return f(chatID, text) }

// AlertStore is the part of store.Repo the scheduler uses.
type AlertStore interface {
	ReplaceAlerts(ctx context.Context, eventID string, alerts []store.Alert) error
	CancelAlerts(ctx context.Context, eventID string) error
	ListDueAlerts(ctx context.Context, now time.Time, limit int) ([]store.Alert, error)
	MarkAlertSent(ctx context.Context, key store.AlertKey, at time.Time) error
}

// Options tune the dispatch loop. Zero values pick the defaults.
type Options struct {
	Interval time.Duration  // poll period, default 30s
	Batch    int            // max alerts per tick, default 100
	Location *time.Location // for run times in alert text, default UTC
	Metrics  *metrics.Metrics
}

// Scheduler registers reminder alerts from event snapshots and periodically
// dispatches the ones that are due.
type Scheduler struct {
	repo     AlertStore
	log      *zap.Logger
	sender   Sender
	interval time.Duration
	batch    int
	loc      *time.Location
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a new Scheduler.
func New(repo AlertStore, log *zap.Logger, sender Sender, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Scheduler{
		repo:     repo,
		log:      log,
		sender:   sender,
		interval: opts.Interval,
		batch:    opts.Batch,
		loc:      opts.Location,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// Schedule replaces the event's alerts with one per reminder whose fire time
// is known and strictly after now. With notifications disabled it only
// cancels. Returns the number of alerts registered.
func (s *Scheduler) Schedule(ctx context.Context, chatID int64, snap domain.Snapshot, now time.Time) (int, error) {
	if !snap.NotificationsEnabled {
		if err := s.Cancel(ctx, snap.ID); err != nil {
			return 0, err
		}
		s.log.Info("notifications disabled", zap.String("event", snap.ID))
		return 0, nil
	}

	alerts := Plan(chatID, snap, now, s.loc)
	if err := s.repo.ReplaceAlerts(ctx, snap.ID, alerts); err != nil {
		return 0, fmt.Errorf("register alerts for %s: %w", snap.ID, err)
	}
	s.metrics.AlertsRegistered.Add(float64(len(alerts)))
	s.log.Info("alerts scheduled",
		zap.String("event", snap.ID),
		zap.Int64("chatID", chatID),
		zap.Int("count", len(alerts)),
	)
	return len(alerts), nil
}

// Cancel drops every alert registered for the event. Cancelling an event
// with no alerts is not an error.
func (s *Scheduler) Cancel(ctx context.Context, eventID string) error {
	if err := s.repo.CancelAlerts(ctx, eventID); err != nil {
		return fmt.Errorf("cancel alerts for %s: %w", eventID, err)
	}
	return nil
}

// Plan builds the alerts for snap without touching storage.
func Plan(chatID int64, snap domain.Snapshot, now time.Time, loc *time.Location) []store.Alert {
	var alerts []store.Alert
	for _, e := range snap.Entrants {
		name := EntrantTitle(e)
		for _, r := range e.Reminders {
			if r.FiresAt == nil || !r.FiresAt.After(now) {
				continue
			}
			alerts = append(alerts, store.Alert{
				AlertKey: store.AlertKey{EventID: snap.ID, EntrantID: e.ID, ReminderID: r.ID},
				ChatID:   chatID,
				FiresAt:  *r.FiresAt,
				Title:    fmt.Sprintf("%s - %s", name, r.Label),
				Body:     fmt.Sprintf("Time for %s. %s runs at %s.", r.Label, name, domain.FormatClock(e.EstimatedRunTime, loc)),
			})
		}
	}
	return alerts
}

// EntrantTitle is the entrant's name, or "Entrant #<draw>" when unnamed.
func EntrantTitle(e domain.EntrantSnapshot) string {
	if e.Name != "" {
		return e.Name
	}
	if e.Ordinal > 0 {
		return fmt.Sprintf("Entrant #%d", e.Ordinal)
	}
	return "Entrant"
}

// Run starts the loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one dispatch cycle: find due alerts, send, mark sent.
// Failed sends stay unsent and are retried next tick.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	alerts, err := s.repo.ListDueAlerts(ctx, now, s.batch)
	if err != nil {
		s.log.Error("ListDueAlerts failed", zap.Error(err))
		return
	}
	for _, a := range alerts {
		if err := s.sender.SendMessage(a.ChatID, a.Title+"\n"+a.Body); err != nil {
			s.metrics.AlertsFailed.Inc()
			s.log.Error("send failed", zap.Error(err), zap.Int64("chatID", a.ChatID), zap.String("event", a.EventID))
			continue
		}
		s.metrics.AlertsSent.Inc()

		if err := s.repo.MarkAlertSent(ctx, a.AlertKey, now); err != nil {
			s.log.Error("MarkAlertSent failed", zap.Error(err), zap.String("event", a.EventID), zap.String("reminder", a.ReminderID))
		}
	}
}
