package store

import (
	"database/sql"
	"time"

	"github.com/ykvlv/runready/internal/domain"
)

// Timestamps are stored as Unix nanoseconds so fractional-minute run times
// survive a save/load cycle unchanged.

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}

func fromNullNanos(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(0, ns.Int64).UTC()
	return &t
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// AlertKey identifies one registered alert.
type AlertKey struct {
	EventID    string
	EntrantID  string
	ReminderID string
}

// Alert is a one-shot message due at FiresAt.
type Alert struct {
	AlertKey
	ChatID  int64
	FiresAt time.Time
	Title   string
	Body    string
	SentAt  *time.Time
}

// EventSummary is a row of the saved-events list.
type EventSummary struct {
	ID        string
	Name      string
	EventDate time.Time
	Entrants  int
	UpdatedAt time.Time
}

// StoredEvent is a saved snapshot together with its owner.
type StoredEvent struct {
	ChatID   int64
	Snapshot domain.Snapshot
}
