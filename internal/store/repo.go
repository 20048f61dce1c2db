package store

import (
	"context"
	"errors"
	"time"

	"github.com/ykvlv/runready/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Repo defines storage operations for events, templates and alerts.
type Repo interface {
	SaveEvent(ctx context.Context, chatID int64, snap domain.Snapshot) error
	GetEvent(ctx context.Context, id string) (*StoredEvent, error)
	ListEvents(ctx context.Context, chatID int64) ([]EventSummary, error)
	DeleteEvent(ctx context.Context, id string) error

	SaveTemplate(ctx context.Context, chatID int64, tpl domain.Template) error
	GetTemplateByName(ctx context.Context, chatID int64, name string) (*domain.Template, error)
	ListTemplates(ctx context.Context, chatID int64) ([]domain.Template, error)
	DeleteTemplate(ctx context.Context, chatID int64, name string) error

	ReplaceAlerts(ctx context.Context, eventID string, alerts []Alert) error
	CancelAlerts(ctx context.Context, eventID string) error
	ListDueAlerts(ctx context.Context, now time.Time, limit int) ([]Alert, error)
	MarkAlertSent(ctx context.Context, key AlertKey, at time.Time) error

	Close() error
}
