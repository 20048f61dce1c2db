package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/runready/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single connection: SQLite is a single-writer engine and foreign_keys
	// is a per-connection pragma.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// SaveEvent upserts the event row and replaces its entrants and reminders,
// all in one transaction. List order is kept in the position columns.
func (r *SQLiteRepo) SaveEvent(ctx context.Context, chatID int64, snap domain.Snapshot) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (
				id, chat_id, name, event_date, start_time, throughput,
				notifications_enabled, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name                  = excluded.name,
				event_date            = excluded.event_date,
				start_time            = excluded.start_time,
				throughput            = excluded.throughput,
				notifications_enabled = excluded.notifications_enabled,
				updated_at            = excluded.updated_at`,
			snap.ID, chatID, snap.Name, toNanos(snap.EventDate), toNullNanos(snap.StartTime),
			snap.Throughput, boolToInt(snap.NotificationsEnabled),
			toNanos(snap.CreatedAt), toNanos(snap.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert event: %w", err)
		}

		// reminders go with their entrants via ON DELETE CASCADE
		if _, err := tx.ExecContext(ctx, `DELETE FROM entrants WHERE event_id = ?`, snap.ID); err != nil {
			return fmt.Errorf("clear entrants: %w", err)
		}

		for i, e := range snap.Entrants {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO entrants (id, event_id, position, name, ordinal, estimated_run_time)
				VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, snap.ID, i, e.Name, e.Ordinal, toNullNanos(e.EstimatedRunTime),
			); err != nil {
				return fmt.Errorf("insert entrant %s: %w", e.ID, err)
			}
			for j, rm := range e.Reminders {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO reminders (id, event_id, entrant_id, position, label, offset_minutes, fires_at)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					rm.ID, snap.ID, e.ID, j, rm.Label, rm.OffsetMinutes, toNullNanos(rm.FiresAt),
				); err != nil {
					return fmt.Errorf("insert reminder %s: %w", rm.ID, err)
				}
			}
		}
		return nil
	})
}

// GetEvent loads a saved event with its entrants and reminders in their
// saved order. Returns ErrNotFound for an unknown id.
func (r *SQLiteRepo) GetEvent(ctx context.Context, id string) (*StoredEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, name, event_date, start_time, throughput,
		       notifications_enabled, created_at, updated_at
		FROM events
		WHERE id = ?`,
		id,
	)

	var (
		chatID     int64
		name       string
		eventDate  int64
		startNS    sql.NullInt64
		throughput float64
		enabledInt int
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(&chatID, &name, &eventDate, &startNS, &throughput, &enabledInt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	snap := domain.Snapshot{
		ID:                   id,
		Name:                 name,
		EventDate:            fromNanos(eventDate),
		StartTime:            fromNullNanos(startNS),
		Throughput:           throughput,
		NotificationsEnabled: enabledInt != 0,
		Entrants:             []domain.EntrantSnapshot{},
		CreatedAt:            fromNanos(createdAt),
		UpdatedAt:            fromNanos(updatedAt),
	}

	entrants, err := r.loadEntrants(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.Entrants = entrants
	return &StoredEvent{ChatID: chatID, Snapshot: snap}, nil
}

func (r *SQLiteRepo) loadEntrants(ctx context.Context, eventID string) ([]domain.EntrantSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, ordinal, estimated_run_time
		FROM entrants
		WHERE event_id = ?
		ORDER BY position ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []domain.EntrantSnapshot{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			e     domain.EntrantSnapshot
			runNS sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Ordinal, &runNS); err != nil {
			return nil, err
		}
		e.EstimatedRunTime = fromNullNanos(runNS)
		e.Reminders = []domain.ReminderSnapshot{}
		index[e.ID] = len(res)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rrows, err := r.db.QueryContext(ctx, `
		SELECT entrant_id, id, label, offset_minutes, fires_at
		FROM reminders
		WHERE event_id = ?
		ORDER BY entrant_id, position ASC`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rrows.Close()

	for rrows.Next() {
		var (
			entrantID string
			rm        domain.ReminderSnapshot
			fireNS    sql.NullInt64
		)
		if err := rrows.Scan(&entrantID, &rm.ID, &rm.Label, &rm.OffsetMinutes, &fireNS); err != nil {
			return nil, err
		}
		rm.FiresAt = fromNullNanos(fireNS)
		if i, ok := index[entrantID]; ok {
			res[i].Reminders = append(res[i].Reminders, rm)
		}
	}
	return res, rrows.Err()
}

// ListEvents returns the chat's saved events, most recently updated first.
func (r *SQLiteRepo) ListEvents(ctx context.Context, chatID int64) ([]EventSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.event_date, e.updated_at,
		       (SELECT COUNT(*) FROM entrants n WHERE n.event_id = e.id)
		FROM events e
		WHERE e.chat_id = ?
		ORDER BY e.updated_at DESC`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []EventSummary
	for rows.Next() {
		var (
			s         EventSummary
			eventDate int64
			updatedAt int64
		)
		if err := rows.Scan(&s.ID, &s.Name, &eventDate, &updatedAt, &s.Entrants); err != nil {
			return nil, err
		}
		s.EventDate = fromNanos(eventDate)
		s.UpdatedAt = fromNanos(updatedAt)
		res = append(res, s)
	}
	return res, rows.Err()
}

// DeleteEvent removes the event together with its entrants, reminders and
// alerts. Deleting an unknown id is a no-op.
func (r *SQLiteRepo) DeleteEvent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return err
}

// SaveTemplate stores tpl under its name, replacing any template of the
// same name for this chat.
func (r *SQLiteRepo) SaveTemplate(ctx context.Context, chatID int64, tpl domain.Template) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM templates WHERE chat_id = ? AND name = ?`, chatID, tpl.Name,
		); err != nil {
			return fmt.Errorf("clear template: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO templates (id, chat_id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			tpl.ID, chatID, tpl.Name, toNanos(tpl.CreatedAt), toNanos(tpl.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert template: %w", err)
		}
		for i, rt := range tpl.Reminders {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO template_reminders (id, template_id, position, label, offset_minutes)
				VALUES (?, ?, ?, ?, ?)`,
				rt.ID, tpl.ID, i, rt.Label, rt.OffsetMinutes,
			); err != nil {
				return fmt.Errorf("insert template reminder: %w", err)
			}
		}
		return nil
	})
}

// GetTemplateByName returns the chat's template with this name or ErrNotFound.
func (r *SQLiteRepo) GetTemplateByName(ctx context.Context, chatID int64, name string) (*domain.Template, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM templates
		WHERE chat_id = ? AND name = ?`,
		chatID, name,
	)
	var (
		tpl       domain.Template
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&tpl.ID, &tpl.Name, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	tpl.CreatedAt = fromNanos(createdAt)
	tpl.UpdatedAt = fromNanos(updatedAt)

	reminders, err := r.templateReminders(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	tpl.Reminders = reminders
	return &tpl, nil
}

// ListTemplates returns the chat's templates ordered by name.
func (r *SQLiteRepo) ListTemplates(ctx context.Context, chatID int64) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM templates
		WHERE chat_id = ?
		ORDER BY name ASC`,
		chatID,
	)
	if err != nil {
		return nil, err
	}

	var res []domain.Template
	for rows.Next() {
		var (
			tpl       domain.Template
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&tpl.ID, &tpl.Name, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		tpl.CreatedAt = fromNanos(createdAt)
		tpl.UpdatedAt = fromNanos(updatedAt)
		res = append(res, tpl)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// reminders are loaded after the cursor is closed: the pool has one connection
	for i := range res {
		reminders, err := r.templateReminders(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Reminders = reminders
	}
	return res, nil
}

func (r *SQLiteRepo) templateReminders(ctx context.Context, templateID string) ([]domain.ReminderTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, offset_minutes
		FROM template_reminders
		WHERE template_id = ?
		ORDER BY position ASC`,
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.ReminderTemplate
	for rows.Next() {
		var rt domain.ReminderTemplate
		if err := rows.Scan(&rt.ID, &rt.Label, &rt.OffsetMinutes); err != nil {
			return nil, err
		}
		res = append(res, rt)
	}
	return res, rows.Err()
}

// DeleteTemplate removes the named template. Unknown names are a no-op.
func (r *SQLiteRepo) DeleteTemplate(ctx context.Context, chatID int64, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE chat_id = ? AND name = ?`, chatID, name)
	return err
}

// ReplaceAlerts cancels every alert of the event and registers the given
// ones in the same transaction.
func (r *SQLiteRepo) ReplaceAlerts(ctx context.Context, eventID string, alerts []Alert) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE event_id = ?`, eventID); err != nil {
			return fmt.Errorf("cancel alerts: %w", err)
		}
		for _, a := range alerts {
			if a.EventID != eventID {
				return fmt.Errorf("alert for event %s in batch for %s", a.EventID, eventID)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO alerts (event_id, entrant_id, reminder_id, chat_id, fires_at, title, body, sent_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
				a.EventID, a.EntrantID, a.ReminderID, a.ChatID, toNanos(a.FiresAt), a.Title, a.Body,
			); err != nil {
				return fmt.Errorf("insert alert: %w", err)
			}
		}
		return nil
	})
}

// CancelAlerts removes every alert of the event. Idempotent.
func (r *SQLiteRepo) CancelAlerts(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE event_id = ?`, eventID)
	return err
}

// ListDueAlerts returns up to limit unsent alerts with fires_at <= now,
// earliest first.
func (r *SQLiteRepo) ListDueAlerts(ctx context.Context, now time.Time, limit int) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, entrant_id, reminder_id, chat_id, fires_at, title, body
		FROM alerts
		WHERE sent_at IS NULL
		  AND fires_at <= ?
		ORDER BY fires_at ASC
		LIMIT ?`,
		toNanos(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Alert
	for rows.Next() {
		var (
			a       Alert
			firesAt int64
		)
		if err := rows.Scan(&a.EventID, &a.EntrantID, &a.ReminderID, &a.ChatID, &firesAt, &a.Title, &a.Body); err != nil {
			return nil, err
		}
		a.FiresAt = fromNanos(firesAt)
		res = append(res, a)
	}
	return res, rows.Err()
}

// MarkAlertSent records that the alert was delivered.
func (r *SQLiteRepo) MarkAlertSent(ctx context.Context, key AlertKey, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alerts
		SET sent_at = ?
		WHERE event_id = ? AND entrant_id = ? AND reminder_id = ?`,
		toNanos(at), key.EventID, key.EntrantID, key.ReminderID,
	)
	return err
}

func (r *SQLiteRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
