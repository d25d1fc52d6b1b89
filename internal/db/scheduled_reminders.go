package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"appointment-service/internal/models"
)

const reminderColumns = `id, owner, appointment_id, rule, recipient_class, message, recipients,
	trigger_time, processed, processed_at, created_at`

func scanReminder(row pgx.Row) (models.ScheduledReminder, error) {
	var r models.ScheduledReminder
	err := row.Scan(
		&r.ID, &r.Owner, &r.AppointmentID, &r.Rule, &r.RecipientClass, &r.Message, &r.Recipients,
		&r.TriggerTime, &r.Processed, &r.ProcessedAt, &r.CreatedAt,
	)
	return r, err
}

func collectReminders(rows pgx.Rows) ([]models.ScheduledReminder, error) {
	defer rows.Close()
	var out []models.ScheduledReminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateScheduledReminder persists r as pending. When a reminder with the
// same appointment, trigger time and recipient class exists, that row is
// returned instead and created is false.
func (d *DB) CreateScheduledReminder(ctx context.Context, r models.ScheduledReminder) (saved models.ScheduledReminder, created bool, err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	saved, err = scanReminder(d.Pool.QueryRow(ctx, `
	INSERT INTO scheduled_reminders (
		id, owner, appointment_id, rule, recipient_class, message, recipients, trigger_time, processed, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, NOW())
	ON CONFLICT (appointment_id, trigger_time, recipient_class) DO NOTHING
	RETURNING `+reminderColumns,
		r.ID, r.Owner, r.AppointmentID, r.Rule, r.RecipientClass, r.Message, nonNil(r.Recipients), r.TriggerTime,
	))
	if err == nil {
		return saved, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.ScheduledReminder{}, false, fmt.Errorf("failed to insert scheduled reminder: %w", err)
	}

	saved, err = scanReminder(d.Pool.QueryRow(ctx, `
	SELECT `+reminderColumns+` FROM scheduled_reminders
	WHERE appointment_id = $1 AND trigger_time = $2 AND recipient_class = $3`,
		r.AppointmentID, r.TriggerTime, r.RecipientClass))
	if err != nil {
		return models.ScheduledReminder{}, false, fmt.Errorf("failed to load existing scheduled reminder: %w", err)
	}
	return saved, false, nil
}

// ClaimScheduledReminder flips processed from false to true. Exactly one
// caller wins; the others get ErrAlreadyClaimed.
func (d *DB) ClaimScheduledReminder(ctx context.Context, id string, now time.Time) (models.ScheduledReminder, error) {
	r, err := scanReminder(d.Pool.QueryRow(ctx, `
	UPDATE scheduled_reminders SET processed = TRUE, processed_at = $2
	WHERE id = $1 AND processed = FALSE
	RETURNING `+reminderColumns, id, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ScheduledReminder{}, fmt.Errorf("reminder %s: %w", id, models.ErrAlreadyClaimed)
	}
	if err != nil {
		return models.ScheduledReminder{}, fmt.Errorf("failed to claim reminder %s: %w", id, err)
	}
	return r, nil
}

// DuePendingReminders lists unprocessed reminders with trigger_time <= now,
// oldest first.
func (d *DB) DuePendingReminders(ctx context.Context, now time.Time, limit int) ([]models.ScheduledReminder, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT `+reminderColumns+` FROM scheduled_reminders
	WHERE processed = FALSE AND trigger_time <= $1
	ORDER BY trigger_time LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	return collectReminders(rows)
}

// ListScheduledReminders returns owner's reminders by trigger time.
func (d *DB) ListScheduledReminders(ctx context.Context, owner string, pendingOnly bool) ([]models.ScheduledReminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM scheduled_reminders WHERE owner = $1`
	if pendingOnly {
		query += ` AND processed = FALSE`
	}
	rows, err := d.Pool.Query(ctx, query+` ORDER BY trigger_time`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled reminders: %w", err)
	}
	return collectReminders(rows)
}
