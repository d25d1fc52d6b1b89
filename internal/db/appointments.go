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

const appointmentColumns = `id, owner, title, start_time, end_time, status, type, staff_ids, contacts, tags,
	meeting_link, notification_sent, color, metadata, created_at, updated_at`

func scanAppointment(row pgx.Row) (models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(
		&a.ID, &a.Owner, &a.Title, &a.Start, &a.End, &a.Status, &a.Type, &a.StaffIDs, &a.Contacts, &a.Tags,
		&a.MeetingLink, &a.NotificationSent, &a.Color, &a.Metadata, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ListAppointments returns owner's appointments ordered by start time.
func (d *DB) ListAppointments(ctx context.Context, owner string) ([]models.Appointment, error) {
	rows, err := d.Pool.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE owner = $1 ORDER BY start_time`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) GetAppointment(ctx context.Context, owner, id string) (models.Appointment, error) {
	a, err := scanAppointment(d.Pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE owner = $1 AND id = $2`, owner, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Appointment{}, fmt.Errorf("failed to get appointment %s: %w", id, err)
	}
	return a, nil
}

// CreateAppointment inserts a, generating an id when empty.
func (d *DB) CreateAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return d.UpsertAppointment(ctx, a)
}

// UpsertAppointment inserts a or overwrites the stored row with the same id.
// Appointments arriving from the event stream come through here.
func (d *DB) UpsertAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	if a.Status == "" {
		a.Status = models.AppointmentConfirmed
	}
	if a.Metadata == nil {
		a.Metadata = map[string]interface{}{}
	}
	query := `
	INSERT INTO appointments (
		id, owner, title, start_time, end_time, status, type, staff_ids, contacts, tags,
		meeting_link, notification_sent, color, metadata, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title, start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
		status = EXCLUDED.status, type = EXCLUDED.type, staff_ids = EXCLUDED.staff_ids,
		contacts = EXCLUDED.contacts, tags = EXCLUDED.tags, meeting_link = EXCLUDED.meeting_link,
		notification_sent = appointments.notification_sent OR EXCLUDED.notification_sent,
		color = EXCLUDED.color, metadata = EXCLUDED.metadata, updated_at = NOW()
	WHERE appointments.owner = EXCLUDED.owner
	RETURNING ` + appointmentColumns

	saved, err := scanAppointment(d.Pool.QueryRow(ctx, query,
		a.ID, a.Owner, a.Title, a.Start, a.End, a.Status, a.Type, nonNil(a.StaffIDs), nonNil(a.Contacts), nonNil(a.Tags),
		a.MeetingLink, a.NotificationSent, a.Color, a.Metadata,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Appointment{}, fmt.Errorf("appointment %s belongs to another owner: %w", a.ID, models.ErrNotFound)
	}
	if err != nil {
		return models.Appointment{}, fmt.Errorf("failed to save appointment: %w", err)
	}
	return saved, nil
}

// UpdateAppointment applies patch to the stored appointment inside a
// transaction.
func (d *DB) UpdateAppointment(ctx context.Context, owner, id string, patch models.AppointmentPatch) (models.Appointment, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return models.Appointment{}, err
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE owner = $1 AND id = $2 FOR UPDATE`, owner, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Appointment{}, fmt.Errorf("failed to load appointment %s: %w", id, err)
	}

	patch.Apply(&a)
	if !a.End.After(a.Start) {
		return models.Appointment{}, fmt.Errorf("appointment %s ends before it starts: %w", id, models.ErrValidation)
	}

	a, err = scanAppointment(tx.QueryRow(ctx, `
	UPDATE appointments SET
		title = $3, start_time = $4, end_time = $5, status = $6, type = $7, staff_ids = $8, contacts = $9,
		tags = $10, meeting_link = $11, notification_sent = $12, color = $13, metadata = $14, updated_at = $15
	WHERE owner = $1 AND id = $2
	RETURNING `+appointmentColumns,
		owner, id, a.Title, a.Start, a.End, a.Status, a.Type, nonNil(a.StaffIDs), nonNil(a.Contacts),
		nonNil(a.Tags), a.MeetingLink, a.NotificationSent, a.Color, a.Metadata, time.Now(),
	))
	if err != nil {
		return models.Appointment{}, fmt.Errorf("failed to update appointment %s: %w", id, err)
	}
	return a, tx.Commit(ctx)
}

func (d *DB) DeleteAppointment(ctx context.Context, owner, id string) error {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM appointments WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// MarkNotificationSent sets the new-appointment notice flag.
func (d *DB) MarkNotificationSent(ctx context.Context, owner, id string) error {
	tag, err := d.Pool.Exec(ctx,
		`UPDATE appointments SET notification_sent = TRUE, updated_at = NOW() WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to mark appointment %s notified: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", id, models.ErrNotFound)
	}
	return nil
}
