package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"appointment-service/internal/models"
)

// CreateNotification appends one delivery attempt to the log.
func (d *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	var reminderID *string
	if n.ReminderID != "" {
		reminderID = &n.ReminderID
	}
	_, err := d.Pool.Exec(ctx, `
	INSERT INTO notifications (
		id, created_at, owner, kind, reminder_id, appointment_id, recipient_id, recipient_name,
		class, channel, body, status, last_error
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		n.ID, n.CreatedAt, n.Owner, n.Kind, reminderID, n.AppointmentID, n.RecipientID, n.RecipientName,
		string(n.Class), n.Channel, n.Body, n.Status, n.Error)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns owner's most recent delivery attempts.
func (d *DB) ListNotifications(ctx context.Context, owner string, limit int) ([]models.Notification, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT id, created_at, owner, kind, COALESCE(reminder_id, ''), appointment_id, recipient_id, recipient_name,
	       class, channel, body, status, last_error
	FROM notifications WHERE owner = $1
	ORDER BY created_at DESC LIMIT $2`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var class string
		if err := rows.Scan(&n.ID, &n.CreatedAt, &n.Owner, &n.Kind, &n.ReminderID, &n.AppointmentID, &n.RecipientID,
			&n.RecipientName, &class, &n.Channel, &n.Body, &n.Status, &n.Error); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Class = models.RecipientClass(class)
		out = append(out, n)
	}
	return out, rows.Err()
}
