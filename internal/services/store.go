package services

import (
	"context"
	"time"

	"appointment-service/internal/models"
)

// ReminderStore persists rules, staff and scheduled reminders.
type ReminderStore interface {
	GetReminderRules(ctx context.Context, owner string) ([]models.ReminderRule, bool, error)
	SaveReminderRules(ctx context.Context, owner string, rules []models.ReminderRule) error
	ListEmployees(ctx context.Context, owner string) ([]models.Employee, error)
	CreateScheduledReminder(ctx context.Context, r models.ScheduledReminder) (models.ScheduledReminder, bool, error)
	ClaimScheduledReminder(ctx context.Context, id string, now time.Time) (models.ScheduledReminder, error)
	DuePendingReminders(ctx context.Context, now time.Time, limit int) ([]models.ScheduledReminder, error)
}

// AppointmentStore is the canonical appointment repository.
type AppointmentStore interface {
	ListAppointments(ctx context.Context, owner string) ([]models.Appointment, error)
	GetAppointment(ctx context.Context, owner, id string) (models.Appointment, error)
	CreateAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error)
	UpsertAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error)
	UpdateAppointment(ctx context.Context, owner, id string, patch models.AppointmentPatch) (models.Appointment, error)
	DeleteAppointment(ctx context.Context, owner, id string) error
	MarkNotificationSent(ctx context.Context, owner, id string) error
}

// DeliveryLog records every send attempt.
type DeliveryLog interface {
	CreateNotification(ctx context.Context, n models.Notification) error
}

// Gateway delivers one message to one recipient.
type Gateway interface {
	Send(ctx context.Context, r models.Recipient, message string, sc models.SendContext) error
	ChannelFor(r models.Recipient) string
}

// Notifier pushes a payload to an owner's live connections.
type Notifier interface {
	SendToOwner(owner string, message []byte)
}
