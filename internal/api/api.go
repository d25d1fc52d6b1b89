package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"appointment-service/internal/models"
	"appointment-service/internal/reconcile"
)

// Appointments is the appointment use-case layer the handlers call.
type Appointments interface {
	List(ctx context.Context, owner string) ([]models.Appointment, error)
	Create(ctx context.Context, owner string, in models.AppointmentCreate) (models.Appointment, error)
	Update(ctx context.Context, owner, id string, patch models.AppointmentPatch) (models.Appointment, error)
	Delete(ctx context.Context, owner, id string) error
}

// Calendar serves the reconciled display set.
type Calendar interface {
	Refresh(ctx context.Context, owner string) (reconcile.Result, error)
	Latest(owner string) (reconcile.Result, bool)
}

// ReminderSettings reads and writes an owner's reminder rules.
type ReminderSettings interface {
	Rules(ctx context.Context, owner string) ([]models.ReminderRule, error)
	SaveRules(ctx context.Context, owner string, rules []models.ReminderRule) ([]models.ReminderRule, error)
}

// Records exposes the persisted reminders, the staff directory and the
// delivery log.
type Records interface {
	ListScheduledReminders(ctx context.Context, owner string, pendingOnly bool) ([]models.ScheduledReminder, error)
	ListNotifications(ctx context.Context, owner string, limit int) ([]models.Notification, error)
	CreateEmployee(ctx context.Context, owner string, in models.EmployeeCreate) (models.Employee, error)
	ListEmployees(ctx context.Context, owner string) ([]models.Employee, error)
	SetEmployeeActive(ctx context.Context, owner, id string, active bool) error
}

// Deps groups everything the router needs.
type Deps struct {
	Appointments Appointments
	Calendar     Calendar
	Settings     ReminderSettings
	Records      Records
	Hub          Hub
}

// statusFor maps the shared error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorf("%s: %v", msg, err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	h.logger.Warnf("%s: %v", msg, err)
	c.JSON(status, gin.H{"error": err.Error()})
}
