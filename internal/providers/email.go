package providers

import (
	"context"

	"appointment-service/internal/models"
)

// EmailSender is implemented by pkg/email.Sender.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

func newEmailFunc(m EmailSender) sendFunc {
	return func(ctx context.Context, r models.Recipient, message string, sc models.SendContext) error {
		subject := "Appointment reminder"
		if sc.Kind == models.KindNewAppointment {
			subject = "New appointment"
		}
		return m.Send(ctx, r.Email, subject, message)
	}
}
