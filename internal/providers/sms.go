package providers

import (
	"context"
	"fmt"

	"appointment-service/internal/models"
	"appointment-service/pkg/sms"
)

// SMSSender is implemented by pkg/sms.Client.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
	SendWhatsApp(ctx context.Context, to, body string) error
}

func newSMSFunc(s SMSSender, whatsapp bool, perSecond int) sendFunc {
	limiter := newLimiter(perSecond)
	return func(ctx context.Context, r models.Recipient, message string, _ models.SendContext) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("twilio rate limit exceeded: %w", err)
		}
		to := sms.ToE164(r.Phone)
		if whatsapp {
			return s.SendWhatsApp(ctx, to, message)
		}
		return s.SendSMS(ctx, to, message)
	}
}
