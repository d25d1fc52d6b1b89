package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"appointment-service/internal/models"
)

// TelegramSender is implemented by pkg/telegram.Client.
type TelegramSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

func newTelegramFunc(tg TelegramSender, perSecond int) sendFunc {
	limiter := newLimiter(perSecond)
	return func(ctx context.Context, r models.Recipient, message string, _ models.SendContext) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram rate limit exceeded: %w", err)
		}
		return tg.Send(ctx, r.TelegramChatID, message)
	}
}

func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perSecond)), perSecond)
}
