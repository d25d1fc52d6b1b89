package providers

import (
	"context"
	"fmt"
	"time"

	"appointment-service/internal/config"
	"appointment-service/internal/logging"
	"appointment-service/internal/models"
	"appointment-service/internal/utils"
)

// Delivery channels.
const (
	ChannelTelegram = "telegram"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

type sendFunc func(ctx context.Context, r models.Recipient, message string, sc models.SendContext) error

// Gateway routes a message to the channel a recipient can be reached on and
// retries transient failures.
type Gateway struct {
	logger        *logging.Logger
	phoneChannel  string
	providerFuncs map[string]sendFunc

	Attempts int
	Delay    time.Duration
}

// NewGateway wires the configured channels. Unconfigured senders may be nil;
// sends routed to them fail with ErrConfiguration.
func NewGateway(cfg config.Config, tg TelegramSender, sms SMSSender, mail EmailSender, logger *logging.Logger) *Gateway {
	g := &Gateway{
		logger:        logger,
		phoneChannel:  cfg.SMS.Channel,
		providerFuncs: map[string]sendFunc{},
		Attempts:      3,
		Delay:         time.Second,
	}
	if tg != nil {
		g.providerFuncs[ChannelTelegram] = newTelegramFunc(tg, cfg.Telegram.RateLimit)
	}
	if sms != nil {
		g.providerFuncs[ChannelSMS] = newSMSFunc(sms, false, cfg.SMS.RateLimit)
		g.providerFuncs[ChannelWhatsApp] = newSMSFunc(sms, true, cfg.SMS.RateLimit)
	}
	if mail != nil {
		g.providerFuncs[ChannelEmail] = newEmailFunc(mail)
	}
	if g.phoneChannel != ChannelWhatsApp {
		g.phoneChannel = ChannelSMS
	}
	return g
}

// ChannelFor picks the channel for r: Telegram when a chat id is known, then
// the phone channel, then email.
func (g *Gateway) ChannelFor(r models.Recipient) string {
	switch {
	case r.TelegramChatID != 0 && g.providerFuncs[ChannelTelegram] != nil:
		return ChannelTelegram
	case r.Phone != "":
		return g.phoneChannel
	case r.Email != "":
		return ChannelEmail
	}
	return ""
}

// Send delivers message to r. Failures wrap ErrTransientDelivery, or
// ErrConfiguration when no usable channel exists.
func (g *Gateway) Send(ctx context.Context, r models.Recipient, message string, sc models.SendContext) error {
	channel := g.ChannelFor(r)
	send, ok := g.providerFuncs[channel]
	if !ok {
		return fmt.Errorf("no channel for recipient %s (%s): %w", r.ID, r.Name, models.ErrConfiguration)
	}

	err := utils.Retry(ctx, g.logger, g.Attempts, g.Delay, func() error {
		return send(ctx, r, message, sc)
	})
	if err != nil {
		return fmt.Errorf("%s to %s: %v: %w", channel, r.ID, err, models.ErrTransientDelivery)
	}
	g.logger.Debugf("Sent %s %s for appointment %s to %s via %s", sc.Kind, sc.ReminderID, sc.AppointmentID, r.ID, channel)
	return nil
}
