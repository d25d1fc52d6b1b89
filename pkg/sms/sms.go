package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Client sends SMS and WhatsApp messages through Twilio.
type Client struct {
	rest       *twilio.RestClient
	fromNumber string
}

func New(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
	}
}

// SendSMS sends body to an E.164 number.
func (c *Client) SendSMS(ctx context.Context, toNumber, body string) error {
	return c.send(ctx, toNumber, c.fromNumber, toNumber, body)
}

// SendWhatsApp sends body to an E.164 number over the WhatsApp channel.
func (c *Client) SendWhatsApp(ctx context.Context, toNumber, body string) error {
	return c.send(ctx, toNumber, "whatsapp:"+c.fromNumber, "whatsapp:"+toNumber, body)
}

func (c *Client) send(ctx context.Context, number, from, to, body string) error {
	if err := ValidateNumber(number); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	if _, err := c.rest.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", number, err)
	}
	return nil
}

// ValidateNumber accepts "+" followed by 8 to 15 digits.
func ValidateNumber(number string) error {
	if !strings.HasPrefix(number, "+") {
		return fmt.Errorf("invalid phone number: %s", number)
	}
	digits := number[1:]
	if len(digits) < 8 || len(digits) > 15 || strings.Trim(digits, "0123456789") != "" {
		return fmt.Errorf("invalid phone number: %s", number)
	}
	return nil
}

// ToE164 turns local Malaysian numbers ("012...", "6012...") into "+6012...".
// Numbers already starting with "+" only lose their separators.
func ToE164(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	switch {
	case strings.HasPrefix(n, "+"):
		return n
	case strings.HasPrefix(n, "60"):
		return "+" + n
	case strings.HasPrefix(n, "0"):
		return "+6" + n
	}
	return "+" + n
}
