package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

// Client sends plain text messages through a Telegram bot.
type Client struct {
	bot *bot.Bot
}

// New creates a bot client. serverURL overrides the Bot API endpoint when
// non-empty.
func New(token, serverURL string) (*Client, error) {
	opts := []bot.Option{bot.WithSkipGetMe()}
	if serverURL != "" {
		opts = append(opts, bot.WithServerURL(serverURL))
	}
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return &Client{bot: b}, nil
}

func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return fmt.Errorf("missing telegram chat_id")
	}
	if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("failed to send to chat_id %d: %w", chatID, err)
	}
	return nil
}
