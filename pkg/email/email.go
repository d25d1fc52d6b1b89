package email

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
)

// Sender delivers plain text mail over SMTP with PLAIN auth.
type Sender struct {
	Server   string
	Port     int
	Username string
	Password string
	FromName string
}

// Configured reports whether enough settings are present to send.
func (s Sender) Configured() bool {
	return s.Server != "" && s.Port != 0 && s.Username != ""
}

func (s Sender) Send(ctx context.Context, to, subject, body string) error {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid email address %q: %w", to, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := BuildMessage(s.from(), addr.Address, subject, body)
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Server)
	return smtp.SendMail(fmt.Sprintf("%s:%d", s.Server, s.Port), auth, s.Username, []string{addr.Address}, msg)
}

func (s Sender) from() string {
	if s.FromName == "" {
		return s.Username
	}
	return (&mail.Address{Name: s.FromName, Address: s.Username}).String()
}

// BuildMessage renders an RFC 5322 message with CRLF line endings.
func BuildMessage(from, to, subject, body string) []byte {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		from, to, subject, body,
	))
}
