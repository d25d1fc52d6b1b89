package models

import (
	"time"
)

// TimeUnit is the unit of a reminder offset.
type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
)

// Direction places a reminder before or after the appointment start.
type Direction string

const (
	DirectionBefore Direction = "before"
	DirectionAfter  Direction = "after"
)

// RecipientClass selects who receives a reminder.
type RecipientClass string

const (
	RecipientContacts  RecipientClass = "contacts"
	RecipientEmployees RecipientClass = "employees"
	RecipientBoth      RecipientClass = "both"
)

// ReminderRule describes when and to whom a reminder fires, relative to an
// appointment's start.
type ReminderRule struct {
	ID                string         `json:"id"`
	Enabled           bool           `json:"enabled"`
	Amount            int            `json:"amount" validate:"gt=0"`
	Unit              TimeUnit       `json:"unit" validate:"oneof=minutes hours days"`
	Direction         Direction      `json:"type" validate:"oneof=before after"`
	RecipientType     RecipientClass `json:"recipientType" validate:"oneof=contacts employees both"`
	SelectedEmployees []string       `json:"selectedEmployees,omitempty"`
	Template          string         `json:"message" validate:"required"`
}

// Recipient is a resolved destination for one send.
type Recipient struct {
	Class          RecipientClass `json:"class"`
	ID             string         `json:"id,omitempty"`
	Name           string         `json:"name,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Email          string         `json:"email,omitempty"`
	TelegramChatID int64          `json:"telegram_chat_id,omitempty"`
}

// ScheduledReminder is the durable record of one computed reminder job.
// It moves Pending -> Processed exactly once.
type ScheduledReminder struct {
	ID             string         `json:"id"`
	Owner          string         `json:"owner"`
	AppointmentID  string         `json:"appointment_id"`
	Rule           ReminderRule   `json:"rule"`
	RecipientClass RecipientClass `json:"recipient_class"`
	Message        string         `json:"message"`
	Recipients     []Recipient    `json:"recipients"`
	TriggerTime    time.Time      `json:"trigger_time"`
	Processed      bool           `json:"processed"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SendContext travels with a message to the Notification Gateway.
type SendContext struct {
	Owner         string
	AppointmentID string
	ReminderID    string
	Kind          string
}

// Notification kinds.
const (
	KindReminder       = "reminder"
	KindNewAppointment = "new_appointment"
)
