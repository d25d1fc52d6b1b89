package models

import (
	"time"
)

// Delivery statuses.
const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// Notification records one delivery attempt to one recipient. It is an audit
// trail; nothing re-sends from it.
type Notification struct {
	ID            string         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	Owner         string         `json:"owner"`
	Kind          string         `json:"kind"`
	ReminderID    string         `json:"reminder_id,omitempty"`
	AppointmentID string         `json:"appointment_id,omitempty"`
	RecipientID   string         `json:"recipient_id,omitempty"`
	RecipientName string         `json:"recipient_name,omitempty"`
	Class         RecipientClass `json:"class"`
	Channel       string         `json:"channel"`
	Body          string         `json:"body"`
	Status        string         `json:"status"`
	Error         string         `json:"error,omitempty"`
}
