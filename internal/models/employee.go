package models

import "time"

// Employee is a staff member reachable by "employees" reminders.
type Employee struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email,omitempty"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EmployeeCreate is the input structure for registering a staff member.
type EmployeeCreate struct {
	Name           string `json:"name" binding:"required"`
	Phone          string `json:"phone" binding:"required"`
	Email          string `json:"email,omitempty" binding:"omitempty,email"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Recipient returns e as an employee-class recipient.
func (e Employee) Recipient() Recipient {
	return Recipient{
		Class:          RecipientEmployees,
		ID:             e.ID,
		Name:           e.Name,
		Phone:          e.Phone,
		Email:          e.Email,
		TelegramChatID: e.TelegramChatID,
	}
}
