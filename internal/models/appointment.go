package models

import (
	"time"
)

// Appointment statuses.
const (
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Contact is a client attached to an appointment.
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Appointment is the canonical record owned by this service.
type Appointment struct {
	ID               string                 `json:"id"`
	Owner            string                 `json:"owner"`
	Title            string                 `json:"title"`
	Start            time.Time              `json:"start"`
	End              time.Time              `json:"end"`
	Status           string                 `json:"status"`
	Type             string                 `json:"type,omitempty"`
	StaffIDs         []string               `json:"staffIds"`
	Contacts         []Contact              `json:"contacts"`
	Tags             []string               `json:"tags"`
	MeetingLink      string                 `json:"meetingLink,omitempty"`
	NotificationSent bool                   `json:"notificationSent"`
	Color            string                 `json:"color,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// AppointmentCreate is the input structure for creating an appointment.
type AppointmentCreate struct {
	Title       string                 `json:"title" binding:"required"`
	Start       time.Time              `json:"start" binding:"required"`
	End         time.Time              `json:"end" binding:"required,gtfield=Start"`
	Status      string                 `json:"status,omitempty"`
	Type        string                 `json:"type,omitempty"`
	StaffIDs    []string               `json:"staffIds,omitempty"`
	Contacts    []Contact              `json:"contacts,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	MeetingLink string                 `json:"meetingLink,omitempty"`
	Color       string                 `json:"color,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ToAppointment builds a new Appointment for owner from the create payload.
func (c AppointmentCreate) ToAppointment(owner string) Appointment {
	status := c.Status
	if status == "" {
		status = AppointmentConfirmed
	}
	return Appointment{
		Owner:       owner,
		Title:       c.Title,
		Start:       c.Start,
		End:         c.End,
		Status:      status,
		Type:        c.Type,
		StaffIDs:    c.StaffIDs,
		Contacts:    c.Contacts,
		Tags:        c.Tags,
		MeetingLink: c.MeetingLink,
		Color:       c.Color,
		Metadata:    c.Metadata,
	}
}

// AppointmentPatch carries a partial update. Nil fields are left untouched.
type AppointmentPatch struct {
	Title            *string                `json:"title,omitempty"`
	Start            *time.Time             `json:"start,omitempty"`
	End              *time.Time             `json:"end,omitempty"`
	Status           *string                `json:"status,omitempty"`
	Type             *string                `json:"type,omitempty"`
	StaffIDs         []string               `json:"staffIds,omitempty"`
	Contacts         []Contact              `json:"contacts,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	MeetingLink      *string                `json:"meetingLink,omitempty"`
	NotificationSent *bool                  `json:"notificationSent,omitempty"`
	Color            *string                `json:"color,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Apply copies every set field of p onto a.
func (p AppointmentPatch) Apply(a *Appointment) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Start != nil {
		a.Start = *p.Start
	}
	if p.End != nil {
		a.End = *p.End
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.StaffIDs != nil {
		a.StaffIDs = p.StaffIDs
	}
	if p.Contacts != nil {
		a.Contacts = p.Contacts
	}
	if p.Tags != nil {
		a.Tags = p.Tags
	}
	if p.MeetingLink != nil {
		a.MeetingLink = *p.MeetingLink
	}
	if p.NotificationSent != nil {
		a.NotificationSent = *p.NotificationSent
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.Metadata != nil {
		a.Metadata = p.Metadata
	}
}
