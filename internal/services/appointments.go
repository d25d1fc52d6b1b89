package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appointment-service/internal/logging"
	"appointment-service/internal/models"
	"appointment-service/internal/reminder"
)

const (
	staffNoticeTemplate  = "New appointment: {title} on {date} at {time} with {name}."
	clientNoticeTemplate = "Your {title} is booked for {date} at {time}."
)

// AppointmentObserver is told when an owner's appointments change.
type AppointmentObserver interface {
	Reload(ctx context.Context, owner string) (uint64, error)
}

// Event types carried on the appointment stream.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// AppointmentEvent is a change published by the surrounding application.
type AppointmentEvent struct {
	Type        string             `json:"type"`
	Owner       string             `json:"owner"`
	Appointment models.Appointment `json:"appointment"`
}

// AppointmentService saves appointments and runs everything that follows a
// save: reconciliation refresh, reminder scheduling and the new-appointment
// notice. Only the save itself can fail the call.
type AppointmentService struct {
	store      AppointmentStore
	reminders  ReminderStore
	scheduler  *Scheduler
	dispatcher *Dispatcher
	observer   AppointmentObserver
	location   *time.Location
	logger     *logging.Logger
	now        func() time.Time
}

func NewAppointmentService(store AppointmentStore, reminders ReminderStore, scheduler *Scheduler, dispatcher *Dispatcher, observer AppointmentObserver, loc *time.Location, logger *logging.Logger) *AppointmentService {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentService{
		store:      store,
		reminders:  reminders,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		observer:   observer,
		location:   loc,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *AppointmentService) List(ctx context.Context, owner string) ([]models.Appointment, error) {
	return s.store.ListAppointments(ctx, owner)
}

func (s *AppointmentService) Create(ctx context.Context, owner string, in models.AppointmentCreate) (models.Appointment, error) {
	appt, err := s.store.CreateAppointment(ctx, in.ToAppointment(owner))
	if err != nil {
		return models.Appointment{}, err
	}
	return s.afterSave(ctx, owner, appt), nil
}

func (s *AppointmentService) Update(ctx context.Context, owner, id string, patch models.AppointmentPatch) (models.Appointment, error) {
	appt, err := s.store.UpdateAppointment(ctx, owner, id, patch)
	if err != nil {
		return models.Appointment{}, err
	}
	return s.afterSave(ctx, owner, appt), nil
}

// Delete removes the appointment. Reminders already scheduled for it stay.
func (s *AppointmentService) Delete(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteAppointment(ctx, owner, id); err != nil {
		return err
	}
	s.refresh(ctx, owner)
	return nil
}

// Apply handles one event from the appointment stream.
func (s *AppointmentService) Apply(ctx context.Context, ev AppointmentEvent) error {
	if ev.Owner == "" {
		ev.Owner = ev.Appointment.Owner
	}
	if ev.Owner == "" || ev.Appointment.ID == "" {
		return fmt.Errorf("event without owner or appointment id: %w", models.ErrValidation)
	}
	ev.Appointment.Owner = ev.Owner

	switch ev.Type {
	case EventCreated, EventUpdated:
		appt, err := s.store.UpsertAppointment(ctx, ev.Appointment)
		if err != nil {
			return err
		}
		s.afterSave(ctx, ev.Owner, appt)
		return nil
	case EventDeleted:
		err := s.Delete(ctx, ev.Owner, ev.Appointment.ID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown event type %q: %w", ev.Type, models.ErrValidation)
}

func (s *AppointmentService) afterSave(ctx context.Context, owner string, appt models.Appointment) models.Appointment {
	s.refresh(ctx, owner)

	if _, err := s.scheduler.Schedule(ctx, owner, appt, s.now()); err != nil {
		s.logger.Errorf("Scheduling reminders for appointment %s: %v", appt.ID, err)
	}

	if !appt.NotificationSent && appt.Status != models.AppointmentCancelled {
		if err := s.NotifyNewAppointment(ctx, owner, appt); err != nil {
			s.logger.Errorf("New appointment notice for %s: %v", appt.ID, err)
		} else {
			appt.NotificationSent = true
		}
	}
	return appt
}

func (s *AppointmentService) refresh(ctx context.Context, owner string) {
	if s.observer == nil {
		return
	}
	if _, err := s.observer.Reload(ctx, owner); err != nil {
		s.logger.Errorf("Reloading appointments for %s: %v", owner, err)
	}
}

// NotifyNewAppointment tells the assigned staff and the contacts about a new
// appointment and then sets its notification-sent flag. The flag is set
// even when some sends fail; the delivery log has the details.
func (s *AppointmentService) NotifyNewAppointment(ctx context.Context, owner string, appt models.Appointment) error {
	staff, err := s.reminders.ListEmployees(ctx, owner)
	if err != nil {
		s.logger.Errorf("Loading staff for %s failed: %v", owner, err)
	}

	sc := models.SendContext{Owner: owner, AppointmentID: appt.ID, Kind: models.KindNewAppointment}
	var none models.ReminderRule

	employees := reminder.ResolveRecipients(models.RecipientEmployees, none, appt, staff)
	if len(employees) > 0 {
		s.dispatcher.Dispatch(ctx, sc, models.RecipientEmployees, employees, reminder.Compose(staffNoticeTemplate, appt, s.location))
	}
	contacts := reminder.ResolveRecipients(models.RecipientContacts, none, appt, nil)
	if len(contacts) > 0 {
		s.dispatcher.Dispatch(ctx, sc, models.RecipientContacts, contacts, reminder.Compose(clientNoticeTemplate, appt, s.location))
	}
	if len(employees) == 0 && len(contacts) == 0 {
		s.logger.Debugf("Appointment %s has nobody to notify", appt.ID)
	}

	return s.store.MarkNotificationSent(ctx, owner, appt.ID)
}
