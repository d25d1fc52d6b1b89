package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"appointment-service/internal/logging"
	"appointment-service/internal/models"
	"appointment-service/internal/reminder"
)

// DefaultLookahead is how far ahead of now a freshly scheduled reminder is
// dispatched immediately instead of waiting for the sweeper.
const DefaultLookahead = time.Hour

// Scheduler persists the reminders computed for an appointment and sends the
// ones that are already due soon.
type Scheduler struct {
	store      ReminderStore
	engine     *reminder.Engine
	dispatcher *Dispatcher
	logger     *logging.Logger
	Lookahead  time.Duration
}

func NewScheduler(store ReminderStore, engine *reminder.Engine, dispatcher *Dispatcher, lookahead time.Duration, logger *logging.Logger) *Scheduler {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Scheduler{store: store, engine: engine, dispatcher: dispatcher, logger: logger, Lookahead: lookahead}
}

// Rules returns owner's reminder rules, seeding and saving the defaults the
// first time.
func (s *Scheduler) Rules(ctx context.Context, owner string) ([]models.ReminderRule, error) {
	rules, found, err := s.store.GetReminderRules(ctx, owner)
	if err != nil {
		return nil, err
	}
	if found {
		return rules, nil
	}
	rules = reminder.DefaultRules()
	if err := s.store.SaveReminderRules(ctx, owner, rules); err != nil {
		s.logger.Errorf("Seeding default reminder rules for %s failed: %v", owner, err)
	} else {
		s.logger.Infof("Seeded default reminder rules for %s", owner)
	}
	return rules, nil
}

// SaveRules validates and stores owner's rules. Rules without an id get one.
func (s *Scheduler) SaveRules(ctx context.Context, owner string, rules []models.ReminderRule) ([]models.ReminderRule, error) {
	for i := range rules {
		if err := reminder.ValidateRule(rules[i]); err != nil {
			return nil, err
		}
		if rules[i].ID == "" {
			rules[i].ID = uuid.NewString()
		}
	}
	if err := s.store.SaveReminderRules(ctx, owner, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Schedule computes and persists the reminders of appt as of now. Jobs with
// no recipients are not persisted. Reminders
// due in [now, now+Lookahead) are claimed and dispatched right away; the
// sweeper picks up the rest. Errors of individual reminders are joined into
// the returned error and never stop the others.
func (s *Scheduler) Schedule(ctx context.Context, owner string, appt models.Appointment, now time.Time) ([]models.ScheduledReminder, error) {
	if appt.Status == models.AppointmentCancelled {
		s.logger.Debugf("Appointment %s is cancelled, no reminders scheduled", appt.ID)
		return nil, nil
	}
	rules, err := s.Rules(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load reminder rules: %w", err)
	}
	staff, err := s.store.ListEmployees(ctx, owner)
	if err != nil {
		s.logger.Errorf("Loading staff for %s failed, employee reminders will be empty: %v", owner, err)
	}

	jobs := s.engine.ComputeSchedule(appt, rules, staff, now)
	horizon := now.Add(s.Lookahead)

	var (
		out  []models.ScheduledReminder
		errs []error
	)
	for _, job := range jobs {
		if len(job.Recipients) == 0 {
			s.logger.Debugf("Rule %s for appointment %s has no %s to notify", job.Rule.ID, appt.ID, job.RecipientClass)
			continue
		}
		saved, created, err := s.store.CreateScheduledReminder(ctx, job.ToScheduled(owner, appt))
		if err != nil {
			s.logger.Errorf("Persisting reminder for appointment %s failed: %v", appt.ID, err)
			errs = append(errs, err)
			continue
		}
		if !created {
			s.logger.Debugf("Reminder %s for appointment %s already scheduled", saved.ID, appt.ID)
		}
		out = append(out, saved)

		if saved.Processed || !saved.TriggerTime.Before(horizon) {
			continue
		}
		s.dispatchNow(ctx, saved, now)
	}
	s.logger.Infof("Scheduled %d reminders for appointment %s", len(out), appt.ID)
	return out, errors.Join(errs...)
}

func (s *Scheduler) dispatchNow(ctx context.Context, r models.ScheduledReminder, now time.Time) {
	claimed, err := s.store.ClaimScheduledReminder(ctx, r.ID, now)
	if errors.Is(err, models.ErrAlreadyClaimed) {
		return
	}
	if err != nil {
		s.logger.Errorf("Claiming reminder %s failed, leaving it to the sweeper: %v", r.ID, err)
		return
	}
	s.dispatcher.DispatchReminder(ctx, claimed)
}
