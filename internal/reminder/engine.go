package reminder

import (
	"fmt"
	"time"

	"appointment-service/internal/logging"
	"appointment-service/internal/matcher"
	"appointment-service/internal/models"
)

// Job is one computed reminder for one recipient class.
type Job struct {
	Rule           models.ReminderRule
	TriggerTime    time.Time
	RecipientClass models.RecipientClass
	Message        string
	Recipients     []models.Recipient
}

// ToScheduled turns j into a pending ScheduledReminder for owner.
func (j Job) ToScheduled(owner string, appt models.Appointment) models.ScheduledReminder {
	return models.ScheduledReminder{
		Owner:          owner,
		AppointmentID:  appt.ID,
		Rule:           j.Rule,
		RecipientClass: j.RecipientClass,
		Message:        j.Message,
		Recipients:     j.Recipients,
		TriggerTime:    j.TriggerTime,
	}
}

// Engine computes reminder jobs. It is stateless apart from its settings.
type Engine struct {
	Location *time.Location
	logger   *logging.Logger
}

func NewEngine(loc *time.Location, logger *logging.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{Location: loc, logger: logger}
}

// ComputeSchedule returns a job per enabled rule and recipient class whose
// trigger time is not before now. A "both" rule always yields two jobs, even
// when one class resolves to nobody. Invalid rules are logged and skipped.
func (e *Engine) ComputeSchedule(appt models.Appointment, rules []models.ReminderRule, staff []models.Employee, now time.Time) []Job {
	var jobs []Job
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		trigger, err := TriggerTime(appt.Start, rule, e.Location)
		if err != nil {
			e.logger.Warnf("Skipping reminder rule for appointment %s: %v", appt.ID, err)
			continue
		}
		if trigger.Before(now) {
			e.logger.Debugf("Rule %q for appointment %s triggers at %s, already past", Describe(rule), appt.ID, trigger.Format(time.RFC3339))
			continue
		}

		for _, class := range ExpandRecipientClasses(rule.RecipientType) {
			jobs = append(jobs, Job{
				Rule:           rule,
				TriggerTime:    trigger,
				RecipientClass: class,
				Message:        Render(rule.Template, appt, class, e.Location),
				Recipients:     ResolveRecipients(class, rule, appt, staff),
			})
		}
	}
	return jobs
}

// ExpandRecipientClasses maps "both" to contacts and employees. Other
// classes map to themselves.
func ExpandRecipientClasses(class models.RecipientClass) []models.RecipientClass {
	if class == models.RecipientBoth {
		return []models.RecipientClass{models.RecipientContacts, models.RecipientEmployees}
	}
	return []models.RecipientClass{class}
}

// ResolveRecipients lists who receives a job of class. Employees come from
// the rule's selection or, when empty, the appointment's assigned staff.
// Inactive or unknown employees are ignored.
func ResolveRecipients(class models.RecipientClass, rule models.ReminderRule, appt models.Appointment, staff []models.Employee) []models.Recipient {
	var out []models.Recipient
	switch class {
	case models.RecipientContacts:
		for _, c := range appt.Contacts {
			phone := c.Phone
			if phone == "" {
				if _, ok := matcher.NormalizePhone(c.ID); ok {
					phone = c.ID
				}
			}
			if phone == "" {
				continue
			}
			out = append(out, models.Recipient{Class: models.RecipientContacts, ID: c.ID, Name: c.Name, Phone: phone})
		}
	case models.RecipientEmployees:
		ids := rule.SelectedEmployees
		if len(ids) == 0 {
			ids = appt.StaffIDs
		}
		byID := make(map[string]models.Employee, len(staff))
		for _, s := range staff {
			byID[s.ID] = s
		}
		seen := map[string]bool{}
		for _, id := range ids {
			emp, ok := byID[id]
			if !ok || !emp.Active || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, emp.Recipient())
		}
	}
	return out
}

// Describe formats a rule offset for logs, e.g. "2 hours before".
func Describe(rule models.ReminderRule) string {
	return fmt.Sprintf("%d %s %s", rule.Amount, rule.Unit, rule.Direction)
}
