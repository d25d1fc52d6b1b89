// Package reminder turns an appointment and its owner's reminder rules into
// concrete, recipient-resolved reminder jobs.
package reminder

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"appointment-service/internal/models"
)

const (
	defaultClientTemplate = "Hi {name}, this is a reminder of your {title} on {date} at {time}."
)

var validate = validator.New()

// DefaultRules are seeded for owners that have never saved reminder settings.
func DefaultRules() []models.ReminderRule {
	return []models.ReminderRule{
		{
			ID:            uuid.NewString(),
			Enabled:       true,
			Amount:        1,
			Unit:          models.UnitDays,
			Direction:     models.DirectionBefore,
			RecipientType: models.RecipientBoth,
			Template:      defaultClientTemplate,
		},
		{
			ID:            uuid.NewString(),
			Enabled:       true,
			Amount:        2,
			Unit:          models.UnitHours,
			Direction:     models.DirectionBefore,
			RecipientType: models.RecipientBoth,
			Template:      defaultClientTemplate,
		},
	}
}

// ValidateRule checks amount, unit, direction, recipient class and template.
func ValidateRule(rule models.ReminderRule) error {
	if err := validate.Struct(rule); err != nil {
		return fmt.Errorf("rule %s: %v: %w", rule.ID, err, models.ErrValidation)
	}
	return nil
}

// TriggerTime applies rule's offset to start. Day offsets use calendar
// arithmetic in loc so they keep the wall-clock time across DST changes.
func TriggerTime(start time.Time, rule models.ReminderRule, loc *time.Location) (time.Time, error) {
	if err := ValidateRule(rule); err != nil {
		return time.Time{}, err
	}
	sign := 1
	if rule.Direction == models.DirectionBefore {
		sign = -1
	}
	n := sign * rule.Amount

	switch rule.Unit {
	case models.UnitDays:
		if loc == nil {
			loc = time.UTC
		}
		return start.In(loc).AddDate(0, 0, n), nil
	case models.UnitHours:
		return start.Add(time.Duration(n) * time.Hour), nil
	default:
		return start.Add(time.Duration(n) * time.Minute), nil
	}
}
