package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"appointment-service/internal/models"
)

// GetReminderRules returns owner's saved rules. found is false when the
// owner never saved any.
func (d *DB) GetReminderRules(ctx context.Context, owner string) (rules []models.ReminderRule, found bool, err error) {
	err = d.Pool.QueryRow(ctx, `SELECT rules FROM reminder_settings WHERE owner = $1`, owner).Scan(&rules)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get reminder settings: %w", err)
	}
	return rules, true, nil
}

// SaveReminderRules replaces owner's rules.
func (d *DB) SaveReminderRules(ctx context.Context, owner string, rules []models.ReminderRule) error {
	_, err := d.Pool.Exec(ctx, `
	INSERT INTO reminder_settings (owner, rules, updated_at) VALUES ($1, $2, NOW())
	ON CONFLICT (owner) DO UPDATE SET rules = EXCLUDED.rules, updated_at = NOW()`,
		owner, nonNil(rules))
	if err != nil {
		return fmt.Errorf("failed to save reminder settings: %w", err)
	}
	return nil
}
