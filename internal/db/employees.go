package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"appointment-service/internal/models"
)

// CreateEmployee registers a staff member for owner.
func (d *DB) CreateEmployee(ctx context.Context, owner string, in models.EmployeeCreate) (models.Employee, error) {
	e := models.Employee{
		ID:             uuid.NewString(),
		Owner:          owner,
		Name:           in.Name,
		Phone:          in.Phone,
		Email:          in.Email,
		TelegramChatID: in.TelegramChatID,
		Active:         true,
	}
	err := d.Pool.QueryRow(ctx, `
	INSERT INTO employees (id, owner, name, phone, email, telegram_chat_id, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	RETURNING created_at, updated_at`,
		e.ID, e.Owner, e.Name, e.Phone, e.Email, e.TelegramChatID, e.Active,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return models.Employee{}, fmt.Errorf("failed to create employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns owner's staff directory, inactive members included.
func (d *DB) ListEmployees(ctx context.Context, owner string) ([]models.Employee, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT id, owner, name, phone, email, telegram_chat_id, active, created_at, updated_at
	FROM employees WHERE owner = $1 ORDER BY name`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.Owner, &e.Name, &e.Phone, &e.Email, &e.TelegramChatID, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetEmployeeActive enables or disables a staff member.
func (d *DB) SetEmployeeActive(ctx context.Context, owner, id string, active bool) error {
	tag, err := d.Pool.Exec(ctx,
		`UPDATE employees SET active = $3, updated_at = NOW() WHERE owner = $1 AND id = $2`, owner, id, active)
	if err != nil {
		return fmt.Errorf("failed to update employee %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("employee %s: %w", id, models.ErrNotFound)
	}
	return nil
}
