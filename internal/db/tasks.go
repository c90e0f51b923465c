package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"maintenance-service/internal/models"
)

func statusNames(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// ListOpenTasks loads every task whose status is not terminal, with its
// target and template.
func (d *DB) ListOpenTasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	query := `
	SELECT
		t.id, t.target_type, t.target_id,
		COALESCE(m.id, s.machine_id, 0), COALESCE(m.name, s.name, ''),
		t.scheduled_date, t.grace_period_days, t.reminder_days_before,
		t.status, t.reminder_sent_at, t.series_id, t.title, t.color,
		tpl.id, tpl.name
	FROM maintenance_tasks t
	LEFT JOIN machines m ON t.target_type = 'machine' AND m.id = t.target_id
	LEFT JOIN subsystems s ON t.target_type = 'subsystem' AND s.id = t.target_id
	LEFT JOIN maintenance_templates tpl ON tpl.id = t.template_id
	WHERE NOT (t.status = ANY($1))
	ORDER BY t.scheduled_date, t.id`

	rows, err := d.Pool.Query(ctx, query, statusNames(models.StatusesWith(models.BehaviorTerminal)))
	if err != nil {
		return nil, fmt.Errorf("failed to list open tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.MaintenanceTask
	for rows.Next() {
		var t models.MaintenanceTask
		var kind, status string
		var tplID *int64
		var tplName *string
		err := rows.Scan(
			&t.ID, &kind, &t.Target.ID,
			&t.Target.MachineID, &t.Target.Name,
			&t.ScheduledDate, &t.GracePeriodDays, &t.ReminderDaysBefore,
			&status, &t.ReminderSentAt, &t.SeriesID, &t.Title, &t.Color,
			&tplID, &tplName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Target.Kind = models.TargetKind(kind)
		// Kept raw; the sweep fails rows with an unknown status one by one.
		t.Status = models.Status(status)
		if tplID != nil {
			t.Template = &models.Template{ID: *tplID}
			if tplName != nil {
				t.Template.Name = *tplName
			}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

// ResolveMachine returns the machine owning target, or models.ErrTargetNotFound
// when the target row has been deleted.
func (d *DB) ResolveMachine(ctx context.Context, target models.Target) (models.Machine, error) {
	var query string
	switch target.Kind {
	case models.TargetMachine:
		query = `SELECT id, name FROM machines WHERE id = $1`
	case models.TargetSubsystem:
		query = `
		SELECT m.id, m.name
		FROM subsystems s
		JOIN machines m ON m.id = s.machine_id
		WHERE s.id = $1`
	default:
		return models.Machine{}, fmt.Errorf("%w: %q", models.ErrUnknownTargetKind, target.Kind)
	}

	var m models.Machine
	err := d.Pool.QueryRow(ctx, query, target.ID).Scan(&m.ID, &m.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Machine{}, fmt.Errorf("%s: %w", target, models.ErrTargetNotFound)
		}
		return models.Machine{}, fmt.Errorf("failed to resolve machine for %s: %w", target, err)
	}
	return m, nil
}

// MarkReminderSent sets reminder_sent_at only when it is still NULL and
// reports whether this call set it.
func (d *DB) MarkReminderSent(ctx context.Context, taskID int64, at time.Time) (bool, error) {
	tag, err := d.Pool.Exec(ctx, `
	UPDATE maintenance_tasks
	SET reminder_sent_at = $2, updated_at = NOW()
	WHERE id = $1 AND reminder_sent_at IS NULL`, taskID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkOverdue moves an open task to overdue and reports whether it did. Tasks
// already overdue or completed are left alone.
func (d *DB) MarkOverdue(ctx context.Context, taskID int64) (bool, error) {
	tag, err := d.Pool.Exec(ctx, `
	UPDATE maintenance_tasks
	SET status = $2, updated_at = NOW()
	WHERE id = $1 AND status = ANY($3)`,
		taskID, string(models.StatusOverdue), statusNames(models.StatusesWith(models.BehaviorOpen)))
	if err != nil {
		return false, fmt.Errorf("failed to mark task overdue: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
