package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"maintenance-service/internal/models"
)

// PolicyByID loads a policy with its levels ordered by days_after and each
// level's contacts.
func (d *DB) PolicyByID(ctx context.Context, id int64) (*models.EscalationPolicy, error) {
	p := &models.EscalationPolicy{}
	err := d.Pool.QueryRow(ctx, `
	SELECT id, name, is_active FROM escalation_policies WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("policy %d: %w", id, models.ErrPolicyNotFound)
		}
		return nil, fmt.Errorf("failed to get escalation policy %d: %w", id, err)
	}

	rows, err := d.Pool.Query(ctx, `
	SELECT l.id, l.level, l.days_after, c.id, c.name, c.email
	FROM escalation_levels l
	LEFT JOIN escalation_level_contacts lc ON lc.level_id = l.id
	LEFT JOIN contacts c ON c.id = lc.contact_id
	WHERE l.policy_id = $1
	ORDER BY l.days_after, l.level, c.id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation levels for policy %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.EscalationLevel
		var contactID *int64
		var name, email *string
		if err := rows.Scan(&l.ID, &l.Level, &l.DaysAfter, &contactID, &name, &email); err != nil {
			return nil, fmt.Errorf("failed to scan escalation level: %w", err)
		}
		if n := len(p.Levels); n == 0 || p.Levels[n-1].ID != l.ID {
			p.Levels = append(p.Levels, l)
		}
		if contactID != nil {
			c := models.Contact{ID: *contactID}
			if name != nil {
				c.Name = *name
			}
			if email != nil {
				c.Email = *email
			}
			last := &p.Levels[len(p.Levels)-1]
			last.Contacts = append(last.Contacts, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read escalation levels: %w", err)
	}
	return p, nil
}
