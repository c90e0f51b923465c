package db

import (
	"context"
	"fmt"

	"maintenance-service/internal/models"
)

// PreferencesByType returns every subscription to notificationType, scoped or not.
func (d *DB) PreferencesByType(ctx context.Context, notificationType string) ([]models.NotificationPreference, error) {
	rows, err := d.Pool.Query(ctx, `
	SELECT id, user_id, type, scope_type, scope_id
	FROM notification_preferences
	WHERE type = $1`, notificationType)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences for %s: %w", notificationType, err)
	}
	defer rows.Close()

	var prefs []models.NotificationPreference
	for rows.Next() {
		var p models.NotificationPreference
		var scopeType *string
		var scopeID *int64
		if err := rows.Scan(&p.ID, &p.UserID, &p.Type, &scopeType, &scopeID); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		if scopeType != nil && scopeID != nil {
			p.Scope = &models.Scope{Kind: models.TargetKind(*scopeType), ID: *scopeID}
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	return prefs, nil
}

func (d *DB) UsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := d.Pool.Query(ctx, `
	SELECT id, name, email, COALESCE(telegram_chat_id, 0)
	FROM users
	WHERE id = ANY($1)
	ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.TelegramChatID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}
