package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"maintenance-service/internal/models"
)

func (d *DB) CreateNotification(ctx context.Context, n models.Notification) error {
	query := `
        INSERT INTO notifications (id, user_id, type, subject, body, task_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.Pool.Exec(ctx, query,
		pgtype.UUID{Bytes: n.ID, Valid: true}, n.UserID, n.Type, n.Subject, n.Body, n.TaskID, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// NotificationsByUserID returns a user's in-app notifications, newest first.
func (d *DB) NotificationsByUserID(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error) {
	rows, err := d.Pool.Query(ctx, `
        SELECT id, user_id, type, subject, body, COALESCE(task_id, 0), created_at, read_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications by user_id %d: %w", userID, err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var id pgtype.UUID
		err := rows.Scan(&id, &n.UserID, &n.Type, &n.Subject, &n.Body, &n.TaskID, &n.CreatedAt, &n.ReadAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ID = id.Bytes
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead sets read_at once; marking an already read
// notification is not an error.
func (d *DB) MarkNotificationRead(ctx context.Context, id [16]byte, userID int64) error {
	ct, err := d.Pool.Exec(ctx, `
        UPDATE notifications
        SET read_at = COALESCE(read_at, NOW())
        WHERE id = $1 AND user_id = $2`, pgtype.UUID{Bytes: id, Valid: true}, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
