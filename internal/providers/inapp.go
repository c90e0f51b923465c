package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"maintenance-service/internal/models"
)

// ChannelInApp is the registry name of the in-app notification channel.
const ChannelInApp = "in_app"

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) error
}

// InAppChannel stores a notification for the user and pushes it to any
// open WebSocket connection.
type InAppChannel struct {
	store NotificationStore
	hub   *Hub
	now   func() time.Time
}

func NewInAppChannel(store NotificationStore, hub *Hub) *InAppChannel {
	return &InAppChannel{store: store, hub: hub, now: time.Now}
}

func (c *InAppChannel) Name() string { return ChannelInApp }

func (c *InAppChannel) Send(ctx context.Context, r models.Recipient, msg models.Message) error {
	if r.UserID == 0 {
		return fmt.Errorf("recipient %q is not an application user: %w", r.Name, ErrNoAddress)
	}

	n := models.Notification{
		ID:        uuid.New(),
		UserID:    r.UserID,
		Type:      msg.Type,
		Subject:   msg.Subject,
		Body:      msg.Body,
		TaskID:    msg.TaskID,
		CreatedAt: c.now(),
	}
	if err := c.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to store in-app notification for user %d: %w", r.UserID, err)
	}

	if c.hub != nil {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to encode in-app notification: %w", err)
		}
		c.hub.SendToUser(r.UserID, payload)
	}
	return nil
}
