package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification types understood by the engine. Channel-specific
// subscriptions append a channel suffix, e.g. "maintenance.reminder.email".
const (
	TypeMaintenanceReminder = "maintenance.reminder"
	TypeMaintenanceOverdue  = "maintenance.overdue"
)

// Scope restricts a preference to one target entity.
type Scope struct {
	Kind TargetKind `json:"kind"`
	ID   int64      `json:"id"`
}

// NotificationPreference subscribes a user to a notification type, globally
// (nil Scope) or for a single target.
type NotificationPreference struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Type   string `json:"type"`
	Scope  *Scope `json:"scope,omitempty"`
}

// User is an application user that may subscribe to notifications.
type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Notification is a record in the in-app notification store.
type Notification struct {
	ID        [16]byte   `json:"id"`
	UserID    int64      `json:"user_id"`
	Type      string     `json:"type"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	TaskID    int64      `json:"task_id"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// MarshalJSON customizes JSON serialization for Notification to return the UUID as a string.
func (n Notification) MarshalJSON() ([]byte, error) {
	type Alias Notification
	return json.Marshal(&struct {
		ID string `json:"id"`
		*Alias
	}{
		ID:    uuid.UUID(n.ID).String(),
		Alias: (*Alias)(&n),
	})
}
