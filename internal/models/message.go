package models

import (
	"context"
	"time"
)

// Message is the channel-agnostic content the engine hands to a channel.
type Message struct {
	Type    string
	Subject string
	Body    string
	TaskID  int64
}

// Recipient is one addressee of a channel send. Channels use whichever
// address field they need and skip recipients lacking it.
type Recipient struct {
	UserID int64
	Name   string
	Email  string
	ChatID int64
}

// RecipientFromUser addresses an application user.
func RecipientFromUser(u User) Recipient {
	return Recipient{UserID: u.ID, Name: u.Name, Email: u.Email, ChatID: u.TelegramChatID}
}

// RecipientFromContact addresses an escalation contact.
func RecipientFromContact(c Contact) Recipient {
	return Recipient{Name: c.Name, Email: c.Email}
}

// Event types published for downstream consumers.
const (
	EventReminderSent    = "reminder.sent"
	EventTaskOverdue     = "task.overdue"
	EventEscalationFired = "escalation.fired"
)

// Event records a decision the engine made about a task.
type Event struct {
	Type        string    `json:"type"`
	RunID       string    `json:"run_id,omitempty"`
	TaskID      int64     `json:"task_id"`
	MachineID   int64     `json:"machine_id"`
	Level       int       `json:"level,omitempty"`
	DaysOverdue int       `json:"days_overdue,omitempty"`
	Recipients  int       `json:"recipients"`
	At          time.Time `json:"at"`
}

type runIDKey struct{}

// ContextWithRunID tags ctx with the id of the sweep it belongs to.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the sweep id stored in ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
