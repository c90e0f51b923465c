package models

// Contact is an organisational escalation recipient.
type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EscalationLevel is one tier of a policy: it activates DaysAfter days past due.
type EscalationLevel struct {
	ID        int64     `json:"id"`
	Level     int       `json:"level"`
	DaysAfter int       `json:"days_after"`
	Contacts  []Contact `json:"contacts"`
}

// EscalationPolicy is a named, activatable set of escalation levels.
type EscalationPolicy struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Active bool              `json:"active"`
	Levels []EscalationLevel `json:"levels"`
}
