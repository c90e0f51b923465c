package models

import "fmt"

// Status is the lifecycle state of a maintenance task.
type Status string

const (
	StatusScheduled        Status = "scheduled"
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
	StatusOverdue          Status = "overdue"
	StatusCompletedOverdue Status = "completed_overdue"
)

// Behavior is a named capability a status may carry.
type Behavior uint8

const (
	// BehaviorOpen marks statuses the engine may still transition to overdue.
	BehaviorOpen Behavior = 1 << iota
	// BehaviorTerminal marks statuses the sweep never loads.
	BehaviorTerminal
	// BehaviorCompleted marks statuses reached through the completion workflow.
	BehaviorCompleted
	// BehaviorOverdue marks statuses that record a missed due date.
	BehaviorOverdue
	// BehaviorEscalatable marks statuses that still receive escalations.
	BehaviorEscalatable
)

// BehaviorSet is a bit set of behaviors.
type BehaviorSet uint8

func behaviors(bs ...Behavior) BehaviorSet {
	var s BehaviorSet
	for _, b := range bs {
		s |= BehaviorSet(b)
	}
	return s
}

var statusBehaviors = map[Status]BehaviorSet{
	StatusScheduled:        behaviors(BehaviorOpen, BehaviorEscalatable),
	StatusInProgress:       behaviors(BehaviorOpen, BehaviorEscalatable),
	StatusOverdue:          behaviors(BehaviorOverdue, BehaviorEscalatable),
	StatusCompleted:        behaviors(BehaviorTerminal, BehaviorCompleted),
	StatusCompletedOverdue: behaviors(BehaviorTerminal, BehaviorCompleted, BehaviorOverdue),
}

// Has reports whether the status carries behavior b. Unknown statuses carry none.
func (s Status) Has(b Behavior) bool {
	return statusBehaviors[s]&BehaviorSet(b) != 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusBehaviors[s]
	return ok
}

// StatusesWith lists every status carrying b, in a stable order.
func StatusesWith(b Behavior) []Status {
	var out []Status
	for _, s := range []Status{StatusScheduled, StatusInProgress, StatusOverdue, StatusCompleted, StatusCompletedOverdue} {
		if s.Has(b) {
			out = append(out, s)
		}
	}
	return out
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}
