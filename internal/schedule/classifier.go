// Package schedule classifies maintenance tasks into reminder, due and
// overdue windows relative to a calendar day.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"maintenance-service/internal/models"
)

// ErrInvalidSchedule is returned when a task's schedule cannot be evaluated.
var ErrInvalidSchedule = errors.New("invalid schedule")

// State is the temporal classification of a task on a given day. The flags
// are independent: a task can be ReminderDue and InGraceWindow at once.
type State struct {
	Today         time.Time
	ReminderDate  *time.Time
	GraceStart    time.Time
	DueDate       time.Time
	ReminderDue   bool
	InGraceWindow bool
	PastDue       bool
	DaysOverdue   int
}

// Classify computes the temporal state of task on today.
func Classify(task models.MaintenanceTask, today time.Time) (State, error) {
	if task.ScheduledDate.IsZero() {
		return State{}, fmt.Errorf("task %d has no scheduled date: %w", task.ID, ErrInvalidSchedule)
	}
	if task.GracePeriodDays < 0 {
		return State{}, fmt.Errorf("task %d has negative grace period %d: %w", task.ID, task.GracePeriodDays, ErrInvalidSchedule)
	}
	if task.ReminderDaysBefore != nil && *task.ReminderDaysBefore < 0 {
		return State{}, fmt.Errorf("task %d has negative reminder lead time %d: %w", task.ID, *task.ReminderDaysBefore, ErrInvalidSchedule)
	}

	scheduled := Day(task.ScheduledDate)
	today = Day(today)

	st := State{
		Today:      today,
		GraceStart: AddDays(scheduled, -task.GracePeriodDays),
		DueDate:    AddDays(scheduled, task.GracePeriodDays),
	}

	if task.ReminderDaysBefore != nil {
		rd := AddDays(scheduled, -*task.ReminderDaysBefore)
		st.ReminderDate = &rd
		st.ReminderDue = !today.Before(rd)
	}

	st.InGraceWindow = !today.Before(st.GraceStart) && !today.After(st.DueDate)
	st.PastDue = today.After(st.DueDate)
	if st.PastDue {
		st.DaysOverdue = DaysBetween(st.DueDate, today)
	}
	return st, nil
}
