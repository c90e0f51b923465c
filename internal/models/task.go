package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownTargetKind is returned for a target whose kind is neither machine nor subsystem.
	ErrUnknownTargetKind = errors.New("unknown target kind")
	// ErrTargetNotFound is returned when a task's target entity no longer exists.
	ErrTargetNotFound = errors.New("target not found")
	// ErrPolicyNotFound is returned when a referenced escalation policy does not exist.
	ErrPolicyNotFound = errors.New("escalation policy not found")
)

// TargetKind discriminates what a maintenance task is scheduled against.
type TargetKind string

const (
	TargetMachine   TargetKind = "machine"
	TargetSubsystem TargetKind = "subsystem"
)

// Target is the schedulable entity of a task: a whole machine or one
// subsystem of a machine. MachineID is the owning machine and equals ID for
// machine targets.
type Target struct {
	Kind      TargetKind `json:"kind"`
	ID        int64      `json:"id"`
	MachineID int64      `json:"machine_id"`
	Name      string     `json:"name,omitempty"`
}

// MachineTarget builds a target for a whole machine.
func MachineTarget(id int64) Target {
	return Target{Kind: TargetMachine, ID: id, MachineID: id}
}

// SubsystemTarget builds a target for a subsystem owned by machineID.
func SubsystemTarget(id, machineID int64) Target {
	return Target{Kind: TargetSubsystem, ID: id, MachineID: machineID}
}

// OwningMachine returns the machine the target belongs to.
func (t Target) OwningMachine() (int64, error) {
	switch t.Kind {
	case TargetMachine:
		return t.ID, nil
	case TargetSubsystem:
		if t.MachineID == 0 {
			return 0, fmt.Errorf("subsystem %d has no owning machine: %w", t.ID, ErrTargetNotFound)
		}
		return t.MachineID, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTargetKind, t.Kind)
	}
}

func (t Target) String() string {
	return fmt.Sprintf("%s#%d", t.Kind, t.ID)
}

// Machine is the owning asset of a task; tags and notification scopes hang off it.
type Machine struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Template is the maintenance template a task was generated from.
type Template struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MaintenanceTask is one scheduled preventive-maintenance occurrence.
type MaintenanceTask struct {
	ID                 int64      `json:"id"`
	Target             Target     `json:"target"`
	ScheduledDate      time.Time  `json:"scheduled_date"`
	GracePeriodDays    int        `json:"grace_period_days"`
	ReminderDaysBefore *int       `json:"reminder_days_before,omitempty"`
	Status             Status     `json:"status"`
	ReminderSentAt     *time.Time `json:"reminder_sent_at,omitempty"`
	SeriesID           *string    `json:"series_id,omitempty"`
	Title              string     `json:"title"`
	Color              string     `json:"color,omitempty"`
	Template           *Template  `json:"template,omitempty"`
}

// DisplayTitle falls back to the template name when the task has no title.
func (t MaintenanceTask) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	if t.Template != nil && t.Template.Name != "" {
		return t.Template.Name
	}
	return fmt.Sprintf("Maintenance #%d", t.ID)
}
