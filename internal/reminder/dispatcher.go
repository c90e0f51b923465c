// Package reminder sends the one-time reminder for a maintenance task when
// its reminder window opens.
package reminder

import (
	"context"
	"fmt"
	"time"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/metrics"
	"maintenance-service/internal/models"
	"maintenance-service/internal/notify"
	"maintenance-service/internal/schedule"
)

// TaskStore claims the reminder marker. MarkReminderSent must only write
// when the marker is still empty and report whether it did.
type TaskStore interface {
	MarkReminderSent(ctx context.Context, taskID int64, at time.Time) (bool, error)
}

// Notifier fans a message out to subscribers.
type Notifier interface {
	NotifySubscribers(ctx context.Context, baseType string, machineID int64, msg models.Message) notify.Delivery
}

// Publisher receives engine events.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Result describes what Dispatch did.
type Result struct {
	Fired     bool
	MarkerSet bool
	Delivery  notify.Delivery
}

type Dispatcher struct {
	store    TaskStore
	notifier Notifier
	events   Publisher
	logger   *logging.Logger
	now      func() time.Time
}

func NewDispatcher(store TaskStore, notifier Notifier, events Publisher, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{store: store, notifier: notifier, events: events, logger: logger, now: time.Now}
}

// Dispatch fires the reminder for task at most once. The marker is claimed
// before sending so that only one concurrent sweep delivers it; a claimed
// reminder is not retried even when every send fails or nobody is subscribed.
// Delivery is at most once: a crash between the claim and the sends loses
// that reminder.
func (d *Dispatcher) Dispatch(ctx context.Context, task *models.MaintenanceTask, st schedule.State, machine models.Machine) (Result, error) {
	if task.ReminderSentAt != nil || task.ReminderDaysBefore == nil || !st.ReminderDue {
		return Result{}, nil
	}

	at := d.now()
	set, err := d.store.MarkReminderSent(ctx, task.ID, at)
	if err != nil {
		return Result{}, fmt.Errorf("failed to mark reminder sent for task %d: %w", task.ID, err)
	}
	if !set {
		d.logger.Debugf("Reminder for task %d already claimed", task.ID)
		return Result{}, nil
	}
	task.ReminderSentAt = &at
	res := Result{Fired: true, MarkerSet: true}

	msg := models.Message{
		Type:    models.TypeMaintenanceReminder,
		Subject: fmt.Sprintf("Maintenance reminder: %s", task.DisplayTitle()),
		Body: fmt.Sprintf("%s on %s is scheduled for %s.",
			task.DisplayTitle(), machineLabel(machine), task.ScheduledDate.Format("2006-01-02")),
		TaskID: task.ID,
	}
	res.Delivery = d.notifier.NotifySubscribers(ctx, models.TypeMaintenanceReminder, machine.ID, msg)
	metrics.RemindersSent.Inc()

	d.logger.Infof("Reminder for task %d sent to %d/%d recipients", task.ID, res.Delivery.Sent, res.Delivery.Recipients)
	if d.events != nil {
		ev := models.Event{
			Type:       models.EventReminderSent,
			TaskID:     task.ID,
			MachineID:  machine.ID,
			Recipients: res.Delivery.Sent,
			At:         at,
		}
		if err := d.events.Publish(ctx, ev); err != nil {
			d.logger.Warnf("Failed to publish %s for task %d: %v", ev.Type, task.ID, err)
		}
	}
	return res, nil
}

func machineLabel(m models.Machine) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("machine #%d", m.ID)
}
