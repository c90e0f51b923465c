package escalation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/metrics"
	"maintenance-service/internal/models"
	"maintenance-service/internal/notify"
	"maintenance-service/internal/schedule"
)

// TaskStore moves a task to overdue. MarkOverdue must only write when the
// task is still in an open status and report whether it did.
type TaskStore interface {
	MarkOverdue(ctx context.Context, taskID int64) (bool, error)
}

// PolicyStore loads an escalation policy with its levels and contacts and
// returns models.ErrPolicyNotFound for an unknown id.
type PolicyStore interface {
	PolicyByID(ctx context.Context, id int64) (*models.EscalationPolicy, error)
}

// Notifier reaches both opt-in subscribers and forced contacts.
type Notifier interface {
	NotifySubscribers(ctx context.Context, baseType string, machineID int64, msg models.Message) notify.Delivery
	NotifyContacts(ctx context.Context, contacts []models.Contact, msg models.Message) notify.Delivery
}

// Publisher receives engine events.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Result describes what Dispatch did.
type Result struct {
	MarkedOverdue bool
	DaysOverdue   int
	Resolution    Resolution
	Contacts      notify.Delivery
	Subscribers   notify.Delivery
}

type Dispatcher struct {
	tasks    TaskStore
	policies PolicyStore
	policyID int64
	notifier Notifier
	events   Publisher
	logger   *logging.Logger
	now      func() time.Time
}

func NewDispatcher(tasks TaskStore, policies PolicyStore, policyID int64, notifier Notifier, events Publisher, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		tasks:    tasks,
		policies: policies,
		policyID: policyID,
		notifier: notifier,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// LoadPolicy fetches the configured policy once per sweep. A missing policy,
// an unset policy id or a lookup failure all yield nil, which makes every
// escalation fall back to the untiered message.
func (d *Dispatcher) LoadPolicy(ctx context.Context) *models.EscalationPolicy {
	if d.policyID == 0 {
		return nil
	}
	p, err := d.policies.PolicyByID(ctx, d.policyID)
	switch {
	case errors.Is(err, models.ErrPolicyNotFound):
		d.logger.Warnf("Escalation policy %d not found, escalations use the fallback message", d.policyID)
		return nil
	case err != nil:
		d.logger.Errorf("Failed to load escalation policy %d: %v", d.policyID, err)
		return nil
	case !p.Active:
		d.logger.Warnf("Escalation policy %d (%s) is inactive", p.ID, p.Name)
	}
	return p
}

// Dispatch handles a past-due task: an open task is moved to overdue once,
// then the matched tier's contacts and the machine's overdue subscribers are
// notified. Notifications repeat on every sweep while the task stays overdue.
func (d *Dispatcher) Dispatch(ctx context.Context, task *models.MaintenanceTask, st schedule.State, machine models.Machine, policy *models.EscalationPolicy) (Result, error) {
	if !st.PastDue || !task.Status.Has(models.BehaviorEscalatable) {
		return Result{}, nil
	}
	res := Result{DaysOverdue: st.DaysOverdue}
	at := d.now()

	if task.Status.Has(models.BehaviorOpen) {
		marked, err := d.tasks.MarkOverdue(ctx, task.ID)
		if err != nil {
			return res, fmt.Errorf("failed to mark task %d overdue: %w", task.ID, err)
		}
		if marked {
			task.Status = models.StatusOverdue
			res.MarkedOverdue = true
			d.logger.Infof("Task %d marked overdue (%d days past due)", task.ID, st.DaysOverdue)
			d.publish(ctx, models.Event{
				Type:        models.EventTaskOverdue,
				TaskID:      task.ID,
				MachineID:   machine.ID,
				DaysOverdue: st.DaysOverdue,
				At:          at,
			})
		}
	}

	res.Resolution = Resolve(policy, st.DaysOverdue)
	base := fmt.Sprintf("%s on %s was due on %s and is overdue by %s.",
		task.DisplayTitle(), machineLabel(machine), st.DueDate.Format("2006-01-02"), days(st.DaysOverdue))

	if lvl := res.Resolution.Matched; lvl != nil {
		res.Contacts = d.notifier.NotifyContacts(ctx, lvl.Contacts, models.Message{
			Type:    models.TypeMaintenanceOverdue,
			Subject: fmt.Sprintf("Escalation level %d: %s overdue", lvl.Level, task.DisplayTitle()),
			Body:    fmt.Sprintf("%s You are receiving this as an escalation level %d contact.", base, lvl.Level),
			TaskID:  task.ID,
		})
		metrics.EscalationsFired.WithLabelValues(strconv.Itoa(lvl.Level)).Inc()
		d.logger.Infof("Escalation level %d for task %d reached %d/%d contacts",
			lvl.Level, task.ID, res.Contacts.Sent, res.Contacts.Recipients)
		d.publish(ctx, models.Event{
			Type:        models.EventEscalationFired,
			TaskID:      task.ID,
			MachineID:   machine.ID,
			Level:       lvl.Level,
			DaysOverdue: st.DaysOverdue,
			Recipients:  res.Contacts.Sent,
			At:          at,
		})
	}

	res.Subscribers = d.notifier.NotifySubscribers(ctx, models.TypeMaintenanceOverdue, machine.ID, models.Message{
		Type:    models.TypeMaintenanceOverdue,
		Subject: fmt.Sprintf("Maintenance overdue: %s", task.DisplayTitle()),
		Body:    base + " " + SubscriberNote(res.Resolution, st.DaysOverdue),
		TaskID:  task.ID,
	})
	return res, nil
}

// SubscriberNote is the tier line appended to the subscriber message.
func SubscriberNote(r Resolution, daysOverdue int) string {
	switch {
	case r.Matched != nil:
		return fmt.Sprintf("Escalation Level %d notified.", r.Matched.Level)
	case r.Next != nil:
		return fmt.Sprintf("Level %d will be notified in %s.", r.Next.Level, days(r.DaysUntilNext(daysOverdue)))
	default:
		return fmt.Sprintf("Overdue by %s.", days(daysOverdue))
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev models.Event) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, ev); err != nil {
		d.logger.Warnf("Failed to publish %s for task %d: %v", ev.Type, ev.TaskID, err)
	}
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func machineLabel(m models.Machine) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("machine #%d", m.ID)
}
