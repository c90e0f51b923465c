// Package sweep walks every open maintenance task once per run and applies
// reminders, tags and escalations to each, isolating per-task failures.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"maintenance-service/internal/escalation"
	"maintenance-service/internal/logging"
	"maintenance-service/internal/metrics"
	"maintenance-service/internal/models"
	"maintenance-service/internal/reminder"
	"maintenance-service/internal/schedule"
	"maintenance-service/internal/tags"
)

// TaskStore loads the tasks a sweep walks.
type TaskStore interface {
	ListOpenTasks(ctx context.Context) ([]models.MaintenanceTask, error)
}

// MachineResolver returns the machine owning a target or
// models.ErrTargetNotFound.
type MachineResolver interface {
	ResolveMachine(ctx context.Context, target models.Target) (models.Machine, error)
}

type Reminders interface {
	Dispatch(ctx context.Context, task *models.MaintenanceTask, st schedule.State, machine models.Machine) (reminder.Result, error)
}

type Tagger interface {
	Apply(ctx context.Context, machine models.Machine, st schedule.State) (tags.Change, error)
}

type Escalations interface {
	LoadPolicy(ctx context.Context) *models.EscalationPolicy
	Dispatch(ctx context.Context, task *models.MaintenanceTask, st schedule.State, machine models.Machine, policy *models.EscalationPolicy) (escalation.Result, error)
}

// Report summarises one sweep.
type Report struct {
	RunID       string    `json:"run_id"`
	Today       time.Time `json:"today"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	Total       int       `json:"total"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Reminders   int       `json:"reminders"`
	Escalations int       `json:"escalations"`
	TagChanges  int       `json:"tag_changes"`
}

type Options struct {
	Workers    int
	Timeout    time.Duration
	Interval   time.Duration
	RunOnStart bool
	Location   *time.Location
}

type Driver struct {
	tasks       TaskStore
	machines    MachineResolver
	reminders   Reminders
	tagger      Tagger
	escalations Escalations
	logger      *logging.Logger
	opts        Options
	now         func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	last  *Report
}

func New(tasks TaskStore, machines MachineResolver, reminders Reminders, tagger Tagger, escalations Escalations, logger *logging.Logger, opts Options) *Driver {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	return &Driver{
		tasks:       tasks,
		machines:    machines,
		reminders:   reminders,
		tagger:      tagger,
		escalations: escalations,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
	}
}

// Today is the current calendar day in the configured location.
func (d *Driver) Today() time.Time {
	return schedule.Today(d.now(), d.opts.Location)
}

// LastReport returns the report of the most recent completed sweep.
func (d *Driver) LastReport() (Report, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return Report{}, false
	}
	return *d.last, true
}

// Trigger runs a sweep for today unless one is already running, in which
// case the caller waits for and shares the running sweep's report.
func (d *Driver) Trigger(ctx context.Context, today time.Time) (Report, bool, error) {
	v, err, shared := d.group.Do("sweep", func() (interface{}, error) {
		return d.Run(ctx, today)
	})
	rep, _ := v.(Report)
	return rep, shared, err
}

// Start runs sweeps every Interval until ctx is cancelled.
func (d *Driver) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if d.opts.RunOnStart {
			d.scheduled(ctx)
		}
		ticker := time.NewTicker(d.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				d.logger.Infof("Sweep scheduler stopped")
				return
			case <-ticker.C:
				d.scheduled(ctx)
			}
		}
	}()
}

func (d *Driver) scheduled(ctx context.Context) {
	if _, shared, err := d.Trigger(ctx, d.Today()); err != nil {
		d.logger.Errorf("Scheduled sweep failed: %v", err)
	} else if shared {
		d.logger.Infof("Scheduled sweep joined a sweep already in progress")
	}
}

type outcome struct {
	result     string
	reminder   bool
	escalated  bool
	tagChanges int
}

const (
	outcomeProcessed = "processed"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Run performs one sweep for today. It returns an error only when the tasks
// cannot be loaded; failures of individual tasks are counted in the report.
func (d *Driver) Run(ctx context.Context, today time.Time) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Today: schedule.Day(today), Started: d.now()}
	logger := d.logger.WithField("run_id", rep.RunID)
	ctx = models.ContextWithRunID(ctx, rep.RunID)

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	tasks, err := d.tasks.ListOpenTasks(ctx)
	if err != nil {
		metrics.SweepsTotal.WithLabelValues("error").Inc()
		return rep, fmt.Errorf("failed to load open tasks: %w", err)
	}
	rep.Total = len(tasks)
	logger.Infof("Sweep for %s started with %d open tasks", rep.Today.Format("2006-01-02"), rep.Total)

	policy := d.escalations.LoadPolicy(ctx)

	jobs := make(chan *models.MaintenanceTask)
	results := make(chan outcome)
	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- d.process(ctx, logger, task, rep.Today, policy)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range tasks {
			select {
			case jobs <- &tasks[i]:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for o := range results {
		switch o.result {
		case outcomeProcessed:
			rep.Processed++
		case outcomeSkipped:
			rep.Skipped++
		default:
			rep.Failed++
		}
		if o.reminder {
			rep.Reminders++
		}
		if o.escalated {
			rep.Escalations++
		}
		rep.TagChanges += o.tagChanges
		metrics.TasksProcessed.WithLabelValues(o.result).Inc()
	}

	if left := rep.Total - rep.Processed - rep.Skipped - rep.Failed; left > 0 {
		logger.Warnf("Sweep deadline reached, %d tasks not visited", left)
		rep.Skipped += left
		metrics.TasksProcessed.WithLabelValues(outcomeSkipped).Add(float64(left))
	}

	rep.Finished = d.now()
	metrics.SweepsTotal.WithLabelValues("ok").Inc()
	metrics.SweepDuration.Observe(rep.Finished.Sub(rep.Started).Seconds())
	logger.Infof("Sweep finished: processed=%d skipped=%d failed=%d reminders=%d escalations=%d tag_changes=%d",
		rep.Processed, rep.Skipped, rep.Failed, rep.Reminders, rep.Escalations, rep.TagChanges)

	d.mu.Lock()
	d.last = &rep
	d.mu.Unlock()
	return rep, nil
}

// process runs classify, reminder, tags and escalation for one task. A task
// whose stored status is unknown fails before any side effect. A
// failing step is logged and the remaining steps still run; a panic fails
// only this task.
func (d *Driver) process(ctx context.Context, logger *logging.Logger, task *models.MaintenanceTask, today time.Time, policy *models.EscalationPolicy) (o outcome) {
	logger = logger.WithFields(map[string]interface{}{"task_id": task.ID, "target": task.Target.String()})
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Task %d panicked: %v", task.ID, r)
			o.result = outcomeFailed
		}
	}()

	if _, err := models.ParseStatus(string(task.Status)); err != nil {
		logger.Errorf("Failed to process task %d: %v", task.ID, err)
		return outcome{result: outcomeFailed}
	}

	st, err := schedule.Classify(*task, today)
	if err != nil {
		logger.Errorf("Failed to classify task %d: %v", task.ID, err)
		return outcome{result: outcomeFailed}
	}

	machine, err := d.machines.ResolveMachine(ctx, task.Target)
	if err != nil {
		if errors.Is(err, models.ErrTargetNotFound) {
			logger.Warnf("Skipping task %d: %v", task.ID, err)
			return outcome{result: outcomeSkipped}
		}
		logger.Errorf("Failed to resolve machine for task %d: %v", task.ID, err)
		return outcome{result: outcomeFailed}
	}

	o.result = outcomeProcessed

	rem, err := d.reminders.Dispatch(ctx, task, st, machine)
	if err != nil {
		logger.Errorf("Reminder step failed for task %d: %v", task.ID, err)
		o.result = outcomeFailed
	}
	o.reminder = rem.Fired

	change, err := d.tagger.Apply(ctx, machine, st)
	if err != nil {
		logger.Errorf("Tag step failed for task %d: %v", task.ID, err)
		o.result = outcomeFailed
	}
	o.tagChanges = len(change.Added) + len(change.Removed)

	if st.PastDue {
		esc, err := d.escalations.Dispatch(ctx, task, st, machine, policy)
		if err != nil {
			logger.Errorf("Escalation step failed for task %d: %v", task.ID, err)
			o.result = outcomeFailed
		}
		o.escalated = esc.Resolution.Matched != nil
	}
	return o
}
