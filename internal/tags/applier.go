// Package tags keeps the maintenance-due / maintenance-overdue labels on a
// machine in line with its tasks' temporal state.
package tags

import (
	"context"
	"fmt"

	"maintenance-service/internal/models"
	"maintenance-service/internal/schedule"
)

// Store applies tag changes to one taggable entity atomically. Adding a tag
// that is present and removing one that is absent are no-ops; the returned
// SupersededBy maps a tag to the tag whose presence keeps it off an entity.
// Several tasks can share one machine, so an in-grace task must not put
// maintenance-due back next to an overdue task's maintenance-overdue.
var SupersededBy = map[string]string{
	models.TagMaintenanceDue: models.TagMaintenanceOverdue,
}

// Blocked reports whether slug must not be attached to an entity whose
// current tags satisfy has.
func Blocked(slug string, has func(string) bool) bool {
	by, ok := SupersededBy[slug]
	return ok && has(by)
}

// Change lists only the rows that actually changed. A slug in add is not
// attached while the entity carries its SupersededBy tag, checked inside the
// same transaction.
type Store interface {
	ApplyTags(ctx context.Context, kind models.TargetKind, id int64, add, remove []string) (Change, error)
}

// Change lists the tag slugs added and removed by one Apply.
type Change struct {
	Added   []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

type Applier struct {
	store Store
}

func NewApplier(store Store) *Applier {
	return &Applier{store: store}
}

// Plan returns the tags to ensure present and absent for st. Overdue
// supersedes due; outside both windows nothing is touched.
func Plan(st schedule.State) (add, remove []string) {
	switch {
	case st.PastDue:
		return []string{models.TagMaintenanceOverdue}, []string{models.TagMaintenanceDue}
	case st.InGraceWindow:
		return []string{models.TagMaintenanceDue}, nil
	default:
		return nil, nil
	}
}

// Apply ensures the tags planned for st on the machine owning the task.
func (a *Applier) Apply(ctx context.Context, machine models.Machine, st schedule.State) (Change, error) {
	add, remove := Plan(st)
	if len(add) == 0 && len(remove) == 0 {
		return Change{}, nil
	}
	change, err := a.store.ApplyTags(ctx, models.TargetMachine, machine.ID, add, remove)
	if err != nil {
		return Change{}, fmt.Errorf("failed to apply tags on machine %d: %w", machine.ID, err)
	}
	return change, nil
}
