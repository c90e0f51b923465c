// Package escalation resolves which tier of an escalation policy an overdue
// task has reached and notifies that tier's contacts and the subscribers of
// the task's machine.
package escalation

import "maintenance-service/internal/models"

// Resolution is the tier reached and the tier coming next. Either may be nil.
type Resolution struct {
	Matched *models.EscalationLevel
	Next    *models.EscalationLevel
}

// DaysUntilNext reports how many days past daysOverdue the next tier
// activates, or -1 when there is no next tier.
func (r Resolution) DaysUntilNext(daysOverdue int) int {
	if r.Next == nil {
		return -1
	}
	return r.Next.DaysAfter - daysOverdue
}

// Resolve picks the level with the greatest DaysAfter <= daysOverdue and the
// level with the smallest DaysAfter > daysOverdue. On equal DaysAfter the
// higher Level wins. A nil or inactive policy resolves to nothing. The
// returned levels are copies.
func Resolve(policy *models.EscalationPolicy, daysOverdue int) Resolution {
	if policy == nil || !policy.Active {
		return Resolution{}
	}

	var matched, next *models.EscalationLevel
	for i := range policy.Levels {
		l := policy.Levels[i]
		if l.DaysAfter <= daysOverdue {
			if matched == nil || l.DaysAfter > matched.DaysAfter ||
				(l.DaysAfter == matched.DaysAfter && l.Level > matched.Level) {
				matched = &l
			}
			continue
		}
		if next == nil || l.DaysAfter < next.DaysAfter ||
			(l.DaysAfter == next.DaysAfter && l.Level > next.Level) {
			next = &l
		}
	}
	return Resolution{Matched: matched, Next: next}
}
