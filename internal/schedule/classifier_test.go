package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-service/internal/models"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDay(s)
	require.NoError(t, err)
	return d
}

func intPtr(v int) *int { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		task        models.MaintenanceTask
		today       string
		reminderDue bool
		inGrace     bool
		pastDue     bool
		daysOverdue int
	}{
		{
			name:    "inside grace window before scheduled date",
			task:    models.MaintenanceTask{ID: 1, ScheduledDate: day(t, "2025-01-01"), GracePeriodDays: 5},
			today:   "2024-12-28",
			inGrace: true,
		},
		{
			name:    "inside grace window after scheduled date",
			task:    models.MaintenanceTask{ID: 1, ScheduledDate: day(t, "2025-01-01"), GracePeriodDays: 5},
			today:   "2025-01-04",
			inGrace: true,
		},
		{
			name:    "due date itself is still in the window",
			task:    models.MaintenanceTask{ID: 1, ScheduledDate: day(t, "2025-01-01"), GracePeriodDays: 5},
			today:   "2025-01-06",
			inGrace: true,
		},
		{
			name:        "past due",
			task:        models.MaintenanceTask{ID: 1, ScheduledDate: day(t, "2025-01-01"), GracePeriodDays: 5},
			today:       "2025-01-10",
			pastDue:     true,
			daysOverdue: 4,
		},
		{
			name:  "well before anything",
			task:  models.MaintenanceTask{ID: 1, ScheduledDate: day(t, "2025-01-01"), GracePeriodDays: 5},
			today: "2024-12-01",
		},
		{
			name:        "reminder window opens",
			task:        models.MaintenanceTask{ID: 2, ScheduledDate: day(t, "2025-02-10"), ReminderDaysBefore: intPtr(3)},
			today:       "2025-02-07",
			reminderDue: true,
		},
		{
			name:  "reminder window not yet open",
			task:  models.MaintenanceTask{ID: 2, ScheduledDate: day(t, "2025-02-10"), ReminderDaysBefore: intPtr(3)},
			today: "2025-02-06",
		},
		{
			name:        "reminder and grace overlap",
			task:        models.MaintenanceTask{ID: 3, ScheduledDate: day(t, "2025-02-10"), GracePeriodDays: 2, ReminderDaysBefore: intPtr(3)},
			today:       "2025-02-09",
			reminderDue: true,
			inGrace:     true,
		},
		{
			name:        "zero grace is past due the next day",
			task:        models.MaintenanceTask{ID: 4, ScheduledDate: day(t, "2025-03-01")},
			today:       "2025-03-02",
			pastDue:     true,
			daysOverdue: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Classify(tt.task, day(t, tt.today))
			require.NoError(t, err)
			assert.Equal(t, tt.reminderDue, st.ReminderDue, "reminder due")
			assert.Equal(t, tt.inGrace, st.InGraceWindow, "in grace window")
			assert.Equal(t, tt.pastDue, st.PastDue, "past due")
			assert.Equal(t, tt.daysOverdue, st.DaysOverdue, "days overdue")
		})
	}
}

func TestClassifyDates(t *testing.T) {
	task := models.MaintenanceTask{ID: 1, ScheduledDate: day(t, "2025-01-01"), GracePeriodDays: 5, ReminderDaysBefore: intPtr(7)}
	st, err := Classify(task, day(t, "2025-01-02"))
	require.NoError(t, err)

	assert.Equal(t, day(t, "2024-12-27"), st.GraceStart)
	assert.Equal(t, day(t, "2025-01-06"), st.DueDate)
	require.NotNil(t, st.ReminderDate)
	assert.Equal(t, day(t, "2024-12-25"), *st.ReminderDate)
}

func TestClassifyIgnoresClockTime(t *testing.T) {
	task := models.MaintenanceTask{
		ID:              1,
		ScheduledDate:   time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC),
		GracePeriodDays: 0,
	}
	st, err := Classify(task, time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, st.InGraceWindow)
	assert.False(t, st.PastDue)
}

func TestClassifyInvalid(t *testing.T) {
	tests := map[string]models.MaintenanceTask{
		"zero scheduled date": {ID: 1},
		"negative grace":      {ID: 1, ScheduledDate: day(t, "2025-01-01"), GracePeriodDays: -1},
		"negative lead time":  {ID: 1, ScheduledDate: day(t, "2025-01-01"), ReminderDaysBefore: intPtr(-2)},
	}
	for name, task := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Classify(task, day(t, "2025-01-01"))
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestTodayUsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	now := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, day(t, "2025-01-02"), Today(now, tokyo))
	assert.Equal(t, day(t, "2025-01-01"), Today(now, time.UTC))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 4, DaysBetween(day(t, "2025-01-06"), day(t, "2025-01-10")))
	assert.Equal(t, -4, DaysBetween(day(t, "2025-01-10"), day(t, "2025-01-06")))
	assert.Equal(t, 1, DaysBetween(day(t, "2025-03-08"), day(t, "2025-03-09")))
}
