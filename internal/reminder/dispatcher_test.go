package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/models"
	"maintenance-service/internal/notify"
	"maintenance-service/internal/notify/notifytest"
	"maintenance-service/internal/providers"
	"maintenance-service/internal/schedule"
)

type markerStore struct {
	mu      sync.Mutex
	markers map[int64]time.Time
	err     error
}

func (s *markerStore) MarkReminderSent(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.markers[id]; ok {
		return false, nil
	}
	s.markers[id] = at
	return true, nil
}

type recordedEvents struct{ events []models.Event }

func (r *recordedEvents) Publish(_ context.Context, ev models.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func intPtr(v int) *int { return &v }

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := schedule.ParseDay(s)
	require.NoError(t, err)
	return d
}

func setup(subs map[string]map[int64][]models.User) (*Dispatcher, *markerStore, *notifytest.Channel, *recordedEvents) {
	store := &markerStore{markers: map[int64]time.Time{}}
	inApp := notifytest.NewChannel(providers.ChannelInApp)
	n := notify.New(&notifytest.Index{Subs: subs}, logging.NewNop(), notify.Options{}, inApp)
	events := &recordedEvents{}
	return NewDispatcher(store, n, events, logging.NewNop()), store, inApp, events
}

func TestReminderFiresOnceAcrossDays(t *testing.T) {
	d, store, inApp, events := setup(map[string]map[int64][]models.User{
		models.TypeMaintenanceReminder: {3: {{ID: 1, Name: "ana"}}},
	})
	task := &models.MaintenanceTask{
		ID:                 10,
		Target:             models.MachineTarget(3),
		ScheduledDate:      mustDay(t, "2025-02-10"),
		ReminderDaysBefore: intPtr(3),
		Status:             models.StatusScheduled,
	}
	machine := models.Machine{ID: 3, Name: "Press 3"}

	st, err := schedule.Classify(*task, mustDay(t, "2025-02-07"))
	require.NoError(t, err)
	res, err := d.Dispatch(context.Background(), task, st, machine)
	require.NoError(t, err)
	assert.True(t, res.Fired)
	assert.True(t, res.MarkerSet)
	require.NotNil(t, task.ReminderSentAt)
	require.Len(t, inApp.Sent(), 1)
	assert.Contains(t, inApp.Sent()[0].Message.Body, "Press 3")
	assert.Contains(t, inApp.Sent()[0].Message.Body, "2025-02-10")
	require.Len(t, events.events, 1)
	assert.Equal(t, models.EventReminderSent, events.events[0].Type)

	st, err = schedule.Classify(*task, mustDay(t, "2025-02-08"))
	require.NoError(t, err)
	res, err = d.Dispatch(context.Background(), task, st, machine)
	require.NoError(t, err)
	assert.False(t, res.Fired)
	assert.Len(t, inApp.Sent(), 1)
	assert.Len(t, store.markers, 1)
}

func TestReminderMarkerSetWithoutSubscribers(t *testing.T) {
	d, store, inApp, _ := setup(nil)
	task := &models.MaintenanceTask{ID: 11, ScheduledDate: mustDay(t, "2025-02-10"), ReminderDaysBefore: intPtr(3)}
	st, err := schedule.Classify(*task, mustDay(t, "2025-02-09"))
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), task, st, models.Machine{ID: 3})
	require.NoError(t, err)
	assert.True(t, res.MarkerSet)
	assert.Empty(t, inApp.Sent())
	assert.Contains(t, store.markers, int64(11))
}

func TestReminderMarkerSetDespiteTransportFailure(t *testing.T) {
	d, store, inApp, _ := setup(map[string]map[int64][]models.User{
		models.TypeMaintenanceReminder: {0: {{ID: 1, Name: "ana"}, {ID: 2, Name: "bo"}}},
	})
	inApp.FailFor["ana"] = true
	task := &models.MaintenanceTask{ID: 12, ScheduledDate: mustDay(t, "2025-02-10"), ReminderDaysBefore: intPtr(1)}
	st, err := schedule.Classify(*task, mustDay(t, "2025-02-09"))
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), task, st, models.Machine{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivery.Failed)
	assert.Equal(t, 1, res.Delivery.Sent)
	assert.Contains(t, store.markers, int64(12))
}

func TestReminderNoOps(t *testing.T) {
	sent := time.Now()
	tests := map[string]struct {
		task  models.MaintenanceTask
		today string
	}{
		"already sent":    {models.MaintenanceTask{ID: 1, ScheduledDate: mustDay(t, "2025-02-10"), ReminderDaysBefore: intPtr(3), ReminderSentAt: &sent}, "2025-02-08"},
		"no lead time":    {models.MaintenanceTask{ID: 2, ScheduledDate: mustDay(t, "2025-02-10")}, "2025-02-10"},
		"window not open": {models.MaintenanceTask{ID: 3, ScheduledDate: mustDay(t, "2025-02-10"), ReminderDaysBefore: intPtr(3)}, "2025-02-06"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d, store, inApp, _ := setup(map[string]map[int64][]models.User{
				models.TypeMaintenanceReminder: {0: {{ID: 1, Name: "ana"}}},
			})
			task := tt.task
			st, err := schedule.Classify(task, mustDay(t, tt.today))
			require.NoError(t, err)

			res, err := d.Dispatch(context.Background(), &task, st, models.Machine{ID: 1})
			require.NoError(t, err)
			assert.False(t, res.Fired)
			assert.Empty(t, inApp.Sent())
			assert.Empty(t, store.markers)
		})
	}
}

func TestReminderLostRace(t *testing.T) {
	d, store, inApp, events := setup(map[string]map[int64][]models.User{
		models.TypeMaintenanceReminder: {0: {{ID: 1, Name: "ana"}}},
	})
	store.markers[13] = time.Now()
	task := &models.MaintenanceTask{ID: 13, ScheduledDate: mustDay(t, "2025-02-10"), ReminderDaysBefore: intPtr(3)}
	st, err := schedule.Classify(*task, mustDay(t, "2025-02-09"))
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), task, st, models.Machine{ID: 1})
	require.NoError(t, err)
	assert.False(t, res.Fired)
	assert.False(t, res.MarkerSet)
	assert.Nil(t, task.ReminderSentAt)
	assert.Empty(t, inApp.Sent())
	assert.Empty(t, events.events)
}

func TestReminderMarkerError(t *testing.T) {
	d, store, inApp, _ := setup(map[string]map[int64][]models.User{
		models.TypeMaintenanceReminder: {0: {{ID: 1, Name: "ana"}}},
	})
	store.err = errors.New("deadlock detected")
	task := &models.MaintenanceTask{ID: 14, ScheduledDate: mustDay(t, "2025-02-10"), ReminderDaysBefore: intPtr(3)}
	st, err := schedule.Classify(*task, mustDay(t, "2025-02-09"))
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), task, st, models.Machine{ID: 1})
	assert.Error(t, err)
	assert.Empty(t, inApp.Sent())
}

func TestReminderConcurrentClaims(t *testing.T) {
	d, _, inApp, _ := setup(map[string]map[int64][]models.User{
		models.TypeMaintenanceReminder: {0: {{ID: 1, Name: "ana"}}},
	})
	scheduled := mustDay(t, "2025-02-10")
	st, err := schedule.Classify(models.MaintenanceTask{ID: 15, ScheduledDate: scheduled, ReminderDaysBefore: intPtr(3)}, mustDay(t, "2025-02-08"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := &models.MaintenanceTask{ID: 15, ScheduledDate: scheduled, ReminderDaysBefore: intPtr(3)}
			_, err := d.Dispatch(context.Background(), task, st, models.Machine{ID: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, inApp.Sent(), 1)
}
