package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/models"
	"maintenance-service/internal/sweep"
)

var today = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestParseTrigger(t *testing.T) {
	tests := map[string]struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		"empty":     {value: "", want: today},
		"blank":     {value: "  \n", want: today},
		"no as_of":  {value: `{}`, want: today},
		"as_of":     {value: `{"as_of":"2025-01-10"}`, want: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)},
		"bad json":  {value: `as_of=2025-01-10`, wantErr: true},
		"bad as_of": {value: `{"as_of":"10/01/2025"}`, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := parseTrigger([]byte(tt.value), today)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeSweeper struct {
	mu   sync.Mutex
	days []time.Time
}

func (f *fakeSweeper) Trigger(_ context.Context, day time.Time) (sweep.Report, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, day)
	return sweep.Report{RunID: "run", Today: day}, false, nil
}

func (f *fakeSweeper) Today() time.Time { return today }

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerTriggersAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	sweeper := &fakeSweeper{}
	c := &Consumer{reader: reader, sweep: sweeper, logger: logging.NewNop()}

	reader.msgs <- kafka.Message{Offset: 1}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte("not json")}
	reader.msgs <- kafka.Message{Offset: 3, Value: []byte(`{"as_of":"2025-01-10"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	c.Start(ctx, &wg)

	assert.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 3
	}, time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()

	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	require.Len(t, sweeper.days, 2)
	assert.Equal(t, today, sweeper.days[0])
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), sweeper.days[1])
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublisherKeysByTaskAndStampsRun(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, logger: logging.NewNop()}
	ctx := models.ContextWithRunID(context.Background(), "run-42")

	err := p.Publish(ctx, models.Event{Type: models.EventEscalationFired, TaskID: 9, Level: 2})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "9", string(w.msgs[0].Key))
	assert.Equal(t, models.EventEscalationFired, string(w.msgs[0].Headers[0].Value))

	var ev models.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "run-42", ev.RunID)
	assert.Equal(t, 2, ev.Level)
}

func TestPublisherWriteError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("leader not available")}, logger: logging.NewNop()}
	err := p.Publish(context.Background(), models.Event{Type: models.EventTaskOverdue, TaskID: 1})
	assert.ErrorContains(t, err, "leader not available")
}
