package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-service/internal/config"
	"maintenance-service/internal/logging"
	"maintenance-service/internal/models"
)

type fakeSender struct {
	failures int
	sent     []*bot.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*tgmodels.Message, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("bad gateway")
	}
	f.sent = append(f.sent, p)
	return &tgmodels.Message{}, nil
}

func TestTelegramChannelSend(t *testing.T) {
	sender := &fakeSender{failures: 1}
	ch := newTelegramChannel(sender, 100, logging.NewNop())
	ch.delay = time.Millisecond

	err := ch.Send(context.Background(), models.Recipient{Name: "ops", ChatID: -100}, models.Message{Subject: "Overdue", Body: "Press 4"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Overdue")
}

func TestTelegramChannelRequiresChatID(t *testing.T) {
	ch := newTelegramChannel(&fakeSender{}, 100, logging.NewNop())
	err := ch.Send(context.Background(), models.Recipient{Name: "ana"}, models.Message{})
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestEmailChannelSend(t *testing.T) {
	var cfg config.Config
	cfg.Email.SMTPServer = "smtp.local"
	cfg.Email.SMTPPort = 25
	cfg.Email.Username = "engine@plant.local"
	cfg.Email.Password = "secret"

	var gotTo, gotSubject string
	ch := NewEmailChannel(cfg)
	ch.sendMail = func(_ string, _ int, _, _, _, to, subject, _ string) error {
		gotTo, gotSubject = to, subject
		return nil
	}

	err := ch.Send(context.Background(), models.Recipient{Email: "lead@plant.local"}, models.Message{Subject: "Reminder"})
	require.NoError(t, err)
	assert.Equal(t, "lead@plant.local", gotTo)
	assert.Equal(t, "Reminder", gotSubject)
}

func TestEmailChannelErrors(t *testing.T) {
	ch := NewEmailChannel(config.Config{})
	err := ch.Send(context.Background(), models.Recipient{Name: "no mail"}, models.Message{})
	assert.ErrorIs(t, err, ErrNoAddress)

	err = ch.Send(context.Background(), models.Recipient{Email: "a@b.c"}, models.Message{})
	assert.ErrorContains(t, err, "missing Email configuration")
}

func TestEmailChannelHonoursDeadline(t *testing.T) {
	var cfg config.Config
	cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password = "smtp.local", 25, "u", "p"

	block := make(chan struct{})
	defer close(block)
	ch := NewEmailChannel(cfg)
	ch.sendMail = func(string, int, string, string, string, string, string, string) error {
		<-block
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := ch.Send(ctx, models.Recipient{Email: "a@b.c"}, models.Message{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type memNotifications struct {
	stored []models.Notification
}

func (m *memNotifications) CreateNotification(_ context.Context, n models.Notification) error {
	m.stored = append(m.stored, n)
	return nil
}

func TestInAppChannelSend(t *testing.T) {
	store := &memNotifications{}
	ch := NewInAppChannel(store, NewHub(logging.NewNop()))

	err := ch.Send(context.Background(), models.Recipient{UserID: 5}, models.Message{Type: models.TypeMaintenanceReminder, Subject: "s", TaskID: 9})
	require.NoError(t, err)
	require.Len(t, store.stored, 1)
	assert.Equal(t, int64(5), store.stored[0].UserID)
	assert.Equal(t, int64(9), store.stored[0].TaskID)
	assert.NotEqual(t, [16]byte{}, store.stored[0].ID)

	err = ch.Send(context.Background(), models.Recipient{Name: "contact"}, models.Message{})
	assert.ErrorIs(t, err, ErrNoAddress)
}
