// Package app wires the stores, channels and dispatchers shared by the
// daemon and the one-shot sweep command.
package app

import (
	"context"
	"fmt"

	"maintenance-service/internal/config"
	"maintenance-service/internal/db"
	"maintenance-service/internal/escalation"
	"maintenance-service/internal/kafka"
	"maintenance-service/internal/logging"
	"maintenance-service/internal/models"
	"maintenance-service/internal/notify"
	"maintenance-service/internal/preferences"
	"maintenance-service/internal/providers"
	"maintenance-service/internal/reminder"
	"maintenance-service/internal/sweep"
	"maintenance-service/internal/tags"
)

type App struct {
	DB        *db.DB
	Hub       *providers.Hub
	Driver    *sweep.Driver
	Publisher *kafka.Publisher
	logger    *logging.Logger
}

// New connects to the database, makes sure the engine's tag definitions
// exist and builds the sweep driver with every configured channel.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	dbConn, err := db.New(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	if err := dbConn.Migrate(ctx); err != nil {
		dbConn.Close()
		return nil, err
	}
	if err := dbConn.EnsureTagDefinitions(ctx, models.EngineTags); err != nil {
		dbConn.Close()
		return nil, err
	}

	a := &App{DB: dbConn, Hub: providers.NewHub(logger), logger: logger}

	channels := []notify.Channel{providers.NewInAppChannel(dbConn, a.Hub)}
	if cfg.Email.SMTPServer != "" {
		channels = append(channels, providers.NewEmailChannel(cfg))
	} else {
		logger.Warnf("EMAIL_SMTP_SERVER not set, email channel disabled")
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := providers.NewTelegramChannel(cfg.Telegram.BotToken, cfg.Telegram.RateLimit, logger)
		if err != nil {
			dbConn.Close()
			return nil, fmt.Errorf("failed to create telegram channel: %w", err)
		}
		channels = append(channels, tg)
	} else {
		logger.Warnf("TELEGRAM_BOT_TOKEN not set, chat channel disabled")
	}

	notifier := notify.New(preferences.NewIndex(dbConn), logger, notify.Options{
		Timeout:          cfg.Sweep.ChannelTimeout,
		EscalationChatID: cfg.Telegram.EscalationChatID,
	}, channels...)

	var events escalation.Publisher
	if cfg.Kafka.Broker != "" {
		a.Publisher = kafka.NewPublisher(cfg.Kafka.Broker, cfg.Kafka.EventsTopic, logger)
		events = a.Publisher
	}
	if cfg.Escalation.PolicyID == 0 {
		logger.Warnf("ESCALATION_POLICY_ID not set, escalations use the fallback message")
	}

	a.Driver = sweep.New(
		dbConn,
		dbConn,
		reminder.NewDispatcher(dbConn, notifier, events, logger),
		tags.NewApplier(dbConn),
		escalation.NewDispatcher(dbConn, dbConn, cfg.Escalation.PolicyID, notifier, events, logger),
		logger,
		sweep.Options{
			Workers:    cfg.Sweep.Workers,
			Timeout:    cfg.Sweep.Timeout,
			Interval:   cfg.Sweep.Interval,
			RunOnStart: cfg.Sweep.RunOnStart,
			Location:   cfg.Sweep.Location,
		},
	)
	return a, nil
}

func (a *App) Close() {
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	a.DB.Close()
	a.logger.Infof("DB connection closed")
}
