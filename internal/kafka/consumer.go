package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/schedule"
	"maintenance-service/internal/sweep"
)

type Config struct {
	Broker  string
	Topic   string
	GroupID string
}

// Sweeper is what a trigger message starts.
type Sweeper interface {
	Trigger(ctx context.Context, today time.Time) (sweep.Report, bool, error)
	Today() time.Time
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer starts a sweep for every message on the trigger topic.
type Consumer struct {
	reader messageReader
	sweep  Sweeper
	logger *logging.Logger
}

func NewConsumer(cfg Config, sweeper Sweeper, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     strings.Split(cfg.Broker, ","),
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{reader: r, sweep: sweeper, logger: logger}
}

type triggerMessage struct {
	AsOf string `json:"as_of"`
}

// parseTrigger returns the day a trigger asks for. An empty payload or one
// without as_of means today.
func parseTrigger(value []byte, today time.Time) (time.Time, error) {
	if len(strings.TrimSpace(string(value))) == 0 {
		return today, nil
	}
	var msg triggerMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}
	if msg.AsOf == "" {
		return today, nil
	}
	day, err := schedule.ParseDay(msg.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of %q: %w", msg.AsOf, err)
	}
	return day, nil
}

func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka trigger consumer started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					c.logger.Infof("Kafka trigger consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			c.handle(ctx, msg)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	today, err := parseTrigger(msg.Value, c.sweep.Today())
	if err != nil {
		c.logger.Errorf("Invalid trigger at offset %d: %v", msg.Offset, err)
		return
	}
	rep, shared, err := c.sweep.Trigger(ctx, today)
	if err != nil {
		c.logger.Errorf("Triggered sweep failed: %v", err)
		return
	}
	c.logger.Infof("Triggered sweep %s for %s done (shared=%t)", rep.RunID, today.Format("2006-01-02"), shared)
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warnf("Failed to close kafka reader: %v", err)
	}
}
