package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"maintenance-service/internal/logging"
	"maintenance-service/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes engine events to the events topic keyed by task id, so
// events for one task stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	logger *logging.Logger
}

func NewPublisher(broker, topic string, logger *logging.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(broker, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, ev models.Event) error {
	if ev.RunID == "" {
		ev.RunID = models.RunIDFromContext(ctx)
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.TaskID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}
	p.logger.Debugf("Published %s for task %d", ev.Type, ev.TaskID)
	return nil
}

func (p *Publisher) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warnf("Failed to close kafka writer: %v", err)
	}
}
