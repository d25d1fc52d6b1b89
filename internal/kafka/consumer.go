package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"appointment-service/internal/logging"
	"appointment-service/internal/models"
	"appointment-service/internal/services"
)

// EventHandler applies one appointment change.
type EventHandler interface {
	Apply(ctx context.Context, ev services.AppointmentEvent) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const defaultRetryDelay = 2 * time.Second

// Consumer reads appointment events from a topic and applies them.
type Consumer struct {
	reader  MessageReader
	handler EventHandler
	logger  *logging.Logger
	// RetryDelay is the pause after a failed fetch.
	RetryDelay time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, handler EventHandler, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewConsumerWithReader(r, handler, logger)
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(r MessageReader, handler EventHandler, logger *logging.Logger) *Consumer {
	return &Consumer{reader: r, handler: handler, logger: logger, RetryDelay: defaultRetryDelay}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed, retrying in %v: %v", c.RetryDelay, err)
				select {
				case <-ctx.Done():
					c.logger.Infof("Kafka consumer stopped")
					return
				case <-time.After(c.RetryDelay):
				}
				continue
			}
			c.Handle(ctx, msg)
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

// Handle decodes and applies one message. Malformed or invalid events are
// logged and skipped so a bad message cannot block the partition.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	ev, err := Decode(msg.Value)
	if err != nil {
		c.logger.Errorf("Skipping message at offset %d: %v", msg.Offset, err)
		return
	}
	if err := c.handler.Apply(ctx, ev); err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.logger.Warnf("Skipping invalid %s event for %s: %v", ev.Type, ev.Appointment.ID, err)
			return
		}
		c.logger.Errorf("Applying %s event for %s failed: %v", ev.Type, ev.Appointment.ID, err)
		return
	}
	c.logger.Infof("Processed %s event for appointment %s", ev.Type, ev.Appointment.ID)
}

// Decode parses an appointment event payload.
func Decode(value []byte) (services.AppointmentEvent, error) {
	var ev services.AppointmentEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return services.AppointmentEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Type == "" {
		return services.AppointmentEvent{}, fmt.Errorf("event without type: %w", models.ErrValidation)
	}
	return ev, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
