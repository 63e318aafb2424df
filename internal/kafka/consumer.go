package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-storefront/internal/logger"
)

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer follows the order topic, e.g. for the order-tail tool.
type Consumer struct {
	Reader MessageReader
	logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, logger: log}
}

// Run hands every decodable order event to handler until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handler func(OrderEvent)) error {
	c.logger.Info("KAFKA", "Order consumer started")

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return fmt.Errorf("failed to read order event: %w", err)
		}

		var event OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil || event.Order == nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Skipping undecodable message at offset %d", msg.Offset))
			continue
		}

		c.logger.LogKafka("RECEIVE", msg.Topic, fmt.Sprintf("order %s", event.Order.ID))
		handler(event)
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
