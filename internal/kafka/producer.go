package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-storefront/internal/checkout"
	"ms-storefront/internal/logger"
)

const EventOrderPlaced = "order.placed"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEvent is the message body on the order topic.
type OrderEvent struct {
	Type  string          `json:"type"`
	Order *checkout.Order `json:"order"`
}

// OrderPublisher places orders by streaming them to Kafka for the order service.
type OrderPublisher struct {
	Writer MessageWriter
	topic  string
	logger *logger.Logger
}

func NewOrderPublisher(brokers []string, topic string, log *logger.Logger) *OrderPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &OrderPublisher{Writer: writer, topic: topic, logger: log}
}

// PlaceOrder publishes the order keyed by its id and returns the id as the reference.
func (p *OrderPublisher) PlaceOrder(ctx context.Context, order *checkout.Order) (string, error) {
	msgBytes, err := json.Marshal(OrderEvent{Type: EventOrderPlaced, Order: order})
	if err != nil {
		return "", fmt.Errorf("failed to encode order event: %w", err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order %s to %s: %v", order.ID, p.topic, err))
		return "", fmt.Errorf("failed to publish order: %w", err)
	}

	p.logger.LogKafka("PUBLISH", p.topic, fmt.Sprintf("order %s (%d items)", order.ID, len(order.Items)))
	return order.ID, nil
}

func (p *OrderPublisher) Close() error {
	return p.Writer.Close()
}
