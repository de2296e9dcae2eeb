package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderCreated          = "order.created"
	TypePaymentStatusChanged  = "order.payment_status_changed"
	TypeDeliveryStatusChanged = "order.delivery_status_changed"
	TypeInvoiceGenerated      = "order.invoice_generated"
	TypeReviewRequested       = "order.review_requested"
)

type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OrderID    int64          `json:"order_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(eventType string, orderID int64, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher emits order events. Publishing is best effort: callers log a
// failure and carry on, since the order row is already the source of truth.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewPublisher returns a Kafka publisher, or Nop when no brokers are set.
func NewPublisher(brokersCSV, topic string) Publisher {
	brokers := ParseBrokers(brokersCSV)
	if len(brokers) == 0 {
		return Nop{}
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

// Publish keys messages by order id so one order's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: data,
		Time:  e.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Emit publishes e and logs instead of returning a failure.
func Emit(ctx context.Context, p Publisher, log *slog.Logger, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("publish event failed", "type", e.Type, "order_id", e.OrderID, "error", err)
	}
}
