// internal/events/producer.go
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	skafka "github.com/segmentio/kafka-go"

	"github.com/storeframe/payment-gateway/internal/checkout"
)

// Writer defines the subset of segmentio kafka.Writer we need. This makes
// the producer testable.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Publisher is what the gateways see. A nil *Producer is a valid Publisher
// that drops everything, so event publishing is strictly opt-in.
type Publisher interface {
	PaymentTransitioned(ctx context.Context, p *checkout.Payment)
}

// PaymentEvent is the JSON payload written for every terminal-ish
// transition (completed, authorization_voided, authorization_expired).
type PaymentEvent struct {
	Type       string    `json:"type"` // e.g. "payment.completed"
	PaymentID  string    `json:"payment_id"`
	OrderID    string    `json:"order_id"`
	State      string    `json:"state"`
	RemoteID   string    `json:"remote_id"`
	Currency   string    `json:"currency"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Producer writes payment lifecycle events to kafka. Publishing is
// best-effort telemetry for the host: a broker failure is logged and the
// payment call succeeds anyway.
type Producer struct {
	writer Writer
}

// NewProducer creates a Producer writing to the given broker/topic.
func NewProducer(brokerURL, topic string) *Producer {
	w := &skafka.Writer{
		Addr:     skafka.TCP(brokerURL),
		Topic:    topic,
		Balancer: &skafka.LeastBytes{},
	}
	return &Producer{writer: w}
}

// NewProducerWithWriter allows injecting a test writer.
func NewProducerWithWriter(w Writer) *Producer {
	return &Producer{writer: w}
}

// PaymentTransitioned publishes the payment's new state keyed by payment id.
func (p *Producer) PaymentTransitioned(ctx context.Context, payment *checkout.Payment) {
	if p == nil {
		return
	}
	evt := PaymentEvent{
		Type:       "payment." + string(payment.State),
		PaymentID:  payment.ID.String(),
		OrderID:    payment.OrderID,
		State:      string(payment.State),
		RemoteID:   payment.RemoteID,
		Currency:   payment.Amount.CurrencyCode,
		Amount:     payment.Amount.Number.String(),
		OccurredAt: time.Now().UTC(),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[Events] failed to marshal payment event: %v", err)
		return
	}
	msg := skafka.Message{Key: []byte(payment.ID.String()), Value: b}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("[Events] kafka write error for payment %s: %v", payment.ID, err)
	}
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
