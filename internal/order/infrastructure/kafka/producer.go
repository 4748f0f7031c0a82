package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns the producer the outbox relay ships quote events with.
// Messages are balanced by key so all events of one quote stay on one
// partition and keep their order.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}
