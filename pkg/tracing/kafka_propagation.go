package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const TraceparentHeader = "traceparent"

// MessageCarrier exposes the headers of a Kafka message to the OTel
// propagator. Set replaces a header that is already present.
type MessageCarrier struct {
	Msg *kafka.Message
}

var _ propagation.TextMapCarrier = MessageCarrier{}

func (c MessageCarrier) Get(key string) string {
	for _, h := range c.Msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c MessageCarrier) Set(key, value string) {
	for i, h := range c.Msg.Headers {
		if h.Key == key {
			c.Msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.Msg.Headers = append(c.Msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c MessageCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Msg.Headers))
	for _, h := range c.Msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// InjectMessage writes the span context of ctx into msg.
func InjectMessage(ctx context.Context, msg *kafka.Message) {
	otel.GetTextMapPropagator().Inject(ctx, MessageCarrier{Msg: msg})
}

// ExtractMessage returns ctx carrying the remote span context found in msg.
func ExtractMessage(ctx context.Context, msg kafka.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, MessageCarrier{Msg: &msg})
}
