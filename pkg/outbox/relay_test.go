package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	batch  []Event
	sent   []int64
	failed map[int64]string
}

func (s *fakeStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	b := s.batch
	s.batch = nil
	return b, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, ids []int64) error {
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id int64, errMsg string, maxRetries int) error {
	if s.failed == nil {
		s.failed = map[int64]string{}
	}
	s.failed[id] = errMsg
	return nil
}

func (s *fakeStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	return nil
}

type fakeProducer struct {
	msgs   []kafka.Message
	failOn string
}

func (p *fakeProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker unavailable")
		}
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestDispatcherMessageCarriesHeaders(t *testing.T) {
	d := NewDispatcher(discard(), &fakeProducer{}, "boutique.events")
	msg := d.Message(Event{
		AggregateType: "quote",
		AggregateID:   "Q-1234",
		Type:          "QuoteSubmitted",
		Payload:       []byte(`{}`),
		Headers:       map[string]string{"source": "boutique-service"},
		Traceparent:   "00-abc-def-01",
	})

	assert.Equal(t, "boutique.events", msg.Topic)
	assert.Equal(t, "Q-1234", string(msg.Key))
	assert.Equal(t, "QuoteSubmitted", header(msg, HeaderEventType))
	assert.Equal(t, "quote", header(msg, HeaderAggregateType))
	assert.Equal(t, "00-abc-def-01", header(msg, HeaderTraceparent))
	assert.Equal(t, "boutique-service", header(msg, "source"))
}

func TestRelayTickMarksSentAndFailed(t *testing.T) {
	store := &fakeStore{batch: []Event{
		{ID: 1, AggregateID: "Q-1", Type: "QuoteSubmitted"},
		{ID: 2, AggregateID: "Q-2", Type: "QuoteSubmitted"},
		{ID: 3, AggregateID: "Q-3", Type: "PaymentConfirmed"},
	}}
	producer := &fakeProducer{failOn: "Q-2"}
	relay := NewRelay(discard(), store, NewDispatcher(discard(), producer, "t"), "relay-1")

	n, err := relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Contains(t, store.failed, int64(2))
	assert.Len(t, producer.msgs, 2)
}

func TestRelayTickEmptyBatch(t *testing.T) {
	store := &fakeStore{}
	relay := NewRelay(discard(), store, NewDispatcher(discard(), &fakeProducer{}, "t"), "relay-1")

	n, err := relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.sent)
}

func TestRelayOptions(t *testing.T) {
	r := NewRelay(discard(), &fakeStore{}, nil, "r", WithBatchSize(7), WithInterval(time.Second), WithMaxRetries(0))
	assert.Equal(t, 7, r.batchSize)
	assert.Equal(t, time.Second, r.interval)
	assert.Equal(t, 5, r.maxRetries)
}
