// Package kafka feeds lifecycle events from the outbox topic to the
// notification formatter and drops the rendered files for the shop owner.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/boutique-orders/internal/notify"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/pkg/outbox"
	"github.com/dmehra2102/boutique-orders/pkg/tracing"
)

// Deduper remembers which records were already handled.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	log      *slog.Logger
	reader   Reader
	format   notify.Formatter
	idem     Deduper
	dir      string
	tracer   trace.Tracer
	retryMin time.Duration
	retryMax time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, format notify.Formatter, idem Deduper, dir string) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newConsumer(log, r, format, idem, dir)
}

func newConsumer(log *slog.Logger, r Reader, format notify.Formatter, idem Deduper, dir string) *Consumer {
	return &Consumer{
		log:      log,
		reader:   r,
		format:   format,
		idem:     idem,
		dir:      dir,
		tracer:   otel.Tracer("notifier-consumer"),
		retryMin: 500 * time.Millisecond,
		retryMax: 30 * time.Second,
	}
}

// Run consumes until ctx is done. A record that fails is retried in place
// with backoff; the next record is not fetched until it succeeds, so the
// committed offset never passes an unhandled notification.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.process(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	wait := c.retryMin
	for attempt := 1; ; attempt++ {
		err := c.attempt(ctx, msg)
		if err == nil {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				// A later commit covers this offset too.
				c.log.Warn("commit failed", "partition", msg.Partition, "offset", msg.Offset, "err", err)
			}
			return nil
		}
		c.log.Error("notification failed, retrying",
			"key", string(msg.Key), "offset", msg.Offset, "attempt", attempt, "backoff", wait, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, c.retryMax)
	}
}

func (c *Consumer) attempt(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}
	if err := c.handle(ctx, msg); err != nil {
		if fErr := c.idem.Forget(ctx, key); fErr != nil {
			c.log.Warn("idempotency release failed", "key", key, "err", fErr)
		}
		return err
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	eventType := headerValue(msg.Headers, outbox.HeaderEventType)
	msgCtx := tracing.ExtractMessage(ctx, msg)
	_, span := c.tracer.Start(msgCtx, "Consume"+eventType)
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", string(msg.Key)))

	switch eventType {
	case domain.EventQuoteSubmitted:
		var ev domain.QuoteSubmitted
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			// A record that cannot be decoded will never succeed; drop it.
			c.log.Error("unmarshal failed", "type", eventType, "err", err)
			return nil
		}
		if err := c.write(ev.Quote); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		c.log.Info("owner notification written", "quote_id", ev.Quote.ID)
	case domain.EventPaymentConfirmed, domain.EventQuoteCancelled:
		c.log.Info("quote event", "type", eventType, "quote_id", string(msg.Key))
	default:
		c.log.Debug("event ignored", "type", eventType, "key", string(msg.Key))
	}
	return nil
}

// write stores <id>.txt with the subject, the mailto link and the summary,
// and <id>.pdf beside it.
func (c *Consumer) write(q domain.Quote) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	text := fmt.Sprintf("Objet : %s\nLien : %s\n\n%s", c.format.Subject(q), c.format.MailtoLink(q), c.format.Summary(q))
	if err := writeFile(filepath.Join(c.dir, q.ID+".txt"), []byte(text)); err != nil {
		return err
	}
	pdf, err := c.format.PDF(q)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(c.dir, q.ID+".pdf"), pdf)
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
