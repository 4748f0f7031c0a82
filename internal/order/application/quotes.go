package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/pkg/docstore"
	"github.com/dmehra2102/boutique-orders/pkg/tracing"
)

const QuotesCollection = "quotes"

func loadQuote(ctx context.Context, r docstore.Reader, id string) (domain.Quote, error) {
	var q domain.Quote
	err := r.Get(ctx, QuotesCollection, id, &q)
	if errors.Is(err, docstore.ErrAbsent) {
		return domain.Quote{}, fmt.Errorf("quote %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Quote{}, fmt.Errorf("load quote %s: %w", id, err)
	}
	return q, nil
}

func emit(ctx context.Context, tx docstore.Tx, id, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Emit(ctx, docstore.Event{
		AggregateType: domain.AggregateType,
		AggregateID:   id,
		Type:          eventType,
		Payload:       data,
		Headers:       map[string]string{"source": "boutique-service"},
		Traceparent:   tracing.Traceparent(ctx),
	})
}

// heldPoints sums the points promised to the handle's pending quotes.
func heldPoints(ctx context.Context, r docstore.Reader, handle string) (int, error) {
	held := 0
	err := r.List(ctx, QuotesCollection, func(key string, raw []byte) error {
		var q domain.Quote
		if err := json.Unmarshal(raw, &q); err != nil {
			return &docstore.PersistenceError{Op: "decode", Collection: QuotesCollection, Key: key, Err: err}
		}
		if q.Status == domain.StatusPending && q.Handle() == handle {
			held += q.Totals.PointsRedeemed
		}
		return nil
	})
	return held, err
}
