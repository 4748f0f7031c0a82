// Package analytics keeps the shop's monotonic counters.
package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

const (
	Collection = "analytics"
	key        = "counters"
)

// Counters only ever grow. They are bumped at page load, quote submission
// and payment confirmation.
type Counters struct {
	Visits       int64            `json:"visits"`
	QuotesIssued int64            `json:"quotes_issued"`
	OrdersPaid   int64            `json:"orders_paid"`
	RevenueTotal decimal.Decimal  `json:"revenue_total"`
	ProductSales map[string]int64 `json:"product_sales"`
}

func (c *Counters) QuoteIssued() { c.QuotesIssued++ }

// OrderPaid records a confirmed order and one sale per line item product.
func (c *Counters) OrderPaid(total decimal.Decimal, products []string) {
	c.OrdersPaid++
	if total.IsPositive() {
		c.RevenueTotal = c.RevenueTotal.Add(total)
	}
	if c.ProductSales == nil {
		c.ProductSales = map[string]int64{}
	}
	for _, p := range products {
		c.ProductSales[p]++
	}
}

func Load(ctx context.Context, r docstore.Reader) (Counters, error) {
	var c Counters
	err := r.Get(ctx, Collection, key, &c)
	if errors.Is(err, docstore.ErrAbsent) {
		return Counters{ProductSales: map[string]int64{}}, nil
	}
	if err != nil {
		return Counters{}, fmt.Errorf("load analytics: %w", err)
	}
	if c.ProductSales == nil {
		c.ProductSales = map[string]int64{}
	}
	return c, nil
}

func Save(ctx context.Context, tx docstore.Tx, c Counters) error {
	return tx.Put(ctx, Collection, key, c)
}

// Update loads the counters inside tx, applies fn and writes them back.
func Update(ctx context.Context, tx docstore.Tx, fn func(*Counters)) error {
	c, err := Load(ctx, tx)
	if err != nil {
		return err
	}
	fn(&c)
	return Save(ctx, tx, c)
}

type Tracker struct {
	docs docstore.Store
}

func NewTracker(docs docstore.Store) *Tracker {
	return &Tracker{docs: docs}
}

func (t *Tracker) RecordVisit(ctx context.Context) error {
	return t.docs.Update(ctx, func(tx docstore.Tx) error {
		return Update(ctx, tx, func(c *Counters) { c.Visits++ })
	})
}

func (t *Tracker) Snapshot(ctx context.Context) (Counters, error) {
	return Load(ctx, t.docs)
}
