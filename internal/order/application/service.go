package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/boutique-orders/internal/analytics"
	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/internal/promo"
	"github.com/dmehra2102/boutique-orders/internal/validation"
	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

// Service runs the quote lifecycle. Every operation is one store
// transaction. On postgres the quote, the loyalty account, the counters and
// the outbox event are written together or not at all; the jsonfile store
// stages every collection before renaming any, but a crash between two
// renames can leave an operation half applied.
type Service struct {
	log      *slog.Logger
	docs     docstore.Store
	policy   domain.Policy
	notifier Notifier
	now      func() time.Time
}

func NewService(log *slog.Logger, docs docstore.Store, policy domain.Policy, notifier Notifier) *Service {
	return &Service{log: log, docs: docs, policy: policy, notifier: notifier, now: time.Now}
}

type SubmitRequest struct {
	Items     []cart.LineItem
	Customer  domain.Customer
	Delivery  domain.Delivery
	PromoCode string
	Redeem    bool
}

// Preview prices a cart for display before the customer submits it. Nothing
// is written.
func (s *Service) Preview(ctx context.Context, req SubmitRequest) (domain.Totals, error) {
	today := s.now()
	var p *promo.Code
	if strings.TrimSpace(req.PromoCode) != "" {
		code, err := promo.Lookup(ctx, s.docs, req.PromoCode, today)
		if err != nil {
			return domain.Totals{}, err
		}
		p = &code
	}
	account := loyalty.NewAccount(req.Customer.Instagram)
	held := 0
	if req.Customer.Instagram != "" {
		a, err := loyalty.Load(ctx, s.docs, req.Customer.Instagram)
		if err != nil {
			return domain.Totals{}, err
		}
		account = a
		if held, err = heldPoints(ctx, s.docs, loyalty.NormalizeHandle(req.Customer.Instagram)); err != nil {
			return domain.Totals{}, err
		}
	}
	return s.policy.Compute(domain.Pricing{
		Subtotal: subtotal(req.Items),
		Promo:    p,
		Account:  account,
		Held:     held,
		Redeem:   req.Redeem,
		Mode:     req.Delivery.Mode,
	}), nil
}

// SubmitQuote validates the checkout form, prices the cart and stores a
// pending quote. Loyalty points are not credited here.
func (s *Service) SubmitQuote(ctx context.Context, req SubmitRequest) (Submission, error) {
	if len(req.Items) == 0 {
		return Submission{}, domain.ErrEmptyCart
	}
	now := s.now()
	customer := req.Customer
	if err := domain.Validate(&customer, req.Delivery, now); err != nil {
		return Submission{}, err
	}

	var q domain.Quote
	err := s.docs.Update(ctx, func(tx docstore.Tx) error {
		var p *promo.Code
		if strings.TrimSpace(req.PromoCode) != "" {
			code, err := promo.Lookup(ctx, tx, req.PromoCode, now)
			if err != nil {
				return err
			}
			p = &code
		}
		// The account read locks the handle, so two submits of one customer
		// see each other's held points.
		account, err := loyalty.Load(ctx, tx, customer.Instagram)
		if err != nil {
			return err
		}
		held, err := heldPoints(ctx, tx, loyalty.NormalizeHandle(account.Handle))
		if err != nil {
			return err
		}

		totals := s.policy.Compute(domain.Pricing{
			Subtotal: subtotal(req.Items),
			Promo:    p,
			Account:  account,
			Held:     held,
			Redeem:   req.Redeem,
			Mode:     req.Delivery.Mode,
		})
		q = domain.NewQuote(customer, req.Items, req.Delivery, totals, docstore.SchemaVersion, now)

		if err := tx.Insert(ctx, QuotesCollection, q.ID, q); err != nil {
			return fmt.Errorf("store quote %s: %w", q.ID, err)
		}
		if err := analytics.Update(ctx, tx, func(c *analytics.Counters) { c.QuoteIssued() }); err != nil {
			return err
		}
		return emit(ctx, tx, q.ID, domain.EventQuoteSubmitted, domain.QuoteSubmitted{Quote: q})
	})
	if err != nil {
		return Submission{}, err
	}

	s.log.Info("quote submitted", "quote_id", q.ID, "handle", q.Handle(), "total", q.Totals.Total.StringFixed(2))
	return Submission{
		Quote:   q,
		Subject: s.notifier.Subject(q),
		Body:    s.notifier.Summary(q),
		Mailto:  s.notifier.MailtoLink(q),
	}, nil
}

// ConfirmPayment marks a pending quote paid once the owner has seen the
// transfer, credits floor(total) points and settles any redeemed points.
func (s *Service) ConfirmPayment(ctx context.Context, id string) (domain.Quote, error) {
	var q domain.Quote
	err := s.docs.Update(ctx, func(tx docstore.Tx) error {
		var err error
		if q, err = loadQuote(ctx, tx, id); err != nil {
			return err
		}
		at := s.now()
		if err := q.MarkPaid(at); err != nil {
			return err
		}

		account, err := loyalty.Load(ctx, tx, q.Handle())
		if err != nil {
			return err
		}
		// Redeemed points come out of the balance the quote was priced on,
		// before this order's own points are added.
		redeemed := 0
		if q.Totals.PointsRedeemed > 0 {
			if redeemed, err = account.Debit(q.Totals.PointsRedeemed, "redemption:"+q.ID, at); err != nil {
				return err
			}
			if redeemed < q.Totals.PointsRedeemed {
				s.log.Warn("redemption exceeded balance", "quote_id", q.ID, "claimed", q.Totals.PointsRedeemed, "debited", redeemed)
			}
		}
		if q.LoyaltyPointsPending > 0 {
			if err := account.Credit(q.LoyaltyPointsPending, "order:"+q.ID, at); err != nil {
				return err
			}
		}
		account.OrderCount++
		if err := loyalty.Save(ctx, tx, account); err != nil {
			return err
		}

		if err := analytics.Update(ctx, tx, func(c *analytics.Counters) {
			c.OrderPaid(q.Totals.Total, q.Products())
		}); err != nil {
			return err
		}
		if err := tx.Put(ctx, QuotesCollection, q.ID, q); err != nil {
			return err
		}
		return emit(ctx, tx, q.ID, domain.EventPaymentConfirmed, domain.PaymentConfirmed{
			QuoteID:        q.ID,
			Handle:         account.Handle,
			Total:          q.Totals.Total,
			PointsCredited: q.LoyaltyPointsPending,
			PointsRedeemed: redeemed,
			PaidAt:         at.UTC(),
		})
	})
	if errors.Is(err, domain.ErrInvalidTransition) {
		s.log.Warn("payment confirmation ignored", "quote_id", id, "err", err)
		return domain.Quote{}, err
	}
	if err != nil {
		return domain.Quote{}, err
	}
	s.log.Info("payment confirmed", "quote_id", q.ID, "handle", q.Handle(), "points", q.LoyaltyPointsPending)
	return q, nil
}

func (s *Service) CancelQuote(ctx context.Context, id, reason string) (domain.Quote, error) {
	var q domain.Quote
	err := s.docs.Update(ctx, func(tx docstore.Tx) error {
		var err error
		if q, err = loadQuote(ctx, tx, id); err != nil {
			return err
		}
		at := s.now()
		if err := q.Cancel(reason, at); err != nil {
			return err
		}
		if err := tx.Put(ctx, QuotesCollection, q.ID, q); err != nil {
			return err
		}
		return emit(ctx, tx, q.ID, domain.EventQuoteCancelled, domain.QuoteCancelled{
			QuoteID:     q.ID,
			Reason:      q.CancelReason,
			CancelledAt: at.UTC(),
		})
	})
	if errors.Is(err, domain.ErrInvalidTransition) {
		s.log.Warn("cancellation ignored", "quote_id", id, "err", err)
		return domain.Quote{}, err
	}
	if err != nil {
		return domain.Quote{}, err
	}
	s.log.Info("quote cancelled", "quote_id", q.ID, "reason", q.CancelReason)
	return q, nil
}

func (s *Service) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	return loadQuote(ctx, s.docs, strings.TrimSpace(id))
}

// ListQuotes returns quotes oldest first, optionally only those in status.
func (s *Service) ListQuotes(ctx context.Context, status domain.Status) ([]domain.Quote, error) {
	if status != "" && !status.Valid() {
		return nil, &validation.Error{Field: "status", Err: validation.ErrInvalidChoice}
	}
	var out []domain.Quote
	err := s.docs.List(ctx, QuotesCollection, func(key string, raw []byte) error {
		var q domain.Quote
		if err := json.Unmarshal(raw, &q); err != nil {
			return &docstore.PersistenceError{Op: "decode", Collection: QuotesCollection, Key: key, Err: err}
		}
		if status == "" || q.Status == status {
			out = append(out, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func subtotal(items []cart.LineItem) decimal.Decimal {
	return cart.New(items...).Total()
}
