package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AggregateType = "quote"

	EventQuoteSubmitted   = "QuoteSubmitted"
	EventPaymentConfirmed = "PaymentConfirmed"
	EventQuoteCancelled   = "QuoteCancelled"
)

// QuoteSubmitted carries the whole quote so the notifier can render it
// without reading the store.
type QuoteSubmitted struct {
	Quote Quote `json:"quote"`
}

type PaymentConfirmed struct {
	QuoteID        string          `json:"quote_id"`
	Handle         string          `json:"handle"`
	Total          decimal.Decimal `json:"total"`
	PointsCredited int             `json:"points_credited"`
	PointsRedeemed int             `json:"points_redeemed"`
	PaidAt         time.Time       `json:"paid_at"`
}

type QuoteCancelled struct {
	QuoteID     string    `json:"quote_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}
