// Package loyalty keeps the per-customer points ledger.
package loyalty

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNonPositive = errors.New("loyalty: amount must be positive")

type Entry struct {
	Delta  int       `json:"delta"`
	Reason string    `json:"reason"`
	Date   time.Time `json:"date"`
}

// Account is keyed by the customer's social handle. History is append-only
// and Points always equals the sum of its deltas.
type Account struct {
	Handle     string  `json:"handle"`
	Points     int     `json:"points"`
	OrderCount int     `json:"order_count"`
	History    []Entry `json:"history"`
}

func NewAccount(handle string) Account {
	return Account{Handle: NormalizeHandle(handle)}
}

func (a *Account) Credit(amount int, reason string, at time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit %d", ErrNonPositive, amount)
	}
	a.Points += amount
	a.History = append(a.History, Entry{Delta: amount, Reason: reason, Date: at.UTC()})
	return nil
}

// Debit removes up to amount points; the balance stops at zero and the
// recorded delta is what was actually removed. It returns that delta.
func (a *Account) Debit(amount int, reason string, at time.Time) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit %d", ErrNonPositive, amount)
	}
	taken := min(amount, a.Points)
	a.Points -= taken
	a.History = append(a.History, Entry{Delta: -taken, Reason: reason, Date: at.UTC()})
	return taken, nil
}

// Balance recomputes the balance from the history.
func (a Account) Balance() int {
	sum := 0
	for _, e := range a.History {
		sum += e.Delta
	}
	return max(sum, 0)
}

func (a Account) Tier() Tier { return TierFor(a.Points) }

// NormalizeHandle gives the ledger key for a social handle.
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

type Tier struct {
	Name     string          `json:"name"`
	Min      int             `json:"min"`
	Discount decimal.Decimal `json:"discount"`
}

var (
	Bronze   = Tier{Name: "Bronze", Min: 0, Discount: decimal.Zero}
	Silver   = Tier{Name: "Silver", Min: 100, Discount: decimal.RequireFromString("0.05")}
	Gold     = Tier{Name: "Gold", Min: 300, Discount: decimal.RequireFromString("0.10")}
	Platinum = Tier{Name: "Platinum", Min: 600, Discount: decimal.RequireFromString("0.15")}
)

var tiers = []Tier{Platinum, Gold, Silver, Bronze}

func TierFor(balance int) Tier {
	for _, t := range tiers {
		if balance >= t.Min {
			return t
		}
	}
	return Bronze
}
