package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

const (
	Collection = "loyalty"

	EventAdjusted = "LoyaltyAdjusted"
)

type Adjusted struct {
	Handle  string    `json:"handle"`
	Delta   int       `json:"delta"`
	Balance int       `json:"balance"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// Load returns the stored account, or a fresh one when the handle has none.
func Load(ctx context.Context, r docstore.Reader, handle string) (Account, error) {
	key := NormalizeHandle(handle)
	var a Account
	err := r.Get(ctx, Collection, key, &a)
	if errors.Is(err, docstore.ErrAbsent) {
		return NewAccount(key), nil
	}
	if err != nil {
		return Account{}, fmt.Errorf("load loyalty %s: %w", key, err)
	}
	return a, nil
}

func Save(ctx context.Context, tx docstore.Tx, a Account) error {
	return tx.Put(ctx, Collection, NormalizeHandle(a.Handle), a)
}

// Emit records an adjustment in the outbox of tx.
func Emit(ctx context.Context, tx docstore.Tx, ev Adjusted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return tx.Emit(ctx, docstore.Event{
		AggregateType: "loyalty",
		AggregateID:   ev.Handle,
		Type:          EventAdjusted,
		Payload:       payload,
	})
}

// Ledger applies manual corrections from the admin console.
type Ledger struct {
	log  *slog.Logger
	docs docstore.Store
	now  func() time.Time
}

func NewLedger(log *slog.Logger, docs docstore.Store) *Ledger {
	return &Ledger{log: log, docs: docs, now: time.Now}
}

func (l *Ledger) Get(ctx context.Context, handle string) (Account, error) {
	return Load(ctx, l.docs, handle)
}

func (l *Ledger) Credit(ctx context.Context, handle string, amount int, reason string) (Account, error) {
	return l.adjust(ctx, handle, reason, func(a *Account, at time.Time) (int, error) {
		if err := a.Credit(amount, reason, at); err != nil {
			return 0, err
		}
		return amount, nil
	})
}

func (l *Ledger) Debit(ctx context.Context, handle string, amount int, reason string) (Account, error) {
	return l.adjust(ctx, handle, reason, func(a *Account, at time.Time) (int, error) {
		taken, err := a.Debit(amount, reason, at)
		return -taken, err
	})
}

func (l *Ledger) adjust(ctx context.Context, handle, reason string, apply func(*Account, time.Time) (int, error)) (Account, error) {
	var out Account
	err := l.docs.Update(ctx, func(tx docstore.Tx) error {
		a, err := Load(ctx, tx, handle)
		if err != nil {
			return err
		}
		at := l.now().UTC()
		delta, err := apply(&a, at)
		if err != nil {
			return err
		}
		if err := Save(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return Emit(ctx, tx, Adjusted{Handle: a.Handle, Delta: delta, Balance: a.Points, Reason: reason, At: at})
	})
	if err != nil {
		return Account{}, err
	}
	l.log.Info("loyalty adjusted", "handle", out.Handle, "balance", out.Points, "reason", reason)
	return out, nil
}
