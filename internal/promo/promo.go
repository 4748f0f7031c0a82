// Package promo validates promo codes and computes their discount.
package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

const Collection = "promos"

var (
	ErrPromoInvalid = errors.New("promo code invalid")
	ErrPromoExpired = errors.New("promo code expired")
)

type Type string

const (
	TypePercent Type = "percent"
	TypeFixed   Type = "fixed"
)

// Code is reference data. Value is a percentage (10 = 10 %) for TypePercent
// and an amount in euros for TypeFixed. Expiry is the last valid day.
type Code struct {
	Code   string          `json:"code"`
	Type   Type            `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Expiry string          `json:"expiry"`
}

const dateLayout = "2006-01-02"

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidOn reports whether today is on or before the expiry day.
func (c Code) ValidOn(today time.Time) (bool, error) {
	exp, err := time.Parse(dateLayout, c.Expiry)
	if err != nil {
		return false, fmt.Errorf("promo %s: bad expiry %q: %w", c.Code, c.Expiry, err)
	}
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !day.After(exp), nil
}

// Discount is the deduction on subtotal, rounded to the cent, never more
// than the subtotal and never negative.
func (c Code) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || !c.Value.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch c.Type {
	case TypePercent:
		d = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	case TypeFixed:
		d = c.Value.Round(2)
	default:
		return decimal.Zero
	}
	return decimal.Min(d, subtotal)
}

func (c Code) validate() error {
	if Normalize(c.Code) == "" {
		return errors.New("promo: empty code")
	}
	if c.Type != TypePercent && c.Type != TypeFixed {
		return fmt.Errorf("promo %s: unknown type %q", c.Code, c.Type)
	}
	if c.Value.IsNegative() || (c.Type == TypePercent && c.Value.GreaterThan(decimal.NewFromInt(100))) {
		return fmt.Errorf("promo %s: value %s out of range", c.Code, c.Value)
	}
	if _, err := time.Parse(dateLayout, c.Expiry); err != nil {
		return fmt.Errorf("promo %s: bad expiry %q", c.Code, c.Expiry)
	}
	return nil
}

// Lookup finds a code case-insensitively and checks it is still valid today.
func Lookup(ctx context.Context, r docstore.Reader, code string, today time.Time) (Code, error) {
	key := Normalize(code)
	if key == "" {
		return Code{}, ErrPromoInvalid
	}
	var c Code
	err := r.Get(ctx, Collection, key, &c)
	if errors.Is(err, docstore.ErrAbsent) {
		return Code{}, fmt.Errorf("%w: %s", ErrPromoInvalid, key)
	}
	if err != nil {
		return Code{}, fmt.Errorf("lookup promo %s: %w", key, err)
	}
	ok, err := c.ValidOn(today)
	if err != nil {
		return Code{}, err
	}
	if !ok {
		return Code{}, fmt.Errorf("%w: %s ended %s", ErrPromoExpired, key, c.Expiry)
	}
	return c, nil
}

// Defaults are the codes the shop runs when no seed file is given.
func Defaults() []Code {
	return []Code{
		{Code: "BIENVENUE10", Type: TypePercent, Value: decimal.NewFromInt(10), Expiry: "2099-12-31"},
		{Code: "FETEDESMERES", Type: TypePercent, Value: decimal.NewFromInt(15), Expiry: "2026-05-31"},
		{Code: "CADEAU5", Type: TypeFixed, Value: decimal.NewFromInt(5), Expiry: "2099-12-31"},
	}
}

// LoadSeedFile reads a JSON array of codes.
func LoadSeedFile(path string) ([]Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var codes []Code
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("promo seed %s: %w", path, err)
	}
	return codes, nil
}

// Seed writes codes into the store, replacing existing entries.
func Seed(ctx context.Context, docs docstore.Store, codes []Code) error {
	for _, c := range codes {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return docs.Update(ctx, func(tx docstore.Tx) error {
		for _, c := range codes {
			c.Code = Normalize(c.Code)
			if err := tx.Put(ctx, Collection, c.Code, c); err != nil {
				return err
			}
		}
		return nil
	})
}
