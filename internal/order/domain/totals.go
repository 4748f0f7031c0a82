package domain

import (
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/promo"
)

// Policy holds the shop's money rules.
type Policy struct {
	DepositFraction decimal.Decimal
	RedemptionCap   decimal.Decimal
	PointValue      decimal.Decimal
	DeliveryFee     decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		DepositFraction: decimal.RequireFromString("0.40"),
		RedemptionCap:   decimal.RequireFromString("0.15"),
		PointValue:      decimal.RequireFromString("0.10"),
		DeliveryFee:     decimal.RequireFromString("5.00"),
	}
}

type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	PromoCode       string          `json:"promo_code,omitempty"`
	PromoDiscount   decimal.Decimal `json:"promo_discount"`
	Tier            string          `json:"tier"`
	LoyaltyDiscount decimal.Decimal `json:"loyalty_discount"`
	PointsRedeemed  int             `json:"points_redeemed"`
	Discount        decimal.Decimal `json:"discount"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	Total           decimal.Decimal `json:"total"`
	DepositFraction decimal.Decimal `json:"deposit_fraction"`
	Deposit         decimal.Decimal `json:"deposit"`
}

// Pricing is what the checkout knows when it prices a cart. Held is the
// number of points already promised to the customer's other pending quotes;
// they cannot be redeemed twice.
type Pricing struct {
	Subtotal decimal.Decimal
	Promo    *promo.Code
	Account  loyalty.Account
	Held     int
	Redeem   bool
	Mode     DeliveryMode
}

// Spendable is the balance left for a new redemption.
func (in Pricing) Spendable() int {
	return max(in.Account.Points-in.Held, 0)
}

// Compute applies the promo code to the subtotal, then one loyalty
// deduction to what is left: the tier percentage, or a points redemption
// capped at RedemptionCap of that remainder. The two loyalty forms never
// stack, and no deduction takes the running amount below zero.
func (p Policy) Compute(in Pricing) Totals {
	t := Totals{
		Subtotal:        in.Subtotal,
		PromoDiscount:   decimal.Zero,
		LoyaltyDiscount: decimal.Zero,
		DeliveryFee:     decimal.Zero,
		DepositFraction: p.DepositFraction,
		Tier:            in.Account.Tier().Name,
	}
	remainder := decimal.Max(in.Subtotal, decimal.Zero)

	if in.Promo != nil {
		t.PromoCode = in.Promo.Code
		t.PromoDiscount = in.Promo.Discount(remainder)
		remainder = remainder.Sub(t.PromoDiscount)
	}

	if spendable := in.Spendable(); in.Redeem && spendable > 0 && p.PointValue.IsPositive() {
		available := p.PointValue.Mul(decimal.NewFromInt(int64(spendable)))
		limit := remainder.Mul(p.RedemptionCap).Truncate(2)
		t.LoyaltyDiscount = decimal.Max(decimal.Min(available, limit), decimal.Zero)
		t.PointsRedeemed = int(t.LoyaltyDiscount.Div(p.PointValue).Ceil().IntPart())
	} else {
		t.LoyaltyDiscount = decimal.Min(remainder.Mul(in.Account.Tier().Discount).Round(2), remainder)
	}
	remainder = remainder.Sub(t.LoyaltyDiscount)

	t.Discount = t.PromoDiscount.Add(t.LoyaltyDiscount)
	if in.Mode == ModeDelivery {
		t.DeliveryFee = p.DeliveryFee
	}
	t.Total = remainder.Add(t.DeliveryFee)
	t.Deposit = t.Total.Mul(p.DepositFraction).Round(2)
	return t
}

// PointsFor is the loyalty credit earned by a paid total: one point per
// whole euro.
func PointsFor(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Floor().IntPart())
}
