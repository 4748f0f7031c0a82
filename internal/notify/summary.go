// Package notify renders the message the shop owner receives for a quote.
// The plain-text summary is the single rendering; the mailto link and the
// PDF both wrap the same text.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/boutique-orders/internal/catalog"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
)

type Formatter struct {
	ShopName   string
	OwnerEmail string
	// Booking maps an appointment kind to the page where the customer picks
	// a slot. Kinds without a link print nothing.
	Booking map[catalog.Appointment]string
}

func NewFormatter(shopName, ownerEmail string) Formatter {
	return Formatter{ShopName: shopName, OwnerEmail: ownerEmail}
}

// WithBooking returns a copy of f that prints booking links for lash
// services; empty URLs are skipped.
func (f Formatter) WithBooking(fullSetURL, refillURL string) Formatter {
	f.Booking = map[catalog.Appointment]string{}
	if fullSetURL != "" {
		f.Booking[catalog.AppointmentFullSet] = fullSetURL
	}
	if refillURL != "" {
		f.Booking[catalog.AppointmentRefill] = refillURL
	}
	return f
}

func money(d decimal.Decimal) string { return d.StringFixed(2) + " €" }

var modeLabels = map[domain.DeliveryMode]string{
	domain.ModePickup:   "Retrait en boutique",
	domain.ModeDelivery: "Livraison",
}

func (f Formatter) Subject(q domain.Quote) string {
	return fmt.Sprintf("Devis %s - %s - %s", q.ID, strings.TrimSpace(q.Customer.Name), money(q.Totals.Total))
}

// Summary is deterministic for a given quote. Amounts, the deposit included,
// are printed as stored and never recomputed.
func (f Formatter) Summary(q domain.Quote) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("Demande de devis %s", q.ID)
	line("Reçue le %s", q.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	line("")

	line("CLIENT")
	line("Nom : %s", q.Customer.Name)
	line("Téléphone : %s", q.Customer.Phone)
	line("Instagram : @%s", q.Handle())
	if q.Delivery.Mode == domain.ModeDelivery {
		line("Adresse : %s", q.Customer.Address)
	}
	line("")

	line("ARTICLES")
	for i, it := range q.Items {
		line("%d. %s - %s", i+1, it.Title, money(it.Price))
		if it.Description != "" {
			line("   %s", it.Description)
		}
		if link := f.Booking[it.Appointment]; it.Appointment != "" && link != "" {
			line("   Réservation : %s", link)
		}
	}
	line("")

	line("LIVRAISON")
	mode, ok := modeLabels[q.Delivery.Mode]
	if !ok {
		mode = string(q.Delivery.Mode)
	}
	line("Mode : %s", mode)
	line("Date : %s", q.Delivery.Date)
	line("Créneau : %s", q.Delivery.TimeSlot)
	line("")

	t := q.Totals
	line("MONTANTS")
	line("Sous-total : %s", money(t.Subtotal))
	if t.PromoDiscount.IsPositive() {
		line("Code promo %s : -%s", t.PromoCode, money(t.PromoDiscount))
	}
	if t.LoyaltyDiscount.IsPositive() {
		if t.PointsRedeemed > 0 {
			line("Points fidélité (%d pts) : -%s", t.PointsRedeemed, money(t.LoyaltyDiscount))
		} else {
			line("Remise fidélité %s : -%s", t.Tier, money(t.LoyaltyDiscount))
		}
	}
	if t.DeliveryFee.IsPositive() {
		line("Frais de livraison : %s", money(t.DeliveryFee))
	}
	line("Total : %s", money(t.Total))
	line("Acompte (%s %%) : %s", t.DepositFraction.Mul(decimal.NewFromInt(100)).String(), money(t.Deposit))
	line("")
	line("Points fidélité à créditer après paiement : %d", q.LoyaltyPointsPending)
	return b.String()
}

// MailtoLink opens the owner's mail client with the summary pre-filled.
// Spaces are encoded as %20; mail clients do not decode "+".
func (f Formatter) MailtoLink(q domain.Quote) string {
	return "mailto:" + f.OwnerEmail +
		"?subject=" + escape(f.Subject(q)) +
		"&body=" + escape(f.Summary(q))
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
