package notify

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/catalog"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/internal/promo"
)

var created = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func sampleQuote(mode domain.DeliveryMode) domain.Quote {
	items := []cart.LineItem{
		cart.NewLineItem(catalog.Bouquet{Stems: 30, Color: "red", AddOns: []catalog.SelectedAddOn{{ID: catalog.AddOnCard, Note: "Bon anniversaire"}}}),
		cart.NewLineItem(catalog.ChocolateBox{Size: catalog.BoxSmall, Flavor: "milk"}),
	}
	code := promo.Code{Code: "BIENVENUE10", Type: promo.TypePercent, Value: decimal.NewFromInt(10), Expiry: "2099-12-31"}
	totals := domain.DefaultPolicy().Compute(domain.Pricing{
		Subtotal: cart.New(items...).Total(),
		Promo:    &code,
		Account:  loyalty.NewAccount("new_user"),
		Mode:     mode,
	})
	return domain.NewQuote(
		domain.Customer{Name: "Inès Martin", Phone: "0612345678", Instagram: "new_user", Address: "12 rue des Lilas, Lyon"},
		items,
		domain.Delivery{Mode: mode, Date: "2026-10-20", TimeSlot: "14:00-16:00"},
		totals, 1, created,
	)
}

func TestSummaryPrintsBookingLinkForLashServices(t *testing.T) {
	asOf := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	items := []cart.LineItem{
		cart.NewLineItem(catalog.LashService{Style: catalog.LashClassic, Refill: true, LastVisit: asOf.AddDate(0, 0, -7), AsOf: asOf}),
		cart.NewLineItem(catalog.LashService{Style: catalog.LashRussian, AsOf: asOf}),
		cart.NewLineItem(catalog.Bouquet{Stems: 10, Color: "red"}),
	}
	totals := domain.DefaultPolicy().Compute(domain.Pricing{Subtotal: cart.New(items...).Total(), Account: loyalty.NewAccount("new_user"), Mode: domain.ModePickup})
	q := domain.NewQuote(
		domain.Customer{Name: "Inès", Phone: "0612345678", Instagram: "new_user"},
		items,
		domain.Delivery{Mode: domain.ModePickup, Date: "2026-10-20", TimeSlot: "10:00-12:00"},
		totals, 1, created,
	)

	f := NewFormatter("Atelier Rose", "owner@example.com").WithBooking("https://booking.example.com/pose", "https://booking.example.com/remplissage")
	s := f.Summary(q)
	assert.Contains(t, s, "Réservation : https://booking.example.com/remplissage")
	assert.Contains(t, s, "Réservation : https://booking.example.com/pose")
	assert.Equal(t, 2, strings.Count(s, "Réservation :"), "bouquets have no booking link")

	assert.NotContains(t, NewFormatter("Atelier Rose", "owner@example.com").Summary(q), "Réservation :")
	assert.NotContains(t, NewFormatter("Atelier Rose", "owner@example.com").WithBooking("", "https://booking.example.com/r").Summary(q), "booking.example.com/pose")
}

func TestSummaryBlocks(t *testing.T) {
	f := NewFormatter("Atelier Rose", "owner@example.com")
	q := sampleQuote(domain.ModeDelivery)
	s := f.Summary(q)

	for _, want := range []string{
		"Demande de devis " + q.ID,
		"Nom : Inès Martin",
		"Instagram : @new_user",
		"Adresse : 12 rue des Lilas, Lyon",
		"1. Bouquet 30 roses - 48.00 €",
		"Bon anniversaire",
		"2. Petit coffret de chocolats (9 pièces) - 15.00 €",
		"Mode : Livraison",
		"Créneau : 14:00-16:00",
		"Sous-total : 63.00 €",
		"Code promo BIENVENUE10 : -6.30 €",
		"Frais de livraison : 5.00 €",
		"Total : 61.70 €",
		"Acompte (40 %) : 24.68 €",
		"Points fidélité à créditer après paiement : 61",
	} {
		assert.Contains(t, s, want)
	}
	assert.Equal(t, s, f.Summary(q))
}

func TestSummaryPickupHasNoAddress(t *testing.T) {
	s := NewFormatter("Atelier Rose", "owner@example.com").Summary(sampleQuote(domain.ModePickup))
	assert.NotContains(t, s, "Adresse")
	assert.NotContains(t, s, "Frais de livraison")
	assert.Contains(t, s, "Mode : Retrait en boutique")
}

func TestSummaryPrintsStoredDeposit(t *testing.T) {
	q := sampleQuote(domain.ModePickup)
	q.Totals.Deposit = decimal.RequireFromString("12.34")
	assert.Contains(t, NewFormatter("Atelier Rose", "o@example.com").Summary(q), "Acompte (40 %) : 12.34 €")
}

func TestMailtoLink(t *testing.T) {
	f := NewFormatter("Atelier Rose", "owner@example.com")
	q := sampleQuote(domain.ModePickup)
	link := f.MailtoLink(q)

	require.True(t, strings.HasPrefix(link, "mailto:owner@example.com?subject="))
	assert.NotContains(t, link, "+")
	assert.NotContains(t, link, " ")
	assert.Contains(t, link, "%20")

	u, err := url.Parse(link)
	require.NoError(t, err)
	vals, err := url.ParseQuery(u.RawQuery)
	require.NoError(t, err)
	assert.Equal(t, f.Subject(q), vals.Get("subject"))
	assert.Equal(t, f.Summary(q), vals.Get("body"))
}

func TestPDF(t *testing.T) {
	data, err := NewFormatter("Atelier Rose", "owner@example.com").PDF(sampleQuote(domain.ModeDelivery))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.True(t, bytes.Contains(data, []byte("%%EOF")))
}
