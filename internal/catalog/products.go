package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LashService is an eyelash extension appointment. A refill booked more than
// RefillWindowDays after LastVisit is treated as a full set; AsOf is the
// reference date so the outcome does not depend on the wall clock.
type LashService struct {
	Style     LashStyle
	Refill    bool
	LastVisit time.Time
	AsOf      time.Time
	AddOns    []SelectedAddOn
}

func (l LashService) Kind() Kind { return KindLash }

// DaysSinceLastVisit counts calendar days between LastVisit and AsOf.
func (l LashService) DaysSinceLastVisit() int {
	return daysBetween(l.LastVisit, l.AsOf)
}

// RefillExpired reports a refill request that falls outside the window.
func (l LashService) RefillExpired() bool {
	return l.Refill && l.DaysSinceLastVisit() > RefillWindowDays
}

func (l LashService) isRefill() bool { return l.Refill && !l.RefillExpired() }

// Appointment is the calendar the service is booked in. An expired refill
// is booked as a full set.
func (l LashService) Appointment() Appointment {
	if l.isRefill() {
		return AppointmentRefill
	}
	return AppointmentFullSet
}

func (l LashService) Title() string {
	label := lashTable[l.Style].label
	if l.isRefill() {
		return fmt.Sprintf("Extensions %s - Remplissage", label)
	}
	return fmt.Sprintf("Extensions %s - Pose complète", label)
}

func (l LashService) Description() string {
	parts := []string{"Durée 2h30"}
	if l.isRefill() {
		parts[0] = "Durée 1h30"
	}
	if l.RefillExpired() {
		parts = append(parts, fmt.Sprintf("délai de remplissage dépassé (%d jours), tarif pose complète", l.DaysSinceLastVisit()))
	}
	return joinDescription(parts, addOnLabels(KindLash, l.AddOns))
}

func (l LashService) basePrice() decimal.Decimal {
	p, ok := lashTable[l.Style]
	if !ok {
		panic(fmt.Sprintf("catalog: lash style %q not in table", l.Style))
	}
	if l.isRefill() {
		return p.refill
	}
	return p.fullSet
}

func (l LashService) packagingSurcharge() decimal.Decimal { return decimal.Zero }
func (l LashService) addOns() []SelectedAddOn            { return l.AddOns }

func (l LashService) validate() error {
	if _, ok := lashTable[l.Style]; !ok {
		return fmt.Errorf("%w: lash style %q", ErrUnknownOption, l.Style)
	}
	if l.Refill {
		if l.LastVisit.IsZero() {
			return fmt.Errorf("%w: refill requires the date of the last visit", ErrUnknownOption)
		}
		if l.DaysSinceLastVisit() < 0 {
			return fmt.Errorf("%w: last visit is in the future", ErrUnknownOption)
		}
	}
	return nil
}

// Appointment names the booking calendar of a service that needs a visit.
type Appointment string

const (
	AppointmentFullSet Appointment = "full_set"
	AppointmentRefill  Appointment = "refill"
)

// Booked is implemented by selections the customer has to book a slot for.
type Booked interface {
	Appointment() Appointment
}

// Bouquet is a bouquet of roses priced by stem count.
type Bouquet struct {
	Stems     int
	Color     string
	Packaging Packaging
	AddOns    []SelectedAddOn
}

func (b Bouquet) Kind() Kind { return KindBouquet }

func (b Bouquet) Title() string { return fmt.Sprintf("Bouquet %d roses", b.Stems) }

func (b Bouquet) Description() string {
	parts := []string{
		"Roses " + bouquetColors[b.Color],
		packagingTable[packagingOrDefault(b.Packaging)].label,
	}
	return joinDescription(parts, addOnLabels(KindBouquet, b.AddOns))
}

func (b Bouquet) basePrice() decimal.Decimal {
	p, ok := bouquetTable[b.Stems]
	if !ok {
		panic(fmt.Sprintf("catalog: bouquet of %d stems not in table", b.Stems))
	}
	return p
}

func (b Bouquet) packagingSurcharge() decimal.Decimal { return packagingPrice(b.Packaging) }
func (b Bouquet) addOns() []SelectedAddOn            { return b.AddOns }

func (b Bouquet) validate() error {
	if _, ok := bouquetTable[b.Stems]; !ok {
		return fmt.Errorf("%w: bouquet of %d stems", ErrUnknownOption, b.Stems)
	}
	if _, ok := bouquetColors[b.Color]; !ok {
		return fmt.Errorf("%w: bouquet color %q", ErrUnknownOption, b.Color)
	}
	return validatePackaging(b.Packaging)
}

type ChocolateBox struct {
	Size      BoxSize
	Flavor    string
	Packaging Packaging
	AddOns    []SelectedAddOn
}

func (c ChocolateBox) Kind() Kind { return KindChocolate }

func (c ChocolateBox) Title() string {
	b := chocolateTable[c.Size]
	return fmt.Sprintf("%s de chocolats (%d pièces)", b.label, b.pieces)
}

func (c ChocolateBox) Description() string {
	parts := []string{
		"Chocolat " + chocolateFlavors[c.Flavor],
		packagingTable[packagingOrDefault(c.Packaging)].label,
	}
	return joinDescription(parts, addOnLabels(KindChocolate, c.AddOns))
}

func (c ChocolateBox) basePrice() decimal.Decimal {
	b, ok := chocolateTable[c.Size]
	if !ok {
		panic(fmt.Sprintf("catalog: chocolate box %q not in table", c.Size))
	}
	return b.price
}

func (c ChocolateBox) packagingSurcharge() decimal.Decimal { return packagingPrice(c.Packaging) }
func (c ChocolateBox) addOns() []SelectedAddOn            { return c.AddOns }

func (c ChocolateBox) validate() error {
	if _, ok := chocolateTable[c.Size]; !ok {
		return fmt.Errorf("%w: chocolate box size %q", ErrUnknownOption, c.Size)
	}
	if _, ok := chocolateFlavors[c.Flavor]; !ok {
		return fmt.Errorf("%w: chocolate flavor %q", ErrUnknownOption, c.Flavor)
	}
	return validatePackaging(c.Packaging)
}

func packagingOrDefault(p Packaging) Packaging {
	if p == "" {
		return PackagingStandard
	}
	return p
}

func packagingPrice(p Packaging) decimal.Decimal {
	def, ok := packagingTable[packagingOrDefault(p)]
	if !ok {
		panic(fmt.Sprintf("catalog: packaging %q not in table", p))
	}
	return def.surcharge
}

func validatePackaging(p Packaging) error {
	if _, ok := packagingTable[packagingOrDefault(p)]; !ok {
		return fmt.Errorf("%w: packaging %q", ErrUnknownOption, p)
	}
	return nil
}

func joinDescription(parts, addOns []string) string {
	if len(addOns) > 0 {
		parts = append(parts, "+ "+strings.Join(addOns, ", "))
	}
	return strings.Join(parts, ", ")
}

func daysBetween(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
