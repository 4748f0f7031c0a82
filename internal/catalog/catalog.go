// Package catalog holds the boutique's products and prices them.
//
// Each product kind is its own Selection type with typed attributes and a list
// of add-ons drawn from that kind's add-on table. Price is a pure function of
// the selection; anything that reaches it has already passed Validate, so an
// unknown attribute there is a bug and panics.
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindLash      Kind = "lash"
	KindBouquet   Kind = "bouquet"
	KindChocolate Kind = "chocolate"
)

var ErrUnknownOption = errors.New("unknown catalog option")

type AddOnID string

// AddOn is an optional extra with a fixed surcharge. NoteAllowed marks the
// add-ons that carry customer free text (a card message, a name on a ribbon).
type AddOn struct {
	ID          AddOnID
	Label       string
	Surcharge   decimal.Decimal
	NoteAllowed bool
}

type SelectedAddOn struct {
	ID   AddOnID `json:"id"`
	Note string  `json:"note,omitempty"`
}

// Selection is a configured product. The unexported methods keep the set of
// variants closed to this package.
type Selection interface {
	Kind() Kind
	Title() string
	Description() string

	basePrice() decimal.Decimal
	packagingSurcharge() decimal.Decimal
	addOns() []SelectedAddOn
	validate() error
}

// Price returns base price + packaging + add-on surcharges.
func Price(sel Selection) decimal.Decimal {
	total := sel.basePrice().Add(sel.packagingSurcharge())
	table := addOnTables[sel.Kind()]
	for _, a := range sel.addOns() {
		def, ok := table[a.ID]
		if !ok {
			panic(fmt.Sprintf("catalog: add-on %q is not offered for %s", a.ID, sel.Kind()))
		}
		total = total.Add(def.Surcharge)
	}
	return total
}

// BasePrice is the table price before packaging and add-ons.
func BasePrice(sel Selection) decimal.Decimal {
	return sel.basePrice()
}

// Validate checks every attribute of sel against the catalog tables.
func Validate(sel Selection) error {
	if sel == nil {
		return fmt.Errorf("%w: empty selection", ErrUnknownOption)
	}
	if err := sel.validate(); err != nil {
		return err
	}
	table := addOnTables[sel.Kind()]
	seen := make(map[AddOnID]bool, len(sel.addOns()))
	for _, a := range sel.addOns() {
		def, ok := table[a.ID]
		if !ok {
			return fmt.Errorf("%w: add-on %q for %s", ErrUnknownOption, a.ID, sel.Kind())
		}
		if seen[a.ID] {
			return fmt.Errorf("%w: add-on %q selected twice", ErrUnknownOption, a.ID)
		}
		seen[a.ID] = true
		if a.Note != "" && !def.NoteAllowed {
			return fmt.Errorf("%w: add-on %q takes no note", ErrUnknownOption, a.ID)
		}
	}
	return nil
}

// AddOnsFor lists the add-ons offered for a kind, for rendering forms.
func AddOnsFor(k Kind) []AddOn {
	table := addOnTables[k]
	out := make([]AddOn, 0, len(table))
	for _, id := range addOnOrder[k] {
		out = append(out, table[id])
	}
	return out
}

func addOnLabels(k Kind, selected []SelectedAddOn) []string {
	table := addOnTables[k]
	labels := make([]string, 0, len(selected))
	for _, a := range selected {
		label := string(a.ID)
		if def, ok := table[a.ID]; ok {
			label = def.Label
		}
		if a.Note != "" {
			label += fmt.Sprintf(" (%q)", a.Note)
		}
		labels = append(labels, label)
	}
	return labels
}
