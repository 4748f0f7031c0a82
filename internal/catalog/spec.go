package catalog

import (
	"fmt"
	"time"
)

// Spec is the flat form a product configuration arrives in from the order
// form. Build turns it into a typed Selection and validates it.
type Spec struct {
	Kind      Kind            `json:"kind"`
	Style     LashStyle       `json:"style,omitempty"`
	Refill    bool            `json:"refill,omitempty"`
	LastVisit string          `json:"last_visit,omitempty"`
	Stems     int             `json:"stems,omitempty"`
	Color     string          `json:"color,omitempty"`
	Size      BoxSize         `json:"size,omitempty"`
	Flavor    string          `json:"flavor,omitempty"`
	Packaging Packaging       `json:"packaging,omitempty"`
	AddOns    []SelectedAddOn `json:"add_ons,omitempty"`
}

const dateLayout = "2006-01-02"

func (s Spec) Build(asOf time.Time) (Selection, error) {
	var sel Selection
	switch s.Kind {
	case KindLash:
		l := LashService{Style: s.Style, Refill: s.Refill, AsOf: asOf, AddOns: s.AddOns}
		if s.LastVisit != "" {
			d, err := time.ParseInLocation(dateLayout, s.LastVisit, asOf.Location())
			if err != nil {
				return nil, fmt.Errorf("%w: last_visit %q", ErrUnknownOption, s.LastVisit)
			}
			l.LastVisit = d
		}
		sel = l
	case KindBouquet:
		sel = Bouquet{Stems: s.Stems, Color: s.Color, Packaging: s.Packaging, AddOns: s.AddOns}
	case KindChocolate:
		sel = ChocolateBox{Size: s.Size, Flavor: s.Flavor, Packaging: s.Packaging, AddOns: s.AddOns}
	default:
		return nil, fmt.Errorf("%w: product kind %q", ErrUnknownOption, s.Kind)
	}
	if err := Validate(sel); err != nil {
		return nil, err
	}
	return sel, nil
}
