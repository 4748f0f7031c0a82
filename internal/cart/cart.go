// Package cart is the per-session list of priced line items.
package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/boutique-orders/internal/catalog"
)

var (
	ErrIndexOutOfRange = errors.New("cart: index out of range")
	ErrEmpty           = errors.New("cart: empty")
)

// LineItem is a priced product as it was when added. It is never edited; to
// change a selection the customer removes the item and adds a new one.
type LineItem struct {
	Product     catalog.Kind        `json:"product"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	Appointment catalog.Appointment `json:"appointment,omitempty"`
}

func NewLineItem(sel catalog.Selection) LineItem {
	item := LineItem{
		Product:     sel.Kind(),
		Title:       sel.Title(),
		Description: sel.Description(),
		Price:       catalog.Price(sel),
	}
	if b, ok := sel.(catalog.Booked); ok {
		item.Appointment = b.Appointment()
	}
	return item
}

type Cart struct {
	items []LineItem
}

func New(items ...LineItem) *Cart {
	c := &Cart{}
	c.items = append(c.items, items...)
	return c
}

func (c *Cart) Add(item LineItem) {
	c.items = append(c.items, item)
}

func (c *Cart) Remove(index int) (LineItem, error) {
	if index < 0 || index >= len(c.items) {
		return LineItem{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.items))
	}
	removed := c.items[index]
	c.items = append(c.items[:index:index], c.items[index+1:]...)
	return removed, nil
}

func (c *Cart) Clear() { c.items = nil }

func (c *Cart) Len() int { return len(c.items) }

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Price)
	}
	return total
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	items := c.items
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	c.items = items
	return nil
}

const codeLength = 12

// Code derives the lookup code of a cart from its contents: the same items in
// the same order always give the same code, whoever saves them.
func Code(items []LineItem) string {
	canon := make([]LineItem, len(items))
	for i, it := range items {
		canon[i] = it
		canon[i].Price = it.Price.Round(2)
	}
	data, err := json.Marshal(canon)
	if err != nil {
		panic(fmt.Sprintf("cart: encode line items: %v", err))
	}
	sum := sha256.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:codeLength]
}

// NormalizeCode upper-cases and trims a code typed by a customer.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
