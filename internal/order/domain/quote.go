package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/validation"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusPaid || s == StatusCancelled
}

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid quote transition")
	ErrEmptyCart         = errors.New("cart is empty")
)

type DeliveryMode string

const (
	ModePickup   DeliveryMode = "pickup"
	ModeDelivery DeliveryMode = "delivery"
)

// TimeSlots are the windows the shop offers for pickup and delivery.
var TimeSlots = []string{"10:00-12:00", "14:00-16:00", "16:00-19:00"}

const DateLayout = "2006-01-02"

type Customer struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Instagram string `json:"instagram"`
	Address   string `json:"address,omitempty"`
}

type Delivery struct {
	Mode     DeliveryMode `json:"mode"`
	Date     string       `json:"date"`
	TimeSlot string       `json:"time_slot"`
}

// Validate checks the checkout form and returns every failing field at
// once. The phone number is rewritten to its national form.
func Validate(c *Customer, d Delivery, today time.Time) error {
	var errs []error
	errs = append(errs, validation.Required("name", c.Name))
	if phone, err := validation.NormalizePhone(c.Phone); err != nil {
		errs = append(errs, err)
	} else {
		c.Phone = phone
	}
	if err := validation.Required("instagram", c.Instagram); err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, validation.Handle(c.Instagram))
	}

	switch d.Mode {
	case ModePickup:
	case ModeDelivery:
		errs = append(errs, validation.Address(c.Address))
	default:
		errs = append(errs, validation.OneOf("mode", string(d.Mode), []string{string(ModePickup), string(ModeDelivery)}))
	}
	if d.Date == "" {
		errs = append(errs, validation.Required("date", d.Date))
	} else if day, err := time.ParseInLocation(DateLayout, d.Date, today.Location()); err != nil {
		errs = append(errs, &validation.Error{Field: "date", Err: validation.ErrInvalidChoice})
	} else {
		errs = append(errs, validation.NotBefore("date", day, today))
	}
	errs = append(errs, validation.OneOf("time_slot", d.TimeSlot, TimeSlots))
	return validation.Join(errs...)
}

// Quote is a priced order waiting for the owner to confirm payment. Items
// are a copy of the cart at submission and are never edited afterwards.
type Quote struct {
	ID                   string          `json:"id"`
	SchemaVersion        int             `json:"schema_version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Customer             Customer        `json:"customer"`
	Items                []cart.LineItem `json:"items"`
	Delivery             Delivery        `json:"delivery"`
	Totals               Totals          `json:"totals"`
	Status               Status          `json:"status"`
	LoyaltyPointsPending int             `json:"loyalty_points_pending"`
	CancelReason         string          `json:"cancel_reason,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
}

func NewQuote(customer Customer, items []cart.LineItem, delivery Delivery, totals Totals, schemaVersion int, now time.Time) Quote {
	now = now.UTC()
	return Quote{
		ID:                   NewQuoteID(customer.Instagram, customer.Phone, now),
		SchemaVersion:        schemaVersion,
		CreatedAt:            now,
		UpdatedAt:            now,
		Customer:             customer,
		Items:                items,
		Delivery:             delivery,
		Totals:               totals,
		Status:               StatusPending,
		LoyaltyPointsPending: PointsFor(totals.Total),
	}
}

// Handle is the loyalty key of the customer.
func (q Quote) Handle() string { return loyalty.NormalizeHandle(q.Customer.Instagram) }

func (q *Quote) MarkPaid(at time.Time) error {
	if q.Status != StatusPending {
		return fmt.Errorf("%w: quote %s is %s", ErrInvalidTransition, q.ID, q.Status)
	}
	at = at.UTC()
	q.Status = StatusPaid
	q.PaidAt = &at
	q.UpdatedAt = at
	return nil
}

func (q *Quote) Cancel(reason string, at time.Time) error {
	if q.Status != StatusPending {
		return fmt.Errorf("%w: quote %s is %s", ErrInvalidTransition, q.ID, q.Status)
	}
	at = at.UTC()
	q.Status = StatusCancelled
	q.CancelReason = strings.TrimSpace(reason)
	q.CancelledAt = &at
	q.UpdatedAt = at
	return nil
}

// Products lists the product kind of each line item, for sales counters.
func (q Quote) Products() []string {
	out := make([]string, len(q.Items))
	for i, it := range q.Items {
		out[i] = string(it.Product)
	}
	return out
}

var quoteNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:boutique-orders:quote"))

// NewQuoteID derives the quote id from the customer and the submission
// time, so the same submission always gets the same id.
func NewQuoteID(handle, phone string, createdAt time.Time) string {
	name := strings.Join([]string{
		loyalty.NormalizeHandle(handle),
		phone,
		createdAt.UTC().Format(time.RFC3339Nano),
	}, "|")
	id := uuid.NewSHA1(quoteNamespace, []byte(name))
	return "Q-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
