package application

import (
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
)

// Notifier renders the owner notification for a submitted quote.
type Notifier interface {
	Subject(q domain.Quote) string
	Summary(q domain.Quote) string
	MailtoLink(q domain.Quote) string
}

// Submission is what checkout hands back to the customer: the stored quote
// and the pre-filled message for the shop owner.
type Submission struct {
	Quote   domain.Quote `json:"quote"`
	Subject string       `json:"subject"`
	Body    string       `json:"body"`
	Mailto  string       `json:"mailto"`
}
