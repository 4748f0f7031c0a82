// Package session holds the per-visitor state of the order flow. A Session
// is loaded by the HTTP layer at the start of a request and handed to the
// handlers explicitly; nothing here is process-wide.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmehra2102/boutique-orders/internal/cart"
)

var ErrNotFound = errors.New("session not found")

// Session is one visitor's state. Quotes lists the quotes submitted from it,
// which the visitor may download again.
type Session struct {
	ID     string     `json:"id"`
	Cart   *cart.Cart `json:"cart"`
	Quotes []string   `json:"quotes,omitempty"`
}

func (s *Session) Owns(quoteID string) bool {
	for _, id := range s.Quotes {
		if id == quoteID {
			return true
		}
	}
	return false
}

func New() *Session {
	return &Session{ID: uuid.NewString(), Cart: cart.New()}
}

type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// ValidID reports whether id looks like one New could have issued.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
