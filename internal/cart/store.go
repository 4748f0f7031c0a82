package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/boutique-orders/pkg/docstore"
)

const Collection = "carts"

var ErrNotFound = errors.New("cart: code not found")

type savedCart struct {
	Code    string     `json:"code"`
	Items   []LineItem `json:"items"`
	SavedAt time.Time  `json:"saved_at"`
}

// Store saves carts under their content code so a customer can resume them
// from another device.
type Store struct {
	docs docstore.Store
	now  func() time.Time
}

func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs, now: time.Now}
}

func (s *Store) Save(ctx context.Context, c *Cart) (string, error) {
	if c.Len() == 0 {
		return "", ErrEmpty
	}
	items := c.Items()
	code := Code(items)
	err := s.docs.Update(ctx, func(tx docstore.Tx) error {
		return tx.Put(ctx, Collection, code, savedCart{Code: code, Items: items, SavedAt: s.now().UTC()})
	})
	if err != nil {
		return "", fmt.Errorf("save cart %s: %w", code, err)
	}
	return code, nil
}

func (s *Store) Load(ctx context.Context, code string) (*Cart, error) {
	code = NormalizeCode(code)
	var saved savedCart
	err := s.docs.Get(ctx, Collection, code, &saved)
	if errors.Is(err, docstore.ErrAbsent) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", code, err)
	}
	return New(saved.Items...), nil
}
