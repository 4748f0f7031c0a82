package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/catalog"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	sess := New()
	require.True(t, ValidID(sess.ID))
	sess.Cart.Add(cart.NewLineItem(catalog.Bouquet{Stems: 10, Color: "white"}))
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Cart.Len())
	assert.Equal(t, "Bouquet 10 roses", got.Cart.Items()[0].Title)
	assert.True(t, sess.Cart.Total().Equal(got.Cart.Total()))

	got.Cart.Clear()
	again, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Cart.Len(), "loaded sessions do not alias the stored one")

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess := New()
	require.NoError(t, store.Save(ctx, sess))

	now = now.Add(29 * time.Minute)
	_, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidID(t *testing.T) {
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("../../etc/passwd"))
}

func TestMemoryStoreSweepsAtMostOncePerInterval(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10 * time.Minute)
	store.sweepEvery = 15 * time.Minute
	start := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	now := start
	store.now = func() time.Time { return now }

	stale := New()
	require.NoError(t, store.Save(ctx, stale))

	now = start.Add(11 * time.Minute)
	require.NoError(t, store.Save(ctx, New()))
	assert.Len(t, store.entries, 2, "no sweep inside the interval")
	_, err := store.Load(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound, "expired entries are never served")

	require.NoError(t, store.Save(ctx, stale))
	now = start.Add(26 * time.Minute)
	require.NoError(t, store.Save(ctx, New()))
	assert.Len(t, store.entries, 1, "sweep drops every expired entry")
}
