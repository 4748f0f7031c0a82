//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/catalog"
	"github.com/dmehra2102/boutique-orders/internal/session"
	"github.com/dmehra2102/boutique-orders/pkg/idempotency"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	store := session.NewRedisStore(newRedis(t), time.Minute)

	sess := session.New()
	sess.Cart.Add(cart.NewLineItem(catalog.ChocolateBox{Size: catalog.BoxLarge, Flavor: "milk"}))
	sess.Quotes = append(sess.Quotes, "Q-0A1B2C3D")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cart.Len())
	assert.True(t, got.Cart.Total().Equal(sess.Cart.Total()))
	assert.True(t, got.Owns("Q-0A1B2C3D"))

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Load(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisIdempotencySeenOnce(t *testing.T) {
	ctx := context.Background()
	idem := idempotency.NewStore(newRedis(t), time.Minute)
	key := idem.RequestKey("POST /checkout", "abc-123")

	seen, err := idem.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = idem.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, idem.Forget(ctx, key))
	seen, err = idem.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}
