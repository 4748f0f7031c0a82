package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, prefix: "idem"}
}

// Key identifies a consumed Kafka record.
func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", s.prefix, topic, partition, offset)
}

// RequestKey identifies a client-supplied Idempotency-Key for one route.
func (s *Store) RequestKey(route, clientKey string) string {
	return fmt.Sprintf("%s:http:%s:%s", s.prefix, route, clientKey)
}

// Seen marks key as processed and reports whether it had been marked before.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget releases a key so a failed attempt can be retried.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
