//go:build integration

// Package integration runs the stores, the relay and the notifier against
// real Postgres, Kafka and Redis containers.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

type Env struct {
	PG        *postgres.PostgresContainer
	Kafka     *kafka.KafkaContainer
	Redis     *tcredis.RedisContainer
	PGURL     string
	KAddr     []string
	RedisAddr string
	Cancel    context.CancelFunc
}

// Setup starts the containers. Image pulls on a cold machine are slow, so the
// deadline is generous.
func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	env := &Env{Cancel: cancel}

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("boutique"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.PG = pgC
	if env.PGURL, err = pgC.ConnectionString(ctx, "sslmode=disable"); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("boutique-it"),
	)
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.Kafka = kafkaC
	if env.KAddr, err = kafkaC.Brokers(ctx); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	redisC, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.Redis = redisC
	endpoint, err := redisC.Endpoint(ctx, "")
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.RedisAddr = endpoint
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	if e.Redis != nil {
		_ = e.Redis.Terminate(ctx)
	}
	if e.Kafka != nil {
		_ = e.Kafka.Terminate(ctx)
	}
	if e.PG != nil {
		_ = e.PG.Terminate(ctx)
	}
}
