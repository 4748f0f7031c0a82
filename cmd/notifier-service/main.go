package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/boutique-orders/internal/config"
	"github.com/dmehra2102/boutique-orders/internal/notify"
	notifykafka "github.com/dmehra2102/boutique-orders/internal/notify/kafka"
	"github.com/dmehra2102/boutique-orders/pkg/idempotency"
	"github.com/dmehra2102/boutique-orders/pkg/logging"
	"github.com/dmehra2102/boutique-orders/pkg/shutdown"
	"github.com/dmehra2102/boutique-orders/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New().Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.NewWithLevel(cfg.LogLevel)
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if cfg.KafkaAddr == "" || cfg.RedisAddr == "" {
		log.Error("notifier-service needs KAFKA_ADDR and REDIS_ADDR")
		os.Exit(1)
	}

	if cfg.OTELEndpoint != "" {
		tp, err := tracing.Init(ctx, "notifier-service", cfg.OTELEndpoint, log)
		if err != nil {
			log.Error("otel init failed", "err", err)
			os.Exit(1)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisDB.Close()
	idem := idempotency.NewStore(redisDB, 7*24*time.Hour)

	format := notify.NewFormatter(cfg.ShopName, cfg.OwnerEmail).WithBooking(cfg.BookingFullSetURL, cfg.BookingRefillURL)
	consumer := notifykafka.NewConsumer(log, cfg.KafkaBrokers(), cfg.EventsTopic, cfg.ConsumerGroup, format, idem, cfg.NotifyDir)

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	log.Info("notifier-service consuming", "topic", cfg.EventsTopic, "dir", cfg.NotifyDir)
	<-ctx.Done()
	log.Info("notifier-service shutdown")
}
