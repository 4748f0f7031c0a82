package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/boutique-orders/internal/analytics"
	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/config"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/notify"
	"github.com/dmehra2102/boutique-orders/internal/order/application"
	orderhttp "github.com/dmehra2102/boutique-orders/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/boutique-orders/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/boutique-orders/internal/promo"
	"github.com/dmehra2102/boutique-orders/internal/session"
	"github.com/dmehra2102/boutique-orders/pkg/docstore"
	"github.com/dmehra2102/boutique-orders/pkg/docstore/jsonfile"
	docpg "github.com/dmehra2102/boutique-orders/pkg/docstore/postgres"
	"github.com/dmehra2102/boutique-orders/pkg/idempotency"
	"github.com/dmehra2102/boutique-orders/pkg/logging"
	"github.com/dmehra2102/boutique-orders/pkg/outbox"
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

	if cfg.OTELEndpoint != "" {
		tp, err := tracing.Init(ctx, "boutique-service", cfg.OTELEndpoint, log)
		if err != nil {
			log.Error("otel init failed", "err", err)
			os.Exit(1)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// Document store
	var (
		docs docstore.Store
		pool *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err = pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		pgStore := docpg.NewStore(log, pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("pg migrate failed", "err", err)
			os.Exit(1)
		}
		docs = pgStore
	default:
		fileStore, err := jsonfile.Open(log, cfg.DataDir)
		if err != nil {
			log.Error("data dir unusable", "dir", cfg.DataDir, "err", err)
			os.Exit(1)
		}
		docs = fileStore
	}
	defer docs.Close()

	codes := promo.Defaults()
	if cfg.PromoSeedFile != "" {
		if codes, err = promo.LoadSeedFile(cfg.PromoSeedFile); err != nil {
			log.Error("promo seed unreadable", "file", cfg.PromoSeedFile, "err", err)
			os.Exit(1)
		}
	}
	if err := promo.Seed(ctx, docs, codes); err != nil {
		log.Error("promo seed failed", "err", err)
		os.Exit(1)
	}

	// Sessions and idempotency keys live in Redis when it is configured.
	var (
		sessions session.Store = session.NewMemoryStore(cfg.SessionTTL)
		idem     idempotency.Checker
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis unreachable", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		sessions = session.NewRedisStore(rdb, cfg.SessionTTL)
		idem = idempotency.NewStore(rdb, 24*time.Hour)
	} else {
		log.Warn("REDIS_ADDR not set: sessions kept in memory, Idempotency-Key not enforced")
	}

	format := notify.NewFormatter(cfg.ShopName, cfg.OwnerEmail).WithBooking(cfg.BookingFullSetURL, cfg.BookingRefillURL)
	svc := application.NewService(log, docs, cfg.Policy, format)
	handler := orderhttp.NewHandler(log, orderhttp.Deps{
		Service:       svc,
		Carts:         cart.NewStore(docs),
		Sessions:      sessions,
		Tracker:       analytics.NewTracker(docs),
		Ledger:        loyalty.NewLedger(log, docs),
		Formatter:     format,
		Idempotency:   idem,
		AdminPassword: cfg.AdminPassword,
		SessionTTL:    cfg.SessionTTL,
	})
	if cfg.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD not set: admin console disabled")
	}

	// Outbox relay
	if cfg.RelayEnabled() {
		writer := orderkafka.NewWriter(cfg.KafkaBrokers())
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.EventsTopic)
		relay := outbox.NewRelay(log, docpg.NewOutboxStore(log, pool), dispatch, "boutique-service-relay")
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	} else if cfg.KafkaAddr != "" {
		log.Warn("outbox relay needs STORE_DRIVER=postgres; events stay in the local outbox")
	}

	// HTTP server
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("boutique-service shutdown complete")
}
