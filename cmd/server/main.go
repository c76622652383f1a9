// Command server runs the acctgate HTTP service: the quorum-governed
// account core behind the relay. main wires configuration, stores, the
// event pipeline, and the router; business logic lives in internal
// packages.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	accounthandler "acctgate/internal/account/handler"
	"acctgate/internal/account/service"
	"acctgate/internal/account/store"
	"acctgate/internal/jwttoken"
	"acctgate/internal/platform/config"
	"acctgate/internal/platform/httpserver"
	"acctgate/internal/platform/logger"
	"acctgate/internal/platform/metrics"
	"acctgate/internal/platform/middleware"
	"acctgate/internal/platform/redis"
	"acctgate/pkg/platform/events"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Account store: postgres when configured, in-process memory otherwise.
	var accountStore service.Store
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, store.Schema); err != nil {
			log.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		accountStore = store.NewPostgres(pool)
		log.Info("using postgres account store")
	} else {
		accountStore = store.NewInMemoryStore()
		log.Info("using in-memory account store")
	}

	// Event pipeline: memory answers queries; kafka, when configured, feeds
	// the relay and indexer.
	eventStore := events.Store(events.NewInMemoryStore())
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := events.NewKafkaStore(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaStore.Close()
		eventStore = events.Fanout{eventStore, kafkaStore}
		log.Info("kafka event sink enabled", "topic", cfg.Kafka.Topic)
	}
	publisher := events.NewPublisher(eventStore,
		events.WithLogger(log),
		events.WithAsyncBuffer(1024),
	)
	defer publisher.Close()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithEventPublisher(publisher),
		service.WithOverTimeLimit(cfg.Engine.OverTimeLimit.Std()),
		service.WithSignedRequestMaxAge(cfg.Engine.SignedRequestMaxAge.Std()),
	}

	if cfg.Caller.DispatcherURL != "" {
		client := &http.Client{Timeout: cfg.Caller.Timeout.Std()}
		opts = append(opts, service.WithExternalCaller(service.NewHTTPCaller(cfg.Caller.DispatcherURL, client)))
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithNonceView(store.NewRedisNonceView(redisClient)))
		log.Info("redis nonce view enabled")
	}

	accounts := service.NewService(accountStore, opts...)
	jwtService := jwttoken.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	router := chi.NewRouter()
	if cfg.Limits.RequestsPerMinute > 0 {
		limiter := middleware.NewRateLimiter(cfg.Limits.RequestsPerMinute, time.Minute)
		router.Use(limiter.Middleware)
	}
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	accounthandler.New(accounts, log, m, jwtService).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting acctgate", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
