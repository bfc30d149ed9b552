package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/packfinderz-orderdesk/api/controllers"
	"github.com/angelmondragon/packfinderz-orderdesk/api/routes"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/desk"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/errsurface"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/events"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/inflight"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/journal"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/viewcache"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/backend"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/config"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/db"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/metrics"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/migrate"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pubsub"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/redis"
)

const (
	viewIdleTTL     = 30 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "orderdesk-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "orderdesk-api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]controllers.Pinger{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	backendClient, err := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithSubOrderPaths(cfg.Backend.SellerSubOrdersPath, cfg.Backend.BuyerSubOrdersPath),
		backend.WithLogger(logg),
	)
	if err != nil {
		logg.Error(ctx, "failed to build backend client", err)
		os.Exit(1)
	}

	var (
		registryImpl inflight.Registry
		errorStore   errsurface.Store
		idempotency  redis.IdempotencyStore
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()

		registryImpl, err = inflight.NewRedisRegistry(redisClient, cfg.Desk.InFlightTTL, logg)
		if err != nil {
			logg.Error(ctx, "failed to create in-flight registry", err)
			os.Exit(1)
		}
		errorStore, err = errsurface.NewRedisStore(redisClient, cfg.Desk.ErrorTTL)
		if err != nil {
			logg.Error(ctx, "failed to create error store", err)
			os.Exit(1)
		}
		idempotency = redisClient
		checks["redis"] = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, keeping desk state in process memory")
		registryImpl = inflight.NewMemoryRegistry(cfg.Desk.InFlightTTL)
		errorStore = errsurface.NewMemoryStore(cfg.Desk.ErrorTTL)
	}

	var journalImpl journal.Journal = journal.Noop{}
	if cfg.FeatureFlags.JournalEnabled {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()

		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run migrations", err)
			os.Exit(1)
		}

		journalImpl, err = journal.NewService(journal.NewRepository(dbClient.DB()))
		if err != nil {
			logg.Error(ctx, "failed to create journal", err)
			os.Exit(1)
		}
		checks["db"] = dbClient
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.PubSub.Enabled(cfg.GCP) {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()

		publisher, err = events.NewPubSubPublisher(pubsubClient.TransitionsPublisher())
		if err != nil {
			logg.Error(ctx, "failed to create transition publisher", err)
			os.Exit(1)
		}
		checks["pubsub"] = pubsubClient
	}

	cache := viewcache.New(
		viewcache.WithIdleTTL(viewIdleTTL),
		viewcache.WithFetchTimeout(cfg.Backend.Timeout),
		viewcache.WithStaleHook(dispatchMetrics.IncStaleCommit),
	)

	deskService, err := desk.NewService(desk.ServiceParams{
		Backend:             backendClient,
		InFlight:            registryImpl,
		Errors:              errorStore,
		Cache:               cache,
		Journal:             journalImpl,
		Events:              publisher,
		Metrics:             dispatchMetrics,
		Logger:              logg,
		SyncMode:            cfg.Desk.Mode(),
		DefaultCancelReason: cfg.Desk.DefaultCancelReason,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order desk", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":      addr,
		"sync_mode": cfg.Desk.Mode().String(),
	})
	logg.Info(ctx, "starting order desk api")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			Desk:        deskService,
			Idempotency: idempotency,
			Checks:      checks,
			Gatherer:    registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down order desk api")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
