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
	"go.uber.org/multierr"

	"github.com/heraerp/hera-api/api/routes"
	"github.com/heraerp/hera-api/internal/entities"
	"github.com/heraerp/hera-api/internal/guard"
	"github.com/heraerp/hera-api/internal/relationships"
	"github.com/heraerp/hera-api/internal/transactions"
	"github.com/heraerp/hera-api/pkg/config"
	"github.com/heraerp/hera-api/pkg/db"
	"github.com/heraerp/hera-api/pkg/logger"
	"github.com/heraerp/hera-api/pkg/metrics"
	"github.com/heraerp/hera-api/pkg/migrate"
	"github.com/heraerp/hera-api/pkg/outbox"
	"github.com/heraerp/hera-api/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	guardrailMetrics := metrics.NewGuardrailMetrics(promRegistry)

	checker := guard.New(guard.Options{
		Logger:               logg,
		Metrics:              guardrailMetrics,
		StrictLineSmartCodes: cfg.FeatureFlags.StrictLineSmartCodes,
	})
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	entityService, err := entities.NewService(entities.ServiceParams{
		Repo:   entities.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Guard:  checker,
		Outbox: emitter,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entity service", err)
		os.Exit(1)
	}

	relationshipService, err := relationships.NewService(relationships.NewRepository(dbClient.DB()), dbClient, checker, emitter, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create relationship service", err)
		os.Exit(1)
	}

	transactionService, err := transactions.NewService(transactions.ServiceParams{
		Repo:   transactions.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Guard:  checker,
		Outbox: emitter,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:               dbClient,
			Redis:            redisClient,
			Idempotency:      redisClient,
			RateLimiter:      redisClient,
			Gatherer:         promRegistry,
			GuardrailMetrics: guardrailMetrics,
			Entities:         entityService,
			Relationships:    relationshipService,
			Transactions:     transactionService,
			DeadLetters:      outbox.NewDLQRepository(dbClient.DB()),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
